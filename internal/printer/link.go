package printer

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"chamberheat/internal/logger"
)

// Config holds the printer connection parameters. The X1C runs its own
// broker on port 8883 with a self-signed certificate; the username is
// fixed and the LAN access code is the password.
type Config struct {
	Host       string
	AccessCode string
	Serial     string
}

func (c Config) enabled() bool {
	return c.Host != "" && c.AccessCode != "" && c.Serial != ""
}

// Link subscribes to the printer's report topic and feeds every message to
// the monitor. Reconnects are handled by the client; resubscription happens
// in the connect callback so a broker restart does not silence us.
type Link struct {
	client  paho.Client
	monitor *Monitor
	topic   string
	log     *logger.Logger
}

// NewLink connects to the printer. A nil link with no error means the
// printer is not configured and following is disabled.
func NewLink(ctx context.Context, cfg Config, monitor *Monitor, log *logger.Logger) (*Link, error) {
	if !cfg.enabled() {
		log.Infow("printer_link_disabled")
		return nil, nil
	}

	l := &Link{
		monitor: monitor,
		topic:   fmt.Sprintf("device/%s/report", cfg.Serial),
		log:     log,
	}

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tls://%s:8883", cfg.Host)).
		SetClientID(fmt.Sprintf("chamberheat_%d", time.Now().Unix())).
		SetUsername("bblp").
		SetPassword(cfg.AccessCode).
		SetTLSConfig(&tls.Config{InsecureSkipVerify: true}).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(c paho.Client) {
			log.Infow("printer_connected", "host", cfg.Host)
			token := c.Subscribe(l.topic, 0, func(_ paho.Client, msg paho.Message) {
				l.monitor.Handle(ctx, msg.Payload())
			})
			if token.WaitTimeout(5*time.Second) && token.Error() != nil {
				log.Errorw("printer_subscribe_failed", "topic", l.topic, "err", token.Error())
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnw("printer_disconnected", "err", err)
		})

	l.client = paho.NewClient(opts)
	token := l.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("printer connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to printer: %w", err)
	}
	return l, nil
}

// Close disconnects from the printer broker.
func (l *Link) Close() error {
	if l == nil {
		return nil
	}
	l.client.Disconnect(1000)
	return nil
}
