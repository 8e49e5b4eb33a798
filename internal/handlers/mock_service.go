package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"chamberheat/internal/models"
	"chamberheat/internal/service"
)

// ---- Service Mocks ----

type mockChamber struct {
	startErr   error
	pauseErr   error
	resumeErr  error
	confirmErr error
	stopErr    error
	estopErr   error

	lastStart    models.StartParams
	lastSetpoint float64
	lastDelta    time.Duration
	lastOverride string
	lastOn       bool
	lastCleared  string

	startCalls   int
	pauseCalls   int
	resumeCalls  int
	confirmCalls int
	stopCalls    int
	estopCalls   int
}

func (m *mockChamber) Start(ctx context.Context, p models.StartParams) error {
	m.startCalls++
	m.lastStart = p
	return m.startErr
}
func (m *mockChamber) Pause(ctx context.Context) error {
	m.pauseCalls++
	return m.pauseErr
}
func (m *mockChamber) Resume(ctx context.Context) error {
	m.resumeCalls++
	return m.resumeErr
}
func (m *mockChamber) ConfirmPreheat(ctx context.Context) error {
	m.confirmCalls++
	return m.confirmErr
}
func (m *mockChamber) Stop(ctx context.Context) error {
	m.stopCalls++
	return m.stopErr
}
func (m *mockChamber) EmergencyStop(ctx context.Context) error {
	m.estopCalls++
	return m.estopErr
}
func (m *mockChamber) SetSetpoint(ctx context.Context, setpointC float64) error {
	m.lastSetpoint = setpointC
	return nil
}
func (m *mockChamber) AdjustDuration(ctx context.Context, delta time.Duration) error {
	m.lastDelta = delta
	return nil
}
func (m *mockChamber) SetManualOverride(ctx context.Context, actuatorName string, on bool) error {
	m.lastOverride = actuatorName
	m.lastOn = on
	return nil
}
func (m *mockChamber) ClearManualOverride(ctx context.Context, actuatorName string) error {
	m.lastCleared = actuatorName
	return nil
}

type mockMonitoring struct {
	snap models.StatusSnapshot
}

func (m *mockMonitoring) Snapshot() models.StatusSnapshot {
	return m.snap
}

type mockEventLog struct {
	resp     []models.ChamberEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.ChamberEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

type mockSettings struct {
	current   models.Settings
	getErr    error
	updateErr error
	lastSaved models.Settings
}

func (m *mockSettings) Get(ctx context.Context) (models.Settings, error) {
	return m.current, m.getErr
}
func (m *mockSettings) Update(ctx context.Context, s models.Settings) error {
	m.lastSaved = s
	return m.updateErr
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
