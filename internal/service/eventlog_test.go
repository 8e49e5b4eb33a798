package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"chamberheat/internal/models"
)

type captureEvents struct {
	memEvents
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (c *captureEvents) List(ctx context.Context, from, to time.Time, typ string) ([]models.ChamberEvent, error) {
	c.lastFrom, c.lastTo, c.lastType = from, to, typ
	return c.memEvents.List(ctx, from, to, typ)
}

func TestEventLog_NormalizesFilter(t *testing.T) {
	repo := &captureEvents{}
	svc := NewEventLogService(repo)

	loc := time.FixedZone("UTC+5", 5*3600)
	from := time.Date(2026, 3, 1, 10, 0, 0, 0, loc)
	to := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)

	if _, err := svc.List(context.Background(), LogFilter{From: from, To: to, Type: "  phase_change "}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if repo.lastFrom != from.UTC() || repo.lastTo != to.UTC() {
		t.Fatalf("time bounds not normalized to UTC: %v / %v", repo.lastFrom, repo.lastTo)
	}
	if repo.lastType != "PHASE_CHANGE" {
		t.Fatalf("type filter not normalized, got %q", repo.lastType)
	}
}

func TestEventLog_ZeroBoundsPassThrough(t *testing.T) {
	repo := &captureEvents{}
	svc := NewEventLogService(repo)

	if _, err := svc.List(context.Background(), LogFilter{}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if !repo.lastFrom.IsZero() || !repo.lastTo.IsZero() || repo.lastType != "" {
		t.Fatalf("zero filter must stay zero: %v / %v / %q", repo.lastFrom, repo.lastTo, repo.lastType)
	}
}

func TestEventLog_RejectsInvertedRange(t *testing.T) {
	svc := NewEventLogService(&captureEvents{})

	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	_, err := svc.List(context.Background(), LogFilter{From: from, To: to})
	if !errors.Is(err, errInvalidTimeRange) {
		t.Fatalf("want errInvalidTimeRange, got %v", err)
	}
}
