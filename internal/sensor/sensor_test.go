package sensor

import (
	"errors"
	"testing"
)

func TestAverage_SkipsFailedProbes(t *testing.T) {
	a := NewFake("top", 60)
	b := NewFake("bottom", 58)
	c := NewFake("door", 0)
	c.Fail(errors.New("i2c timeout"))

	avg, failed, healthy := Average([]Probe{a, b, c})
	if healthy != 2 {
		t.Fatalf("healthy=%d, want 2", healthy)
	}
	if avg != 59 {
		t.Fatalf("avg=%.1f, want 59.0", avg)
	}
	if len(failed) != 1 || failed[0] != "door" {
		t.Fatalf("failed=%v, want [door]", failed)
	}
}

func TestAverage_AllFailed(t *testing.T) {
	a := NewFake("top", 60)
	a.Fail(errors.New("dead"))
	avg, _, healthy := Average([]Probe{a})
	if healthy != 0 || avg != 0 {
		t.Fatalf("expected no reading, got avg=%.1f healthy=%d", avg, healthy)
	}
}

func TestMax(t *testing.T) {
	a := NewFake("top", 61.5)
	b := NewFake("bottom", 72.25)
	max, healthy := Max([]Probe{a, b})
	if healthy != 2 || max != 72.25 {
		t.Fatalf("max=%.2f healthy=%d", max, healthy)
	}
}
