package service

import (
	"context"

	"chamberheat/internal/control"
	"chamberheat/internal/models"
	"chamberheat/internal/repository"
)

// SettingsService validates, persists, and live-applies settings changes.
type SettingsService struct {
	settingsRepo repository.SettingsRepo
	eventRepo    repository.EventRepo
	ctrl         *Controller
	opts         Config
}

func NewSettingsService(settingsRepo repository.SettingsRepo, eventRepo repository.EventRepo, ctrl *Controller, opts Config) *SettingsService {
	return &SettingsService{
		settingsRepo: settingsRepo,
		eventRepo:    eventRepo,
		ctrl:         ctrl,
		opts:         opts,
	}
}

func (s *SettingsService) Get(ctx context.Context) (models.Settings, error) {
	settings, found, err := s.settingsRepo.Load(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	if !found {
		return models.DefaultSettings(), nil
	}
	return settings, nil
}

// Update persists new settings and swaps them into the running controller.
// The working run keeps its current setpoint and duration; only the knobs
// change.
func (s *SettingsService) Update(ctx context.Context, settings models.Settings) error {
	if err := s.validate(settings); err != nil {
		return err
	}
	if err := s.settingsRepo.Save(ctx, settings); err != nil {
		return err
	}
	s.ctrl.ApplySettings(settings)

	return s.eventRepo.Append(ctx, models.ChamberEvent{
		Type:        models.EventSettingsChange,
		Description: "settings updated",
		Metadata: map[string]any{
			"hysteresis_c":      settings.HysteresisC,
			"cooldown_hours":    settings.CooldownHours,
			"cooldown_target_c": settings.CooldownTargetC,
			"skip_preheat":      settings.SkipPreheat,
		},
	})
}

func (s *SettingsService) validate(settings models.Settings) error {
	if settings.HysteresisC <= 0 {
		return control.Validationf("hysteresis must be positive, got %.2f", settings.HysteresisC)
	}
	if settings.ToleranceC <= 0 {
		return control.Validationf("tolerance must be positive, got %.2f", settings.ToleranceC)
	}
	if settings.CooldownHours <= 0 {
		return control.Validationf("cooldown hours must be positive, got %.2f", settings.CooldownHours)
	}
	if settings.CooldownTargetC <= 0 {
		return control.Validationf("cooldown target must be positive, got %.1f", settings.CooldownTargetC)
	}
	if s.opts.MaxSafeC > 0 && settings.CooldownTargetC > s.opts.MaxSafeC {
		return control.Validationf("cooldown target %.1f exceeds safe limit %.1f", settings.CooldownTargetC, s.opts.MaxSafeC)
	}
	for _, p := range settings.Presets {
		if p.Material == "" {
			return control.Validationf("preset material name must not be empty")
		}
		if p.TempC < 0 {
			return control.Validationf("preset %q temperature must not be negative", p.Material)
		}
		if s.opts.MaxSafeC > 0 && p.TempC > s.opts.MaxSafeC {
			return control.Validationf("preset %q temperature %.1f exceeds safe limit %.1f", p.Material, p.TempC, s.opts.MaxSafeC)
		}
	}
	return nil
}
