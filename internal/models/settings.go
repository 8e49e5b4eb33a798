package models

// Preset maps a filament material to a chamber temperature and fan policy.
// TempC of zero means the material needs no chamber heating.
type Preset struct {
	Material string  `json:"material"`
	TempC    float64 `json:"temp_c"`
	Fans     bool    `json:"fans"`
}

// Settings are the persisted tuning knobs of the controller.
type Settings struct {
	HysteresisC     float64 `json:"hysteresis_c"`
	ToleranceC      float64 `json:"tolerance_c"`
	CooldownHours   float64 `json:"cooldown_hours"`
	CooldownTargetC float64 `json:"cooldown_target_c"`

	SkipPreheat                bool `json:"skip_preheat"`
	RequirePreheatConfirmation bool `json:"require_preheat_confirmation"`
	AutoStartEnabled           bool `json:"auto_start_enabled"`
	FansEnabled                bool `json:"fans_enabled"`

	Presets []Preset `json:"presets,omitempty"`
}

// DefaultSettings mirror a sensible first-boot configuration.
func DefaultSettings() Settings {
	return Settings{
		HysteresisC:      2.0,
		ToleranceC:       1.0,
		CooldownHours:    4.0,
		CooldownTargetC:  21.0,
		AutoStartEnabled: true,
		FansEnabled:      true,
		Presets: []Preset{
			{Material: "ABS", TempC: 60, Fans: true},
			{Material: "ASA", TempC: 65, Fans: true},
			{Material: "PC", TempC: 60, Fans: false},
			{Material: "PETG", TempC: 40, Fans: true},
			{Material: "PLA", TempC: 0, Fans: false},
			{Material: "TPU", TempC: 40, Fans: false},
			{Material: "NYLON", TempC: 60, Fans: false},
		},
	}
}

// PresetFor looks up a preset by material, case-sensitive exact match.
func (s Settings) PresetFor(material string) (Preset, bool) {
	for _, p := range s.Presets {
		if p.Material == material {
			return p, true
		}
	}
	return Preset{}, false
}
