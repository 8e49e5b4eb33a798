// Package printer follows a Bambu Lab X1C over MQTT and turns its raw
// report stream into print job lifecycle calls on the controller.
package printer

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"chamberheat/internal/logger"
)

// JobSink receives print lifecycle transitions. The controller implements it.
type JobSink interface {
	HandleJobStarted(ctx context.Context, material string)
	HandleJobFinished(ctx context.Context)
	HandleJobFailed(ctx context.Context)
}

// Raw printer states as reported in gcode_state.
const (
	stateIdle    = "IDLE"
	statePrepare = "PREPARE"
	stateRunning = "RUNNING"
	statePause   = "PAUSE"
	stateFinish  = "FINISH"
	stateFailed  = "FAILED"
)

// startDebounce suppresses duplicate start triggers from the report stream;
// the printer repeats its state several times per second.
const startDebounce = 30 * time.Second

// externalSpoolSlot is the AMS slot number meaning "external spool".
const externalSpoolSlot = 255

// knownMaterials is checked longest-name-first so "PLA" never matches
// inside "PC" lookups and vice versa.
var knownMaterials = []string{"PETG", "NYLON", "HIPS", "PLA", "ABS", "ASA", "TPU", "PC"}

type report struct {
	Print *printReport `json:"print"`
}

type printReport struct {
	GcodeState  string     `json:"gcode_state"`
	SubtaskName string     `json:"subtask_name"`
	GcodeFile   string     `json:"gcode_file"`
	Mapping     []int      `json:"mapping"`
	VirSlot     []tray     `json:"vir_slot"`
	VtTray      *tray      `json:"vt_tray"`
	AMS         *amsReport `json:"ams"`
}

type amsReport struct {
	TrayTar json.RawMessage `json:"tray_tar"`
	TrayNow json.RawMessage `json:"tray_now"`
	Units   []amsUnit       `json:"ams"`
}

type amsUnit struct {
	Trays []tray `json:"tray"`
}

type tray struct {
	Type string `json:"tray_type"`
}

// Monitor tracks printer state transitions across report messages. Reports
// are partial: most fields, gcode_state included, may be missing from any
// given message, so previous values are carried forward.
type Monitor struct {
	mu           sync.Mutex
	sink         JobSink
	log          *logger.Logger
	prevState    string
	lastMaterial string
	lastFile     string
	lastTrigger  time.Time
	now          func() time.Time
}

func NewMonitor(sink JobSink, log *logger.Logger) *Monitor {
	return &Monitor{
		sink:      sink,
		log:       log,
		prevState: stateIdle,
		now:       time.Now,
	}
}

// Handle processes one raw report payload. Malformed or irrelevant messages
// are dropped; the report stream is noisy and must never crash the follower.
func (m *Monitor) Handle(ctx context.Context, payload []byte) {
	var r report
	if err := json.Unmarshal(payload, &r); err != nil {
		m.log.Debugw("printer_report_unparseable", "err", err)
		return
	}
	if r.Print == nil {
		return
	}
	p := r.Print

	m.mu.Lock()
	defer m.mu.Unlock()

	if name := fileName(p); name != "" {
		m.lastFile = name
	}
	material := m.materialLocked(p)

	state := p.GcodeState
	if state == "" {
		// Reports without gcode_state carry telemetry only.
		return
	}
	prev := m.prevState
	m.prevState = state

	switch {
	case printing(state) && !printing(prev) && prev != statePause:
		if now := m.now(); now.Sub(m.lastTrigger) > startDebounce {
			m.lastTrigger = now
			m.log.Infow("print_started", "file", m.lastFile, "material", material)
			m.sink.HandleJobStarted(ctx, material)
		}
	case state == stateFinish && active(prev):
		m.log.Infow("print_finished", "file", m.lastFile)
		m.sink.HandleJobFinished(ctx)
	case state == stateFailed && active(prev):
		m.log.Infow("print_failed_or_cancelled", "file", m.lastFile)
		m.sink.HandleJobFailed(ctx)
	}
}

func printing(state string) bool {
	return state == stateRunning || state == statePrepare
}

func active(state string) bool {
	return state == stateRunning || state == statePrepare || state == statePause
}

func fileName(p *printReport) string {
	if p.SubtaskName != "" {
		return p.SubtaskName
	}
	return p.GcodeFile
}

// materialLocked extracts the filament material for the current job.
// Priority: slicer mapping slot, then AMS active tray, then the file name;
// the last known value is kept while a print is active since most reports
// omit the AMS block.
func (m *Monitor) materialLocked(p *printReport) string {
	raw := rawMaterial(p)
	material := normalizeMaterial(raw)
	if material == "" && m.lastFile != "" {
		material = materialFromFileName(m.lastFile)
	}

	if material != "" {
		m.lastMaterial = material
		return material
	}
	if active(m.prevState) || printing(p.GcodeState) {
		return m.lastMaterial
	}
	return ""
}

func rawMaterial(p *printReport) string {
	// The slicer's mapping field names the slot the job actually uses.
	if len(p.Mapping) > 0 {
		slot := p.Mapping[0]
		if slot == externalSpoolSlot {
			if len(p.VirSlot) > 0 && p.VirSlot[0].Type != "" {
				return p.VirSlot[0].Type
			}
			if p.VtTray != nil {
				return p.VtTray.Type
			}
			return ""
		}
		if t, ok := amsTray(p.AMS, slot); ok {
			return t
		}
	}

	// Fallback: whichever tray the AMS says is loaded or targeted.
	if p.AMS != nil {
		slot, ok := trayIndex(p.AMS.TrayTar)
		if !ok {
			slot, ok = trayIndex(p.AMS.TrayNow)
		}
		if ok {
			if slot == externalSpoolSlot {
				if p.VtTray != nil {
					return p.VtTray.Type
				}
				return ""
			}
			if t, found := amsTray(p.AMS, slot); found {
				return t
			}
		}
	}
	return ""
}

func amsTray(ams *amsReport, slot int) (string, bool) {
	if ams == nil || len(ams.Units) == 0 || slot < 0 {
		return "", false
	}
	trays := ams.Units[0].Trays
	if slot >= len(trays) {
		return "", false
	}
	return trays[slot].Type, true
}

// trayIndex decodes an AMS tray number, which the printer sends sometimes
// as a JSON number and sometimes as a quoted string.
func trayIndex(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
	}
	return 0, false
}

// normalizeMaterial maps tray labels like "PLA Basic" or "ABS-GF" onto the
// preset material names.
func normalizeMaterial(raw string) string {
	if raw == "" {
		return ""
	}
	upper := strings.ToUpper(raw)
	for _, mat := range knownMaterials {
		if upper == mat {
			return mat
		}
	}
	for _, mat := range knownMaterials {
		if strings.Contains(upper, mat) {
			return mat
		}
	}
	return ""
}

var fileMaterialPatterns = buildFilePatterns()

func buildFilePatterns() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(knownMaterials))
	for _, mat := range knownMaterials {
		out[mat] = regexp.MustCompile(`(?:^|[_\-\s])` + mat + `(?:$|[_\-\s.])`)
	}
	return out
}

// materialFromFileName guesses the material from tokens in the job file
// name, matching on separators so "PC" never fires inside "3PCS".
func materialFromFileName(name string) string {
	upper := strings.ToUpper(name)
	for _, mat := range knownMaterials {
		if fileMaterialPatterns[mat].MatchString(upper) {
			return mat
		}
	}
	return ""
}
