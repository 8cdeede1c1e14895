package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ValidationError carries per-field rejection messages for manual input.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a rejection message for key.
func (e *ValidationError) Add(key, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[key] = msg
}

type limits struct{ min, max float64 }

var manualLimits = map[string]limits{
	KeyUnitCount:        {1, 5000},
	KeySurface:          {10, 1_000_000},
	KeyConstructionYear: {1500, 2100},
	KeyConsumption:      {0, 2000},
	KeyPricePerSqm:      {100, 50_000},
}

// ApplyManual validates values and overlays them onto g tagged as manual.
// Unknown keys and malformed values are rejected per field; on any rejection
// g is returned unchanged together with a *ValidationError.
func ApplyManual(g GoldenData, values map[string]any, at time.Time) (GoldenData, error) {
	var patch GoldenData
	verr := &ValidationError{}

	for key, raw := range values {
		switch key {
		case KeyEnergyClass:
			s, ok := raw.(string)
			if !ok {
				verr.Add(key, "expected a letter A–G")
				continue
			}
			c, err := ParseEnergyClass(s)
			if err != nil {
				verr.Add(key, "expected a letter A–G")
				continue
			}
			patch.EnergyClass = FromManual(c, at)
		case KeyUnitCount, KeyConstructionYear:
			n, err := parseInteger(raw)
			if err != nil {
				verr.Add(key, err.Error())
				continue
			}
			if msg := checkRange(key, float64(n)); msg != "" {
				verr.Add(key, msg)
				continue
			}
			if key == KeyUnitCount {
				patch.Units = FromManual(n, at)
			} else {
				patch.ConstructionYear = FromManual(n, at)
			}
		case KeySurface, KeyConsumption, KeyPricePerSqm:
			f, err := parseNumber(raw)
			if err != nil {
				verr.Add(key, err.Error())
				continue
			}
			if msg := checkRange(key, f); msg != "" {
				verr.Add(key, msg)
				continue
			}
			switch key {
			case KeySurface:
				patch.Surface = FromManual(f, at)
			case KeyConsumption:
				patch.Consumption = FromManual(f, at)
			default:
				patch.PricePerSqm = FromManual(f, at)
			}
		case KeyManagerName:
			s, ok := raw.(string)
			if !ok || strings.TrimSpace(s) == "" {
				verr.Add(key, "expected a non-empty name")
				continue
			}
			patch.ManagerName = FromManual(strings.TrimSpace(s), at)
		default:
			verr.Add(key, "field cannot be entered manually")
		}
	}

	if len(verr.Fields) > 0 {
		return g, verr
	}
	return g.Overlay(patch), nil
}

func checkRange(key string, v float64) string {
	l, ok := manualLimits[key]
	if !ok {
		return ""
	}
	if v < l.min || v > l.max {
		return fmt.Sprintf("must be between %g and %g", l.min, l.max)
	}
	return ""
}

func parseNumber(raw any) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, eris.New("expected a number")
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", "."), 64)
		if err != nil {
			return 0, eris.New("expected a number")
		}
		f = parsed
	default:
		return 0, eris.New("expected a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.New("expected a finite number")
	}
	return f, nil
}

func parseInteger(raw any) (int, error) {
	f, err := parseNumber(raw)
	if err != nil {
		return 0, eris.New("expected an integer")
	}
	if f != math.Trunc(f) {
		return 0, eris.New("expected an integer")
	}
	return int(f), nil
}
