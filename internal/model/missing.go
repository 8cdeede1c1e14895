package model

// InputType suggests the form control for a manual entry.
type InputType string

// Input types for missing fields.
const (
	InputSelect  InputType = "select"
	InputInteger InputType = "integer"
	InputNumber  InputType = "number"
	InputText    InputType = "text"
)

// MissingField describes a required value the registries could not supply.
type MissingField struct {
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	InputType InputType `json:"input_type"`
	Options   []string  `json:"options,omitempty"`
	Unit      string    `json:"unit,omitempty"`
	Min       float64   `json:"min,omitempty"`
	Max       float64   `json:"max,omitempty"`
}

func energyClassOptions() []string {
	out := make([]string, 0, len(EnergyClasses))
	for i := len(EnergyClasses) - 1; i >= 0; i-- {
		out = append(out, string(EnergyClasses[i]))
	}
	return out
}

// MissingFields lists the required fields absent from g, in a fixed order:
// energy class, unit count, surface.
func (g GoldenData) MissingFields() []MissingField {
	var out []MissingField
	if !g.EnergyClass.Present() {
		out = append(out, MissingField{
			Key:       KeyEnergyClass,
			Label:     "Étiquette DPE actuelle",
			InputType: InputSelect,
			Options:   energyClassOptions(),
		})
	}
	if !g.Units.Present() {
		out = append(out, MissingField{
			Key:       KeyUnitCount,
			Label:     "Nombre de lots d'habitation",
			InputType: InputInteger,
			Min:       manualLimits[KeyUnitCount].min,
			Max:       manualLimits[KeyUnitCount].max,
		})
	}
	if !g.Surface.Present() {
		out = append(out, MissingField{
			Key:       KeySurface,
			Label:     "Surface habitable totale",
			InputType: InputNumber,
			Unit:      "m²",
			Min:       manualLimits[KeySurface].min,
			Max:       manualLimits[KeySurface].max,
		})
	}
	return out
}

// Complete reports whether every required field is present.
func (g GoldenData) Complete() bool {
	return len(g.MissingFields()) == 0
}
