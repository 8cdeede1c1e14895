package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestOverlay_PrecedenceNeverDowngrades(t *testing.T) {
	tests := []struct {
		name     string
		existing Field[int]
		incoming Field[int]
		want     Origin
		wantVal  int
	}{
		{"absent takes anything", Field[int]{}, Fallback(3, "rule", t0), OriginFallback, 3},
		{"api beats estimated", Estimated(10, "rule", t0), FromAPI(12, "rnic", t0), OriginAPI, 12},
		{"estimated cannot replace api", FromAPI(12, "rnic", t0), Estimated(10, "rule", t0), OriginAPI, 12},
		{"fallback cannot replace manual", FromManual(8, t0), Fallback(1, "rule", t0), OriginManual, 8},
		{"api cannot replace manual", FromManual(8, t0), FromAPI(9, "rnic", t0), OriginManual, 8},
		{"newer api wins", FromAPI(12, "rnic", t0), FromAPI(14, "rnic", t0.Add(time.Hour)), OriginAPI, 14},
		{"manual replaces manual", FromManual(8, t0), FromManual(9, t0), OriginManual, 9},
		{"absent incoming ignored", FromAPI(12, "rnic", t0), Field[int]{}, OriginAPI, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := GoldenData{Units: tt.existing}.Overlay(GoldenData{Units: tt.incoming})
			assert.Equal(t, tt.want, g.Units.Origin)
			assert.Equal(t, tt.wantVal, g.Units.Value)
		})
	}
}

func TestOverlay_RecordsHistoryOnReplacement(t *testing.T) {
	base := GoldenData{EnergyClass: FromAPI(ClassF, "dpe", t0)}
	g := base.Overlay(GoldenData{EnergyClass: FromManual(ClassE, t0.Add(time.Minute))})

	require.Len(t, g.History, 1)
	ev := g.History[0]
	assert.Equal(t, KeyEnergyClass, ev.FieldKey)
	assert.Equal(t, "F", ev.PreviousValue)
	assert.Equal(t, OriginAPI, ev.PreviousOrigin)
	assert.Equal(t, "E", ev.NewValue)
	assert.Equal(t, OriginManual, ev.NewOrigin)

	assert.Empty(t, base.History, "overlay must not mutate its receiver")
}

func TestOverlay_IdenticalValueNoHistory(t *testing.T) {
	f := FromAPI("12 rue de la Paix 75002 Paris", "ban", t0)
	g := GoldenData{Address: f}.Overlay(GoldenData{Address: f})
	assert.Empty(t, g.History)
}

func TestMissingFields_Exhaustive(t *testing.T) {
	full := GoldenData{
		EnergyClass: FromAPI(ClassF, "dpe", t0),
		Units:       FromAPI(20, "rnic", t0),
		Surface:     FromAPI(1300.0, "dpe", t0),
	}
	assert.True(t, full.Complete())

	cases := map[string]func(*GoldenData){
		KeyEnergyClass: func(g *GoldenData) { g.EnergyClass = Field[EnergyClass]{} },
		KeyUnitCount:   func(g *GoldenData) { g.Units = Field[int]{} },
		KeySurface:     func(g *GoldenData) { g.Surface = Field[float64]{} },
	}
	for key, drop := range cases {
		t.Run(key, func(t *testing.T) {
			g := full
			drop(&g)
			missing := g.MissingFields()
			require.Len(t, missing, 1)
			assert.Equal(t, key, missing[0].Key)
			assert.False(t, g.Complete())
		})
	}

	all := GoldenData{}.MissingFields()
	require.Len(t, all, 3)
	assert.Equal(t, []string{KeyEnergyClass, KeyUnitCount, KeySurface},
		[]string{all[0].Key, all[1].Key, all[2].Key})
	assert.Equal(t, InputSelect, all[0].InputType)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F", "G"}, all[0].Options)
}

func TestField_JSONAbsentIsNull(t *testing.T) {
	var g GoldenData
	g.City = FromAPI("Lyon", "ban", t0)

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"postal_code":null`)
	assert.Contains(t, string(data), `"origin":"api"`)

	var back GoldenData
	require.NoError(t, json.Unmarshal(data, &back))
	assert.False(t, back.PostalCode.Present())
	assert.Equal(t, "Lyon", back.City.Value)
	assert.Equal(t, OriginAPI, back.City.Origin)
}

func TestOrigins(t *testing.T) {
	g := GoldenData{
		Address:     FromAPI("x", "ban", t0),
		Surface:     Estimated(1300.0, "units", t0),
		PricePerSqm: Fallback(3500.0, "theoretical", t0),
	}
	assert.Equal(t, map[string]Origin{
		KeyAddress:     OriginAPI,
		KeySurface:     OriginEstimated,
		KeyPricePerSqm: OriginFallback,
	}, g.Origins())
}
