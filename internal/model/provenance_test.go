package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlayField_LowerRankLeavesNoTrace(t *testing.T) {
	t.Parallel()

	var history []ProvenanceEvent
	dst := FromManual(20, t0)
	overlayField(KeyUnitCount, &dst, Estimated(18, "rule", t0), &history)

	assert.Equal(t, 20, dst.Value)
	assert.Empty(t, history)
}

func TestOverlayField_FirstValueNotAnEvent(t *testing.T) {
	t.Parallel()

	var history []ProvenanceEvent
	var dst Field[int]
	overlayField(KeyUnitCount, &dst, FromAPI(20, "rnic", t0), &history)

	assert.Equal(t, 20, dst.Value)
	assert.Empty(t, history)
}

func TestOverlayField_SourceChangeIsRecorded(t *testing.T) {
	t.Parallel()

	var history []ProvenanceEvent
	dst := FromAPI(1250.0, "cadastre", t0)
	later := t0.Add(2 * time.Hour)
	overlayField(KeySurface, &dst, FromAPI(1300.0, "rnic", later), &history)

	require.Len(t, history, 1)
	ev := history[0]
	assert.Equal(t, KeySurface, ev.FieldKey)
	assert.Equal(t, "1250", ev.PreviousValue)
	assert.Equal(t, "cadastre", ev.PreviousSource)
	assert.Equal(t, "1300", ev.NewValue)
	assert.Equal(t, "rnic", ev.NewSource)
	assert.Equal(t, later, ev.At)
}

func TestProvenanceEvent_JSON(t *testing.T) {
	t.Parallel()

	ev := ProvenanceEvent{
		FieldKey:       KeyEnergyClass,
		PreviousValue:  "F",
		PreviousOrigin: OriginAPI,
		PreviousSource: "dpe",
		NewValue:       "E",
		NewOrigin:      OriginManual,
		NewSource:      "user",
		At:             t0,
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "currentEnergyClass", m["field_key"])
	assert.Equal(t, "api", m["previous_origin"])
	assert.Equal(t, "manual", m["new_origin"])
}
