package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptPayloadDecoding(t *testing.T) {
	var req CreateTranscriptRequest
	err := json.Unmarshal([]byte(`{
		"demandes": [{"niveau": "l1", "quantite": 2}, {"niveau": "M2", "quantite": "3"}],
		"annee_universitaire": [2024, "2023", {"2022": true}, {}, true]
	}`), &req)
	require.NoError(t, err)

	require.Len(t, req.Levels, 2)
	assert.Equal(t, "l1", req.Levels[0].Level)
	assert.Equal(t, 2, req.Levels[0].Quantity.Value)
	assert.Equal(t, 3, req.Levels[1].Quantity.Value)

	require.Len(t, req.Years, 5)
	assert.Equal(t, "2024", req.Years[0].Value)
	assert.Equal(t, "2023", req.Years[1].Value)
	assert.Equal(t, "2022", req.Years[2].Value)
	assert.True(t, req.Years[3].Empty)
	assert.True(t, req.Years[4].Invalid)
}

func TestFlexibleIntRejectsGarbage(t *testing.T) {
	var payload struct {
		Q FlexibleInt `json:"q"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"q": "2x"}`), &payload))
	assert.True(t, payload.Q.Set)
	assert.True(t, payload.Q.Invalid)

	require.NoError(t, json.Unmarshal([]byte(`{"q": 1.5}`), &payload))
	assert.True(t, payload.Q.Invalid)

	payload.Q = FlexibleInt{}
	require.NoError(t, json.Unmarshal([]byte(`{"q": null}`), &payload))
	assert.False(t, payload.Q.Set)
}
