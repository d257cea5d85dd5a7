package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSessionRequest_WantsEducationalNote(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"flag absent", `{"condition_id": "cond_asthma"}`, true},
		{"flag true", `{"condition_id": "cond_asthma", "generate_educational_note": true}`, true},
		{"flag false", `{"condition_id": "cond_asthma", "generate_educational_note": false}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req StartSessionRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.want, req.WantsEducationalNote())
		})
	}
}
