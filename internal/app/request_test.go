package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datasanitizer/internal/reason"
)

func TestDecodeSanitizeRequest(t *testing.T) {
	req, err := DecodeSanitizeRequest(map[string]any{
		"identifier": " D: ",
		"confirm":    true,
		"boundBytes": float64(1_000_000_000),
		"passCount":  float64(3),
	})
	require.NoError(t, err)
	assert.Equal(t, SanitizeRequest{Identifier: "D:", Confirm: true, BoundBytes: 1_000_000_000, PassCount: 3}, req)
}

func TestDecodeSanitizeRequestDefaultsConfirmToFalse(t *testing.T) {
	req, err := DecodeSanitizeRequest(map[string]any{"identifier": "/dev/sdb", "selected": true})
	require.Error(t, err, "unknown fields are rejected")
	assert.Equal(t, reason.InvalidRequest, reason.Of(err))

	req, err = DecodeSanitizeRequest(map[string]any{"identifier": "/dev/sdb"})
	require.NoError(t, err)
	assert.False(t, req.Confirm)
}

func TestDecodeSanitizeRequestRejects(t *testing.T) {
	cases := map[string]map[string]any{
		"nil":            nil,
		"no identifier":  {"confirm": true},
		"wrong type":     {"identifier": "D:", "confirm": "yes"},
		"too many":       {"identifier": "D:", "passCount": 36},
		"bad profile":    {"identifier": "D:", "profile": "gutmann"},
		"empty pattern":  {"identifier": "D:", "patterns": []any{"zero", ""}},
		"tiny chunk":     {"identifier": "D:", "chunkSize": 100},
		"negative bound": {"identifier": "D:", "boundBytes": -1},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSanitizeRequest(payload)
			require.Error(t, err)
			assert.Equal(t, reason.InvalidRequest, reason.Of(err))
		})
	}
}
