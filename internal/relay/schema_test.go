package relay

import (
	"testing"
)

func TestValidatePublish(t *testing.T) {
	tests := []struct {
		name     string
		document string
		wantErr  bool
	}{
		{
			name:     "valid numeric publish",
			document: `{"topic": "/knob/status", "value": 93}`,
			wantErr:  false,
		},
		{
			name:     "valid heartbeat publish",
			document: `{"topic": "/servo/status", "value": "heartbeat"}`,
			wantErr:  false,
		},
		{
			name:     "valid object value",
			document: `{"topic": "/knob/status", "value": {"angle": 93, "speed": 2}}`,
			wantErr:  false,
		},
		{
			name:     "valid fractional value",
			document: `{"topic": "/knob/status", "value": 92.5}`,
			wantErr:  false,
		},
		{
			name:     "deep topic path",
			document: `{"topic": "/room-3/knob_a/status", "value": 10}`,
			wantErr:  false,
		},
		{
			name:     "missing topic",
			document: `{"value": 93}`,
			wantErr:  true,
		},
		{
			name:     "missing value",
			document: `{"topic": "/knob/status"}`,
			wantErr:  true,
		},
		{
			name:     "topic without leading slash",
			document: `{"topic": "knob/status", "value": 93}`,
			wantErr:  true,
		},
		{
			name:     "topic with a single segment",
			document: `{"topic": "/knob", "value": 93}`,
			wantErr:  true,
		},
		{
			name:     "topic with illegal characters",
			document: `{"topic": "/knob status/!", "value": 93}`,
			wantErr:  true,
		},
		{
			name:     "boolean value",
			document: `{"topic": "/knob/status", "value": true}`,
			wantErr:  true,
		},
		{
			name:     "array value",
			document: `{"topic": "/knob/status", "value": [93]}`,
			wantErr:  true,
		},
		{
			name:     "unexpected extra field",
			document: `{"topic": "/knob/status", "value": 93, "seq": 4}`,
			wantErr:  true,
		},
		{
			name:     "not an object",
			document: `[1, 2, 3]`,
			wantErr:  true,
		},
		{
			name:     "not JSON at all",
			document: `topic=/knob/status`,
			wantErr:  true,
		},
		{
			name:     "empty document",
			document: ``,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePublish([]byte(tt.document))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePublish() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
