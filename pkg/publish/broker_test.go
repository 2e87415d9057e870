package publish

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		addr     string
		host     string
		port     string
		hasError bool
	}{
		{"10.0.0.9:1883", "10.0.0.9", "1883", false},
		{"broker.local:8883", "broker.local", "8883", false},
		{"::1:1883", "::1", "1883", false},
		{"broker.local", "", "", true},
		{":1883", "", "", true},
		{"broker.local:", "", "", true},
	}
	for _, tt := range tests {
		host, port, err := splitHostPort(tt.addr)
		if tt.hasError {
			assert.Error(t, err, tt.addr)
			continue
		}
		assert.NoError(t, err, tt.addr)
		assert.Equal(t, tt.host, host, tt.addr)
		assert.Equal(t, tt.port, port, tt.addr)
	}
}

func TestParsePort(t *testing.T) {
	assert.Equal(t, uint16(1883), parsePort("1883"))
	assert.Equal(t, uint16(0), parsePort("18a3"))
	assert.Equal(t, uint16(0), parsePort(""))
}
