package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOrNop(t *testing.T) {
	assert.IsType(t, NopLogger{}, OrNop(nil), "Nil should fall back to no-op logger")

	sugar := zap.NewNop().Sugar()
	assert.Equal(t, Logger(sugar), OrNop(sugar), "Should keep the supplied logger")
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"production defaults", Config{}, false},
		{"debug console", Config{Debug: true}, false},
		{"explicit level", Config{Level: "warn", Format: "json"}, false},
		{"bad level", Config{Level: "loud"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNormalizeFormat(t *testing.T) {
	assert.Equal(t, "console", normalizeFormat("Console", false))
	assert.Equal(t, "json", normalizeFormat("", false))
	assert.Equal(t, "console", normalizeFormat("", true))
}
