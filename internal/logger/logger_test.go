package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zap.AtomicLevel{
		"debug":   zap.NewAtomicLevelAt(zap.DebugLevel),
		"WARN":    zap.NewAtomicLevelAt(zap.WarnLevel),
		"warning": zap.NewAtomicLevelAt(zap.WarnLevel),
		"error":   zap.NewAtomicLevelAt(zap.ErrorLevel),
		"":        zap.NewAtomicLevelAt(zap.InfoLevel),
		"verbose": zap.NewAtomicLevelAt(zap.InfoLevel),
	}
	for in, want := range cases {
		assert.Equal(t, want.Level(), parseLevel(in), in)
	}
}

func TestDefaultLoggerIsUsable(t *testing.T) {
	assert.NotNil(t, Logger)
	Named("test").Infow("no-op logger accepts writes", FieldCount, 1)
}

func TestInitializeJSON(t *testing.T) {
	prev := Logger
	defer func() { Logger = prev }()

	assert.NoError(t, Initialize(true, "debug"))
	assert.True(t, Logger.Desugar().Core().Enabled(zap.DebugLevel))
}
