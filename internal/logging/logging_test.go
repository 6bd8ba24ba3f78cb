package logging

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func resetLoggerForTest() {
	initOnce = sync.Once{}
	logger = nil
	exitFunc = os.Exit
}

func TestParseLevelMappings(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestLoggerSingleton(t *testing.T) {
	resetLoggerForTest()
	assert.Same(t, L(), L())
}

func TestLevelFromEnvironment(t *testing.T) {
	resetLoggerForTest()
	t.Setenv("SMARTEVENTS_LOG_LEVEL", "warn")

	log := L()
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestJSONFormatFromEnvironment(t *testing.T) {
	resetLoggerForTest()
	t.Setenv("SMARTEVENTS_LOG_FORMAT", "json")

	// Building the JSON config must not fall back to the development
	// logger, which always enables debug.
	log := L()
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestFatalInvokesExitFunction(t *testing.T) {
	resetLoggerForTest()

	var exitCode int
	exitFunc = func(code int) {
		exitCode = code
	}

	logger = zap.NewNop()
	initOnce.Do(func() {}) // mark as done so L() keeps the nop logger

	Fatal("boom", zap.String("key", "value"))

	require.Equal(t, 1, exitCode)
}

func TestSync(t *testing.T) {
	resetLoggerForTest()
	assert.Nil(t, Sync())

	L()
	_ = Sync() // stderr may legitimately refuse to sync
}
