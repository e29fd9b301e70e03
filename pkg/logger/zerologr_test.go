package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newBufferLogger(buf *bytes.Buffer) logger {
	zl := zerolog.New(buf).Level(zerolog.TraceLevel)
	return NewWithOptions(Options{Logger: &zl}).(logger)
}

func TestLogLevelDefault(t *testing.T) {
	SetGlobalOptions(GlobalConfig{V: 0})

	var buf bytes.Buffer
	l := newBufferLogger(&buf)
	l.Info("info log1")
	assert.Contains(t, buf.String(), `"level":"info"`)
	assert.Contains(t, buf.String(), "info log1")

	buf.Reset()
	l.V(1).Info("debug log1")
	assert.Empty(t, buf.String())

	l.V(1).Error(errors.New("boom"), "err1")
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), "boom")
}

func TestLogLevelVerbose(t *testing.T) {
	SetGlobalOptions(GlobalConfig{V: 10})
	defer SetGlobalOptions(GlobalConfig{V: 0})

	var buf bytes.Buffer
	l := newBufferLogger(&buf)
	l.V(1).Info("debug log2")
	assert.Contains(t, buf.String(), `"level":"debug"`)

	buf.Reset()
	l.V(traceVerbosity).Info("trace log2")
	assert.Contains(t, buf.String(), `"level":"trace"`)
}

func TestLogNameAndValues(t *testing.T) {
	SetGlobalOptions(GlobalConfig{V: 0})

	var buf bytes.Buffer
	l := newBufferLogger(&buf).WithName("sfu").WithName("engine").WithValues("track_id", "t1")
	l.Info("forward", "ssrc", 42)
	out := buf.String()
	assert.Contains(t, out, `"name":"sfu/engine"`)
	assert.Contains(t, out, `"track_id":"t1"`)
	assert.Contains(t, out, `"ssrc":42`)

	buf.Reset()
	l.Info("odd", "key")
	assert.Contains(t, buf.String(), "zerologr-err")
}

func TestLevelToV(t *testing.T) {
	assert.Equal(t, 0, LevelToV("info"))
	assert.Equal(t, 0, LevelToV(""))
	assert.Equal(t, traceVerbosity-1, LevelToV("DEBUG"))
	assert.Equal(t, traceVerbosity, LevelToV("trace"))
	assert.Equal(t, -1, LevelToV("warn"))
}

func TestGlobalConfigVerbosity(t *testing.T) {
	assert.Equal(t, 3, GlobalConfig{V: 3}.Verbosity())
	assert.Equal(t, traceVerbosity, GlobalConfig{V: 3, Level: "trace"}.Verbosity())
	assert.Equal(t, -1, GlobalConfig{Level: "error"}.Verbosity())
}
