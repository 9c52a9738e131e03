package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	t.Run("filters below the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter("warn", &buf)

		log.Debug("debug line")
		log.Info("info line")
		log.Warn("warn line")
		log.Error("error line")

		out := buf.String()
		assert.NotContains(t, out, "debug line")
		assert.NotContains(t, out, "info line")
		assert.Contains(t, out, "warn line")
		assert.Contains(t, out, "error line")
	})

	t.Run("unknown level defaults to info", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter("verbose", &buf)

		log.Debug("debug line")
		log.Info("info line")

		assert.NotContains(t, buf.String(), "debug line")
		assert.Contains(t, buf.String(), "info line")
	})

	t.Run("emits key value pairs", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter("debug", &buf)

		log.Info("Feed connected", "from", 42)

		assert.Contains(t, buf.String(), "Feed connected")
		assert.Contains(t, buf.String(), "from=42")
	})
}

func TestWithComponent(t *testing.T) {
	t.Run("tags lines with the component name", func(t *testing.T) {
		var buf bytes.Buffer
		SetOutput(&buf)
		t.Cleanup(func() { defaultLogger = nil })

		log := WithComponent("stream_client")
		log.Info("Feed connected")

		assert.Contains(t, buf.String(), "component=stream_client")
	})

	t.Run("is safe before initialization", func(t *testing.T) {
		defaultLogger = nil

		log := WithComponent("early")
		assert.NotPanics(t, func() {
			log.Debug("dropped")
			log.Error("also dropped")
		})
	})
}

func TestPackageLevelFuncs(t *testing.T) {
	t.Run("drop silently before initialization", func(t *testing.T) {
		defaultLogger = nil

		assert.NotPanics(t, func() {
			Debug("a")
			Info("b")
			Warn("c")
			Error("d")
		})
	})

	t.Run("write through the default logger", func(t *testing.T) {
		var buf bytes.Buffer
		SetOutput(&buf)
		t.Cleanup(func() { defaultLogger = nil })

		Info("hello", "key", "value")

		assert.Contains(t, buf.String(), "hello")
		assert.Contains(t, buf.String(), "key=value")
	})
}
