package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorCloser struct{ err error }

func (c *errorCloser) Close() error { return c.err }

func TestStructuredLogger(t *testing.T) {
	t.Run("writes JSON records", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)
		logger.Info("test message", slog.String("component", "test"), slog.Int("count", 42))

		output := buf.String()
		assert.Contains(t, output, `"level":"INFO"`)
		assert.Contains(t, output, `"msg":"test message"`)
		assert.Contains(t, output, `"component":"test"`)
		assert.Contains(t, output, `"count":42`)
	})

	t.Run("respects the level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelWarn)
		logger.Info("info message")
		logger.Warn("warning message")

		assert.NotContains(t, buf.String(), "info message")
		assert.Contains(t, buf.String(), "warning message")
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestHelpers(t *testing.T) {
	t.Run("LogError", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)
		LogError(logger, "failed to fetch feed", assert.AnError, slog.String("url", "http://example.com"))

		output := buf.String()
		assert.Contains(t, output, `"level":"ERROR"`)
		assert.Contains(t, output, `"msg":"failed to fetch feed"`)
		assert.Contains(t, output, `"url":"http://example.com"`)
		assert.Contains(t, output, assert.AnError.Error())
	})

	t.Run("LogOperation drops zero durations", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)
		LogOperation(logger, "journey_search", slog.Int("journeys", 2), slog.Duration("duration", 0))

		output := buf.String()
		assert.Contains(t, output, `"msg":"journey_search"`)
		assert.Contains(t, output, `"journeys":2`)
		assert.NotContains(t, output, `"duration"`)
	})

	t.Run("LogHTTPRequest", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)
		LogHTTPRequest(logger, "GET", "/api/plan/journeys.json", 200, 1500*time.Microsecond)

		output := buf.String()
		assert.Contains(t, output, `"msg":"http_request"`)
		assert.Contains(t, output, `"status":200`)
		assert.Contains(t, output, `"duration_ms":1.5`)
	})

	t.Run("Component", func(t *testing.T) {
		var buf bytes.Buffer
		Component(NewStructuredLogger(&buf, slog.LevelInfo), "gtfs_static_updater").Info("tick")
		assert.Contains(t, buf.String(), `"component":"gtfs_static_updater"`)
	})

	t.Run("nil loggers are ignored", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogError(nil, "x", assert.AnError)
			LogOperation(nil, "x")
			LogHTTPRequest(nil, "GET", "/", 200, 0)
		})
	})
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, slog.LevelInfo)
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}

func TestSafeClose(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, slog.LevelInfo)

	SafeCloseWithLogging(&errorCloser{}, logger, "ok")
	assert.Empty(t, buf.String())

	SafeCloseWithLogging(&errorCloser{err: assert.AnError}, logger, "feed_body")
	assert.Contains(t, buf.String(), `"msg":"failed to close resource"`)
	assert.Contains(t, buf.String(), `"operation":"feed_body"`)
}

func TestHandleDeferredError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, slog.LevelInfo)

	t.Run("sets the error when none", func(t *testing.T) {
		var err error
		HandleDeferredError(&err, func() error { return assert.AnError }, logger, "close_zip")
		require.Error(t, err)
		assert.True(t, errors.Is(err, assert.AnError))
	})

	t.Run("keeps the original error", func(t *testing.T) {
		original := errors.New("parse failed")
		err := original
		HandleDeferredError(&err, func() error { return assert.AnError }, logger, "close_zip")
		assert.Same(t, original, err)
	})
}
