package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func init() {
	color.NoColor = true
}

func TestConsoleHandlerFormatsAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelInfo)

	l.With("component", "hub").Info("client joined room", slog.String("chatId", "c1"), slog.Int("members", 2))

	line := buf.String()
	assert.Contains(t, line, "| INFO  | client joined room")
	assert.Contains(t, line, " component=hub")
	assert.Contains(t, line, " chatId=c1")
	assert.Contains(t, line, " members=2")
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelWarn)

	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestConsoleHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelDebug)

	l.WithGroup("req").Debug("handled", slog.String("id", "r1"), slog.Group("user", slog.String("id", "u1")))

	assert.Contains(t, buf.String(), " req.id=r1")
	assert.Contains(t, buf.String(), " req.user.id=u1")
}

func TestDiscardDropsEverything(t *testing.T) {
	assert.False(t, Discard().Enabled(context.Background(), LevelFatal))
}
