package cli

import (
	"bytes"
	"context"
	"log/slog"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpiboard/internal/config"
	"kpiboard/internal/core"
	"kpiboard/internal/log"
)

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(slog.LevelWarn, log.ComponentWorker, &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "component=worker")
}

func TestOpenBackend_Memory(t *testing.T) {
	cfg := &config.Config{DataBackend: "memory", DataDir: t.TempDir()}
	logger := SetupLogger(slog.LevelError, log.ComponentApp, &bytes.Buffer{})

	res, err := OpenBackend(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer res.Close()

	// Missing CSV files fall back to the built-in sample tables.
	tbl, err := res.Store.Read(context.Background(), core.ConfigTable)
	require.NoError(t, err)
	assert.NotEmpty(t, tbl.Rows)
	assert.Nil(t, res.Cache, "zero TTL disables the cache")
}

func TestOpenBackend_InvalidType(t *testing.T) {
	cfg := &config.Config{DataBackend: "floppy"}
	logger := SetupLogger(slog.LevelError, log.ComponentApp, &bytes.Buffer{})

	_, err := OpenBackend(context.Background(), cfg, logger)
	assert.Error(t, err)
}

func TestGracefulShutdown(t *testing.T) {
	logger := SetupLogger(slog.LevelError, log.ComponentApp, &bytes.Buffer{})

	cleaned := make(chan struct{})
	ctx, done := GracefulShutdown(logger, time.Second, func(context.Context) { close(cleaned) })

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}
	assert.Error(t, ctx.Err())
	select {
	case <-cleaned:
	default:
		t.Fatal("cleanup was not run")
	}
}
