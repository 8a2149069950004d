package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitForServerError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := &ServerError{Op: "database_init", Err: errors.New("locked"), ExitCode: ExitDatabaseError}

	assert.Equal(t, ExitDatabaseError, exitFor(logger, "failed to create server", err))
}

func TestExitForWrappedServerError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inner := &ServerError{Op: "http_server", Err: errors.New("bind failed"), ExitCode: ExitHTTPServerError}

	assert.Equal(t, ExitHTTPServerError, exitFor(logger, "server error", fmt.Errorf("start: %w", inner)))
}

func TestExitForPlainError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Equal(t, ExitConfigError, exitFor(logger, "server error", errors.New("boom")))
}
