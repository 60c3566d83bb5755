package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger scoped to the running test.
func TestLogger(t *testing.T) *log.Logger {
	t.Helper()
	logger := log.New(os.Stdout, "["+t.Name()+"] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}
