package cache

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// LogWriter is an io.Writer that keeps log output in Redis.
type LogWriter struct {
	db *DB
}

// NewLogWriter creates a new LogWriter.
func NewLogWriter(db *DB) *LogWriter {
	return &LogWriter{db: db}
}

// Write implements the io.Writer interface.
func (lw *LogWriter) Write(p []byte) (n int, err error) {
	// The input from the log package includes a newline, which we trim.
	entry := strings.TrimRight(string(p), "\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := lw.db.AddLog(ctx, entry); err != nil {
		// Logging through log here would recurse.
		fmt.Fprintf(os.Stderr, "could not write log to redis: %v\n", err)
	}
	return len(p), nil
}
