package log

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIncludesCaller(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })

	Error("Could not speak prompt", errors.New("device busy"))

	out := buf.String()
	assert.Contains(t, out, "[ERROR] in log/log_test.go:")
	assert.Contains(t, out, "Could not speak prompt")
	assert.Contains(t, out, "device busy")
}

func TestPrintf(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })

	Printf("listening in %s", "en-GB")
	assert.Contains(t, buf.String(), "listening in en-GB")
}

func TestPostWithoutSessionIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { Post("hello") })
}
