package system

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	u, err := Read(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, u.CPUPercent, 0.0)
	assert.LessOrEqual(t, u.CPUPercent, 100.0)
	assert.Greater(t, u.MemoryPercent, 0.0)
	assert.Greater(t, u.UptimeSeconds, uint64(0))
}
