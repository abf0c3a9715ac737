package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronFor_HourlyVsDense(t *testing.T) {
	assert.Equal(t, "0 * * * *", CronFor(true))
	assert.Equal(t, "*/5 * * * *", CronFor(false))
}

func TestNewTickSource_RejectsMalformedExpression(t *testing.T) {
	_, err := NewTickSource("not a cron expression")
	assert.Error(t, err)
}

func TestNewTickSource_CurrentIsZeroBeforeFirstFire(t *testing.T) {
	ts, err := NewTickSource(CronFor(true))
	require.NoError(t, err)
	assert.True(t, ts.Current().IsZero())
}
