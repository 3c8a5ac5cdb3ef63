package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResultBuilder_Success(t *testing.T) {
	started := time.Now()
	b := NewResultBuilder("t1", "r1").
		SetStarted(started).
		SetWorkerID("worker-1").
		SetHTTPStatus(200).
		SetExtractionStats(ExtractionStats{RecordsExtracted: 3, RecordsValid: 3}).
		SetBronzePath("acme/2026/07/31/t1/")

	env := b.BuildSuccess(started.Add(time.Second))
	assert.Equal(t, ResultSuccess, env.Status)
	assert.True(t, env.IsSuccess())
	assert.False(t, env.ShouldRetry())
	assert.Equal(t, "t1", env.TaskID)
	assert.Equal(t, "acme/2026/07/31/t1/", env.Pointers.BronzePath)
}

func TestResultBuilder_FailedRetryable(t *testing.T) {
	now := time.Now()
	env := NewResultBuilder("t1", "r1").
		AddError(NewHTTPError(503, "service unavailable")).
		BuildFailed(now)
	assert.True(t, env.ShouldRetry())
}

func TestResultBuilder_FailedNonRetryable(t *testing.T) {
	now := time.Now()
	env := NewResultBuilder("t1", "r1").
		AddError(NewError(CodeValidationError, "bad schema")).
		BuildFailed(now)
	assert.False(t, env.ShouldRetry())
}
