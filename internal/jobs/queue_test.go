package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_Enqueue_DeduplicatesSameKey(t *testing.T) {
	q := NewQueue(2, nil)

	jobA, createdA := q.Enqueue(EnqueueRequest{
		Source:    "manual",
		DedupeKey: "lesson1.txt|1724949000",
	})
	jobB, createdB := q.Enqueue(EnqueueRequest{
		Source:    "cron",
		DedupeKey: "lesson1.txt|1724949000",
	})

	require.True(t, createdA)
	require.False(t, createdB)
	require.NotNil(t, jobA)
	require.NotNil(t, jobB)
	assert.Equal(t, jobA.ID, jobB.ID)
}

func TestQueue_Enqueue_AllowsRetryAfterFailure(t *testing.T) {
	q := NewQueue(1, nil)

	var attempts int
	q.Start(func(_ context.Context, _ *CompileJob) (JobResult, error) {
		attempts++
		if attempts == 1 {
			return JobResult{}, assert.AnError
		}
		return JobResult{AudioTrack: "lesson.wav"}, nil
	})
	defer q.Stop()

	first, created := q.Enqueue(EnqueueRequest{
		Source:    "manual",
		DedupeKey: "retry-key",
	})
	require.True(t, created)
	require.NotNil(t, first)

	require.Eventually(t, func() bool {
		got, ok := q.Get(first.ID)
		return ok && got != nil && got.Status == StatusFailed
	}, time.Second, 10*time.Millisecond)

	second, created := q.Enqueue(EnqueueRequest{
		Source:    "manual",
		DedupeKey: "retry-key",
	})
	require.True(t, created)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)

	require.Eventually(t, func() bool {
		got, ok := q.Get(second.ID)
		return ok && got != nil && got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_Worker_RecordsResult(t *testing.T) {
	q := NewQueue(1, nil)
	q.Start(func(_ context.Context, job *CompileJob) (JobResult, error) {
		return JobResult{
			AudioTrack:   "out/lesson.wav",
			SubtitleFile: "out/lesson.srt",
			FailedUnits:  1,
		}, nil
	})
	defer q.Stop()

	job, created := q.Enqueue(EnqueueRequest{
		Source:    "cron",
		DedupeKey: "result-key",
		Payload:   JobPayload{PhraseFile: "lesson.txt", OutputBase: "lesson"},
	})
	require.True(t, created)

	require.Eventually(t, func() bool {
		got, ok := q.Get(job.ID)
		return ok && got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)

	got, ok := q.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, "out/lesson.wav", got.Result.AudioTrack)
	assert.Equal(t, "out/lesson.srt", got.Result.SubtitleFile)
	assert.Equal(t, 1, got.Result.FailedUnits)
	assert.Empty(t, got.Error)
}
