package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eblago/backend/pkg/queue"
)

type fakeDeleter struct {
	mu      sync.Mutex
	deleted []string
	fail    int
}

func (f *fakeDeleter) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return errors.New("storage unavailable")
	}
	f.deleted = append(f.deleted, url)
	return nil
}

func (f *fakeDeleter) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// chanSource feeds jobs from a channel and pushes retries back onto it.
type chanSource struct {
	jobs    chan *queue.Job
	mu      sync.Mutex
	retries int
}

func (s *chanSource) Dequeue(ctx context.Context) (*queue.Job, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case j := <-s.jobs:
		return j, queue.QueueImages, nil
	case <-time.After(10 * time.Millisecond):
		return nil, "", nil
	}
}

func (s *chanSource) Retry(_ context.Context, job *queue.Job) error {
	s.mu.Lock()
	s.retries++
	s.mu.Unlock()
	job.Attempt++
	s.jobs <- job
	return nil
}

func imageJob(t *testing.T, url string) *queue.Job {
	body, err := json.Marshal(queue.ImageDeletePayload{URL: url, Reason: "test"})
	require.NoError(t, err)
	return &queue.Job{ID: "job-1", Type: queue.JobTypeImageDelete, Payload: body}
}

func TestProcess(t *testing.T) {
	del := &fakeDeleter{}
	p := NewImageCleanupProcessor(del, nil, nil)
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, imageJob(t, "https://img.test/events/a.png")))
	assert.Equal(t, []string{"https://img.test/events/a.png"}, del.urls())

	require.NoError(t, p.Process(ctx, imageJob(t, "")))
	assert.Len(t, del.urls(), 1)

	err := p.Process(ctx, &queue.Job{Type: "unknown"})
	assert.Error(t, err)

	err = p.Process(ctx, &queue.Job{Type: queue.JobTypeImageDelete, Payload: json.RawMessage(`{`)})
	assert.Error(t, err)
}

func TestRunRetriesFailedJobs(t *testing.T) {
	del := &fakeDeleter{fail: 1}
	src := &chanSource{jobs: make(chan *queue.Job, 4)}
	p := NewImageCleanupProcessor(del, src, nil)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	src.jobs <- imageJob(t, "https://img.test/avatars/b.png")
	assert.Eventually(t, func() bool { return len(del.urls()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, 1, src.retries)
}
