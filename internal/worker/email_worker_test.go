package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusperks/backend/internal/models"
	"github.com/campusperks/backend/pkg/queue"
)

type fakeLogStore struct {
	mu      sync.Mutex
	created []*models.EmailLog
	sent    []uuid.UUID
	failed  map[uuid.UUID]string
}

func newFakeLogStore() *fakeLogStore {
	return &fakeLogStore{failed: map[uuid.UUID]string{}}
}

func (f *fakeLogStore) Create(_ context.Context, log *models.EmailLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	log.ID = uuid.New()
	f.created = append(f.created, log)
	return nil
}

func (f *fakeLogStore) MarkSent(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeLogStore) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = errMsg
	return nil
}

type fakeSender struct {
	mu       sync.Mutex
	failures int
	sent     []string
}

func (f *fakeSender) Send(_ context.Context, to, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("connection refused")
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeQueue struct {
	mu      sync.Mutex
	jobs    []*queue.Job
	retried []*queue.Job
}

func (f *fakeQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.jobs) == 0 {
		return nil, ctx.Err()
	}
	job := f.jobs[0]
	f.jobs = f.jobs[1:]
	return job, nil
}

func (f *fakeQueue) Retry(_ context.Context, job *queue.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job.Attempt++
	f.retried = append(f.retried, job)
	return nil
}

func emailJob(t *testing.T, to string) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(queue.EmailPayload{
		EmailType:      models.EmailTypeRegistrationOTP,
		RecipientEmail: to,
		Subject:        "Your code",
		BodyHTML:       "<p>123456</p>",
	})
	require.NoError(t, err)
	return &queue.Job{ID: uuid.New().String(), Type: queue.JobTypeEmail, Payload: payload}
}

func TestProcessDeliversAndRecords(t *testing.T) {
	logs := newFakeLogStore()
	sender := &fakeSender{}
	q := &fakeQueue{}
	p := NewEmailProcessor(q, sender, logs, nil)

	p.process(context.Background(), emailJob(t, "a@uni.edu"))

	require.Len(t, logs.created, 1)
	assert.Equal(t, "a@uni.edu", logs.created[0].RecipientEmail)
	assert.Len(t, logs.sent, 1)
	assert.Empty(t, logs.failed)
	assert.Equal(t, []string{"a@uni.edu"}, sender.sent)
	assert.Empty(t, q.retried)
}

func TestProcessRecordsFailureAndRetries(t *testing.T) {
	logs := newFakeLogStore()
	sender := &fakeSender{failures: 1}
	q := &fakeQueue{}
	p := NewEmailProcessor(q, sender, logs, nil)

	job := emailJob(t, "a@uni.edu")
	p.process(context.Background(), job)

	require.Len(t, logs.created, 1)
	assert.Empty(t, logs.sent)
	assert.Contains(t, logs.failed[logs.created[0].ID], "connection refused")
	require.Len(t, q.retried, 1)
	assert.Equal(t, 1, q.retried[0].Attempt)

	// The retried job succeeds on the next attempt.
	p.process(context.Background(), q.retried[0])
	assert.Len(t, logs.sent, 1)
}

func TestProcessDropsMalformedPayload(t *testing.T) {
	logs := newFakeLogStore()
	sender := &fakeSender{}
	q := &fakeQueue{}
	p := NewEmailProcessor(q, sender, logs, nil)

	p.process(context.Background(), &queue.Job{
		ID:      uuid.New().String(),
		Type:    queue.JobTypeEmail,
		Payload: json.RawMessage(`{not json`),
	})

	assert.Empty(t, logs.created)
	assert.Empty(t, sender.sent)
	assert.Empty(t, q.retried, "undeliverable jobs are dropped, not retried")
}
