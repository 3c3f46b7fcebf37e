package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bcnelson/facepoke-broker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccess struct {
	mu      sync.Mutex
	allowed map[string]bool
	err     error
}

func (f *fakeAccess) CanGenerate(ctx context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allowed[userID], f.err
}

func (f *fakeAccess) set(userID string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowed[userID] = ok
}

type fakeDispatcher struct {
	calls  atomic.Int32
	fail   bool
	delay  time.Duration
	mu     sync.Mutex
	source string
	expr   string
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, source, expr string) (*domain.SynthesisJob, error) {
	f.calls.Add(1)
	time.Sleep(f.delay)
	f.mu.Lock()
	f.source, f.expr = source, expr
	f.mu.Unlock()
	job := &domain.SynthesisJob{ID: "job-1", SourceImage: source, ExpressionImage: expr}
	if f.fail {
		job.Status = domain.JobFailed
		return job, domain.ErrRemoteService
	}
	job.Status = domain.JobSucceeded
	job.ImagePath = "results/job-1.png"
	return job, nil
}

func newMachine(recheck bool) (*Machine, *fakeAccess, *fakeDispatcher) {
	access := &fakeAccess{allowed: map[string]bool{"u1": true}}
	dispatcher := &fakeDispatcher{}
	return NewMachine(access, dispatcher, Options{RecheckAccess: recheck}), access, dispatcher
}

func TestFullFlow(t *testing.T) {
	ctx := context.Background()
	m, _, d := newMachine(true)

	res, err := m.Start(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwaitingSource, res.Outcome)
	assert.Equal(t, domain.StateAwaitingSourcePhoto, m.Get("u1").State)

	res = m.Text("u1")
	assert.Equal(t, OutcomeStillWaiting, res.Outcome)
	assert.Equal(t, domain.StateAwaitingSourcePhoto, m.Get("u1").State)

	res, err = m.Photo(ctx, "u1", "https://files/source.jpg", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwaitingExpression, res.Outcome)
	s := m.Get("u1")
	assert.Equal(t, domain.StateAwaitingExpressionPhoto, s.State)
	assert.Equal(t, "https://files/source.jpg", s.SourcePhotoRef)

	res, err = m.Photo(ctx, "u1", "https://files/expr.jpg", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	require.NotNil(t, res.Job)
	assert.Equal(t, "results/job-1.png", res.Job.ImagePath)
	assert.Equal(t, int32(1), d.calls.Load())
	assert.Equal(t, "https://files/source.jpg", d.source)
	assert.Equal(t, "https://files/expr.jpg", d.expr)

	s = m.Get("u1")
	assert.Equal(t, domain.StateIdle, s.State)
	assert.Empty(t, s.SourcePhotoRef)
}

func TestDispatchFailureStillResets(t *testing.T) {
	ctx := context.Background()
	m, _, d := newMachine(false)
	d.fail = true

	_, err := m.Start(ctx, "u1")
	require.NoError(t, err)
	_, err = m.Photo(ctx, "u1", "a", nil)
	require.NoError(t, err)
	res, err := m.Photo(ctx, "u1", "b", nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, int32(1), d.calls.Load())
	assert.Equal(t, domain.StateIdle, m.Get("u1").State)
	assert.Empty(t, m.Get("u1").SourcePhotoRef)
}

func TestStartDeniedWithoutKey(t *testing.T) {
	m, _, _ := newMachine(true)

	res, err := m.Start(context.Background(), "stranger")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, res.Outcome)
	assert.Equal(t, domain.StateIdle, m.Get("stranger").State)
}

func TestStartAccessError(t *testing.T) {
	m, access, _ := newMachine(true)
	access.err = errors.New("db down")

	_, err := m.Start(context.Background(), "u1")
	assert.Error(t, err)
	assert.Equal(t, domain.StateIdle, m.Get("u1").State)
}

func TestPhotoWhileIdleIgnored(t *testing.T) {
	m, _, d := newMachine(true)

	res, err := m.Photo(context.Background(), "u1", "a", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Equal(t, domain.StateIdle, m.Get("u1").State)
	assert.Zero(t, d.calls.Load())
}

func TestRestartClearsCapturedPhoto(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newMachine(true)

	_, _ = m.Start(ctx, "u1")
	_, _ = m.Photo(ctx, "u1", "stale", nil)
	res, err := m.Start(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, OutcomeAwaitingSource, res.Outcome)
	assert.Empty(t, m.Get("u1").SourcePhotoRef)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	m, _, d := newMachine(true)

	_, _ = m.Start(ctx, "u1")
	_, _ = m.Photo(ctx, "u1", "a", nil)
	res := m.Cancel("u1")

	assert.Equal(t, OutcomeCancelled, res.Outcome)
	s := m.Get("u1")
	assert.Equal(t, domain.StateIdle, s.State)
	assert.Empty(t, s.SourcePhotoRef)

	_, _ = m.Photo(ctx, "u1", "b", nil)
	assert.Zero(t, d.calls.Load())
}

func TestRecheckDeniesRevokedUser(t *testing.T) {
	ctx := context.Background()
	m, access, d := newMachine(true)

	_, _ = m.Start(ctx, "u1")
	access.set("u1", false)

	res, err := m.Photo(ctx, "u1", "a", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, res.Outcome)
	assert.Equal(t, domain.StateIdle, m.Get("u1").State)
	assert.Zero(t, d.calls.Load())
}

func TestNoRecheckKeepsFlowAfterRevocation(t *testing.T) {
	ctx := context.Background()
	m, access, _ := newMachine(false)

	_, _ = m.Start(ctx, "u1")
	access.set("u1", false)

	res, err := m.Photo(ctx, "u1", "a", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwaitingExpression, res.Outcome)
}

func TestConcurrentPhotosDispatchOnce(t *testing.T) {
	ctx := context.Background()
	m, _, d := newMachine(false)
	d.delay = 10 * time.Millisecond

	_, _ = m.Start(ctx, "u1")
	_, _ = m.Photo(ctx, "u1", "source", nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Photo(ctx, "u1", "expr", nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), d.calls.Load())
	assert.Equal(t, domain.StateIdle, m.Get("u1").State)
}

func TestSessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	m, access, _ := newMachine(true)
	access.set("u2", true)

	_, _ = m.Start(ctx, "u1")
	_, _ = m.Photo(ctx, "u1", "a", nil)
	_, _ = m.Start(ctx, "u2")

	assert.Equal(t, domain.StateAwaitingExpressionPhoto, m.Get("u1").State)
	assert.Equal(t, domain.StateAwaitingSourcePhoto, m.Get("u2").State)
}
