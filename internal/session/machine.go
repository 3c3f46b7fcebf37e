// Package session tracks each user's progress through the two-photo flow.
//
// Sessions live in process memory only; a restart drops in-flight flows.
// Every transition for a user runs under that user's lock, including the
// dispatch of the finished job, so racing messages from one user are applied
// one at a time.
package session

import (
	"context"
	"sync"

	"github.com/bcnelson/facepoke-broker/internal/domain"
)

// AccessChecker reports whether a user may run the generate flow.
type AccessChecker interface {
	CanGenerate(ctx context.Context, userID string) (bool, error)
}

// JobDispatcher submits a completed pair of photos.
type JobDispatcher interface {
	Dispatch(ctx context.Context, sourceImage, expressionImage string) (*domain.SynthesisJob, error)
}

// Outcome tells the caller what a transition did.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeDenied
	OutcomeAwaitingSource
	OutcomeAwaitingExpression
	OutcomeStillWaiting
	OutcomeCompleted
	OutcomeFailed
	OutcomeCancelled
)

// Result is the outcome of one event plus the state it left behind.
type Result struct {
	Outcome Outcome
	State   domain.SessionState
	Job     *domain.SynthesisJob
}

// Options configures a Machine.
type Options struct {
	// RecheckAccess re-validates the user's key whenever a photo arrives.
	RecheckAccess bool
}

type userSession struct {
	mu      sync.Mutex
	session domain.Session
}

// Machine owns every user's session.
type Machine struct {
	access     AccessChecker
	dispatcher JobDispatcher
	opts       Options

	mu       sync.Mutex
	sessions map[string]*userSession
}

// NewMachine creates a Machine with no sessions.
func NewMachine(access AccessChecker, dispatcher JobDispatcher, opts Options) *Machine {
	return &Machine{
		access:     access,
		dispatcher: dispatcher,
		opts:       opts,
		sessions:   make(map[string]*userSession),
	}
}

// lock returns the user's session with its lock held, creating it lazily.
func (m *Machine) lock(userID string) *userSession {
	m.mu.Lock()
	us, ok := m.sessions[userID]
	if !ok {
		us = &userSession{session: domain.Session{UserID: userID, State: domain.StateIdle}}
		m.sessions[userID] = us
	}
	m.mu.Unlock()

	us.mu.Lock()
	return us
}

func (us *userSession) reset() {
	us.session.State = domain.StateIdle
	us.session.SourcePhotoRef = ""
}

func (us *userSession) result(o Outcome) Result {
	return Result{Outcome: o, State: us.session.State}
}

// Get returns a snapshot of the user's session.
func (m *Machine) Get(userID string) domain.Session {
	us := m.lock(userID)
	defer us.mu.Unlock()
	return us.session
}

// Start begins the flow. Restarting mid-flow discards any captured photo.
func (m *Machine) Start(ctx context.Context, userID string) (Result, error) {
	us := m.lock(userID)
	defer us.mu.Unlock()

	ok, err := m.access.CanGenerate(ctx, userID)
	if err != nil {
		return us.result(OutcomeIgnored), err
	}
	if !ok {
		us.reset()
		return us.result(OutcomeDenied), nil
	}

	us.session.State = domain.StateAwaitingSourcePhoto
	us.session.SourcePhotoRef = ""
	return us.result(OutcomeAwaitingSource), nil
}

// Photo feeds a received photo into the flow. The second photo dispatches
// the job and returns the session to Idle whatever the job's outcome.
// beforeDispatch, if non-nil, runs right before the remote call.
func (m *Machine) Photo(ctx context.Context, userID, photoRef string, beforeDispatch func()) (Result, error) {
	us := m.lock(userID)
	defer us.mu.Unlock()

	if !us.session.State.Awaiting() {
		return us.result(OutcomeIgnored), nil
	}

	if m.opts.RecheckAccess {
		ok, err := m.access.CanGenerate(ctx, userID)
		if err != nil {
			return us.result(OutcomeStillWaiting), err
		}
		if !ok {
			us.reset()
			return us.result(OutcomeDenied), nil
		}
	}

	if us.session.State == domain.StateAwaitingSourcePhoto {
		us.session.State = domain.StateAwaitingExpressionPhoto
		us.session.SourcePhotoRef = photoRef
		return us.result(OutcomeAwaitingExpression), nil
	}

	source := us.session.SourcePhotoRef
	us.reset()

	if beforeDispatch != nil {
		beforeDispatch()
	}

	job, err := m.dispatcher.Dispatch(ctx, source, photoRef)
	if err != nil {
		return Result{Outcome: OutcomeFailed, State: us.session.State, Job: job}, nil
	}
	return Result{Outcome: OutcomeCompleted, State: us.session.State, Job: job}, nil
}

// Text handles a non-photo message. It never changes state.
func (m *Machine) Text(userID string) Result {
	us := m.lock(userID)
	defer us.mu.Unlock()

	if us.session.State.Awaiting() {
		return us.result(OutcomeStillWaiting)
	}
	return us.result(OutcomeIgnored)
}

// Cancel returns the user to Idle and drops any captured photo.
func (m *Machine) Cancel(userID string) Result {
	us := m.lock(userID)
	defer us.mu.Unlock()

	us.reset()
	return us.result(OutcomeCancelled)
}
