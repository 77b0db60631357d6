// Package session tracks the per-connection state of every live
// WebSocket client: identity after login, and the house the client has
// joined. The registry is the source the broadcast hub consults when
// fanning a message out to a house's audience.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hallfield/homehub-core/internal/auth"
)

// Registry errors.
var (
	// ErrSessionNotFound is returned for unknown or removed session ids.
	ErrSessionNotFound = errors.New("session: not found")

	// ErrStateUnavailable is returned when the registry mutex cannot be
	// acquired within the bounded wait.
	ErrStateUnavailable = errors.New("session: state lock unavailable")
)

// Session is one connection's state. Zero values mean "not yet": a
// session starts unauthenticated with no house joined.
type Session struct {
	// ID is the server-assigned connection id.
	ID string

	// Authenticated is set after a successful login.
	Authenticated bool
	UserID        int64
	Username      string

	// HouseID is the joined house, 0 when none. Role is the user's role
	// in that house, fixed at join time.
	HouseID int64
	Role    auth.Role

	CreatedAt time.Time
}

// Registry holds every live session behind a bounded-wait mutex.
type Registry struct {
	sem      *semaphore.Weighted
	timeout  time.Duration
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry. timeout bounds how long
// any operation waits for the registry mutex.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Registry{
		sem:      semaphore.NewWeighted(1),
		timeout:  timeout,
		sessions: make(map[string]*Session),
	}
}

func (r *Registry) acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.sem.Acquire(waitCtx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: lock not acquired within %s", ErrStateUnavailable, r.timeout)
		}
		return fmt.Errorf("acquiring registry lock: %w", err)
	}
	return nil
}

// Create registers a new unauthenticated session under the given id.
func (r *Registry) Create(ctx context.Context, id string) error {
	if err := r.acquire(ctx); err != nil {
		return err
	}
	defer r.sem.Release(1)

	r.sessions[id] = &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// Get returns a copy of the session. The copy is safe to read without
// holding the registry lock.
func (r *Registry) Get(ctx context.Context, id string) (Session, error) {
	if err := r.acquire(ctx); err != nil {
		return Session{}, err
	}
	defer r.sem.Release(1)

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return *s, nil
}

// Update applies fn to the session under the registry lock.
func (r *Registry) Update(ctx context.Context, id string, fn func(*Session)) error {
	if err := r.acquire(ctx); err != nil {
		return err
	}
	defer r.sem.Release(1)

	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	fn(s)
	return nil
}

// Remove deletes the session. Removing an unknown id is a no-op.
func (r *Registry) Remove(ctx context.Context, id string) error {
	if err := r.acquire(ctx); err != nil {
		return err
	}
	defer r.sem.Release(1)

	delete(r.sessions, id)
	return nil
}

// ListByHouse returns copies of every session currently joined to the
// house. Used by the broadcast hub to resolve a house's audience.
func (r *Registry) ListByHouse(ctx context.Context, houseID int64) ([]Session, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	var out []Session
	for _, s := range r.sessions {
		if s.HouseID == houseID {
			out = append(out, *s)
		}
	}
	return out, nil
}

// Count returns the number of live sessions.
func (r *Registry) Count(ctx context.Context) (int, error) {
	if err := r.acquire(ctx); err != nil {
		return 0, err
	}
	defer r.sem.Release(1)
	return len(r.sessions), nil
}
