package rtsp

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type sessionStopped struct {
	id string
}

// Registry is the process-wide session map (design §4.3): it generates
// SessionIds, enforces their uniqueness, and drives an internal run loop
// that removes Stopped sessions from the map and, on its own
// cancellation, tears down every session still live in arbitrary order.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	stopped chan sessionStopped
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRegistry creates a registry and starts its run loop.
func NewRegistry() *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		sessions: make(map[string]*Session),
		stopped:  make(chan sessionStopped, 32),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Registry) run() {
	defer close(r.done)
	for {
		select {
		case ev := <-r.stopped:
			r.mu.Lock()
			delete(r.sessions, ev.id)
			r.mu.Unlock()
		case <-r.ctx.Done():
			r.teardownAll()
			return
		}
	}
}

func (r *Registry) teardownAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.Stop()
	}
}

// SetupAndStart installs a new Ready session for path with the given
// setup and upstream source, returning its freshly generated id. A
// collision against a live id is rejected with ErrSessionAlreadyExists;
// this path is expected to be unreachable given uuid's entropy, but it
// must stay observable for tests.
func (r *Registry) SetupAndStart(path string, source SourceDelegate, setup SessionSetup, writer chan<- MaybeInterleaved[*Response]) (string, error) {
	id := uuid.NewString()

	r.mu.Lock()
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		return "", ErrSessionAlreadyExists
	}
	sess := newSession(id, path, setup, source, writer, r.onSessionStopped)
	r.sessions[id] = sess
	r.mu.Unlock()

	return id, nil
}

func (r *Registry) onSessionStopped(id string) {
	select {
	case r.stopped <- sessionStopped{id: id}:
	case <-r.ctx.Done():
		// The run loop already exited and swept every session itself.
	}
}

// Play starts the frame pump for a live session.
func (r *Registry) Play(id string) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	return sess.Play()
}

// Teardown stops a live session and reports whether it was present.
// Idempotent: tearing down an id a second time returns false. The map
// entry is removed synchronously here (rather than waiting for the
// session's own Stopped notification on r.stopped) so that two
// back-to-back calls can never both observe the session as present.
func (r *Registry) Teardown(id string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	sess.Stop()
	return true
}

// deliver hands an inbound interleaved frame to a live session by id,
// reporting whether the session was found. Used by the connection
// engine's channel-based routing (design §4.5); a session that has
// already Stopped is treated as not found.
func (r *Registry) deliver(id string, frame Frame) bool {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok || sess.State() == SessionStopped {
		return false
	}
	sess.receiveInbound(frame)
	return true
}

// Shutdown cancels the run loop, which tears down every remaining
// session, and blocks until it has exited.
func (r *Registry) Shutdown() {
	r.cancel()
	<-r.done
}
