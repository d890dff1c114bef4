package rtsp

import (
	"context"
	"sync"
)

// SessionState is a session's position in the RTSP session lifecycle
// (design §3). Initialized is the zero value; a session installed by the
// registry is Ready the moment SETUP succeeds, moves to Playing once
// PLAY starts its frame pump, and ends in Stopped.
type SessionState int

const (
	SessionInitialized SessionState = iota
	SessionReady
	SessionPlaying
	SessionStopped
)

func (s SessionState) String() string {
	switch s {
	case SessionInitialized:
		return "Initialized"
	case SessionReady:
		return "Ready"
	case SessionPlaying:
		return "Playing"
	case SessionStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Session is one SETUP-allocated presentation session: its negotiated
// transport, its upstream frame source, and the frame pump that copies
// Frames onto the owning connection's writer channel while Playing. A
// Session holds only a send handle to that channel, never a back
// reference to the connection itself (design §5).
type Session struct {
	ID   string
	Path string

	mu     sync.Mutex
	state  SessionState
	setup  SessionSetup
	source SourceDelegate
	writer chan<- MaybeInterleaved[*Response]

	ctx    context.Context
	cancel context.CancelFunc

	onStopped func(id string)
}

func newSession(id, path string, setup SessionSetup, source SourceDelegate, writer chan<- MaybeInterleaved[*Response], onStopped func(string)) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:        id,
		Path:      path,
		state:     SessionReady,
		setup:     setup,
		source:    source,
		writer:    writer,
		ctx:       ctx,
		cancel:    cancel,
		onStopped: onStopped,
	}
}

// State reports the session's current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Play starts the frame pump if the session is Ready. It is idempotent:
// calling it again while already Playing is a no-op, and calling it
// after Stop returns ErrSessionNotFound.
func (s *Session) Play() error {
	s.mu.Lock()
	switch s.state {
	case SessionStopped:
		s.mu.Unlock()
		return ErrSessionNotFound
	case SessionPlaying:
		s.mu.Unlock()
		return nil
	}
	s.state = SessionPlaying
	s.mu.Unlock()

	go s.pump()
	return nil
}

// pump copies frames from the upstream source onto the connection's
// writer channel until the source closes or the session is stopped.
func (s *Session) pump() {
	frames := s.source.Frames(s.ctx)
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				s.Stop()
				return
			}
			wire := Frame{Payload: frame.Payload}
			if frame.Channel == FrameRTCP {
				wire.Channel = s.setup.RTCPChannel
			} else {
				wire.Channel = s.setup.RTPChannel
			}

			select {
			case s.writer <- InterleavedItem[*Response](wire):
			case <-s.ctx.Done():
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// receiveInbound accepts a client-to-server interleaved frame routed to
// this session by channel number (typically an RTCP receiver report).
// Acting on receiver reports is a media-source concern the core does
// not own (design §1), so the frame is discarded once accepted, in
// every session state; nothing is forwarded to the upstream source.
func (s *Session) receiveInbound(frame Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionStopped {
		return
	}
}

// Stop transitions the session to Stopped, cancels its frame pump, and
// reports the transition so the registry can drop its map entry. Stop
// is idempotent: a second call is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == SessionStopped {
		s.mu.Unlock()
		return
	}
	s.state = SessionStopped
	s.mu.Unlock()

	s.cancel()
	if s.onStopped != nil {
		s.onStopped(s.ID)
	}
}
