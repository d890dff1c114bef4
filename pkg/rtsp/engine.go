package rtsp

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Engine drives one TCP connection: a reader goroutine decoding the
// incoming byte stream into requests and an outbound-draining writer
// goroutine, mirroring bluenviron/gortsplib's ServerConn run/runInner/
// runReader split. A session's frame pump (session.go) writes its
// RTP/RTCP frames onto the same outbound channel the writer drains, so
// control responses and media frames interleave correctly on the wire
// without either ever touching the socket directly.
type Engine struct {
	conn        net.Conn
	media       MediaController
	log         *slog.Logger
	limits      Limits
	readTimeout time.Duration

	sessions *connSessions
	out      chan MaybeInterleaved[*Response]

	lastActivity atomic.Int64
}

// EngineOption configures optional Engine behavior beyond the required
// constructor arguments.
type EngineOption func(*Engine)

// WithReadTimeout enables the read-inactivity watchdog (design §5/§10.3):
// a ticker compares time since the connection's last successful read
// against d, and cancels the connection's context if it has gone
// silent for longer than d. Zero (the default) disables the watchdog.
func WithReadTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.readTimeout = d }
}

// NewEngine builds an engine for one accepted connection. registry is
// the process-wide session registry; sessions this connection sets up
// are tracked separately so they can all be torn down when the
// connection itself closes. outboundBacklog sizes the writer fan-in
// channel shared by the reader's responses and every session's frame
// pump; it falls back to a sane default if non-positive.
func NewEngine(conn net.Conn, media MediaController, registry *Registry, log *slog.Logger, limits Limits, outboundBacklog int, opts ...EngineOption) *Engine {
	if outboundBacklog <= 0 {
		outboundBacklog = 64
	}
	out := make(chan MaybeInterleaved[*Response], outboundBacklog)
	e := &Engine{
		conn:     conn,
		media:    media,
		log:      log,
		limits:   limits,
		sessions: newConnSessions(registry, media, out),
		out:      out,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.markActivity()
	return e
}

func (e *Engine) markActivity() {
	e.lastActivity.Store(time.Now().UnixNano())
}

func (e *Engine) idleSince() time.Duration {
	return time.Since(time.Unix(0, e.lastActivity.Load()))
}

// Run blocks until the connection's reader stops (client disconnect,
// malformed stream, or ctx cancellation), then unblocks the writer and
// tears down every session this connection owns.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	readDone := make(chan struct{})
	go e.runReader(ctx, readErr, readDone)

	writeDone := make(chan struct{})
	go e.runWriter(ctx, writeDone)

	watchDone := make(chan struct{})
	if e.readTimeout > 0 {
		go e.runInactivityWatch(ctx, cancel, watchDone)
	} else {
		close(watchDone)
	}

	select {
	case err := <-readErr:
		if err != nil {
			e.log.Debug("rtsp: connection reader stopped", "remote", e.conn.RemoteAddr(), "err", err)
		}
	case <-writeDone:
		// A writer that exits on its own hit a write or encode error;
		// both are fatal to the connection (design §7).
	case <-ctx.Done():
	}

	cancel()
	e.conn.Close()
	<-readDone
	<-writeDone
	<-watchDone

	e.sessions.teardownAll()
}

// runInactivityWatch cancels the connection once it has gone longer
// than e.readTimeout without a successful read, the way the teacher's
// pkg/rtsp/session.go handleTimeout polls time.Since(lastActivity)
// against a ticker rather than relying on a single read deadline.
func (e *Engine) runInactivityWatch(ctx context.Context, cancel context.CancelFunc, done chan<- struct{}) {
	defer close(done)

	interval := e.readTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.idleSince() > e.readTimeout {
				e.log.Debug("rtsp: connection read-inactivity timeout", "remote", e.conn.RemoteAddr(), "timeout", e.readTimeout)
				cancel()
				return
			}
		}
	}
}

func (e *Engine) runReader(ctx context.Context, readErr chan<- error, done chan<- struct{}) {
	defer close(done)

	br := bufio.NewReaderSize(e.conn, 4096)
	dec := NewDecoder(e.limits)
	buf := make([]byte, 4096)

	for {
		n, err := br.Read(buf)
		if n > 0 {
			e.markActivity()
			dec.Feed(buf[:n])
			for {
				item, ok, derr := dec.Next()
				if derr != nil {
					readErr <- derr
					return
				}
				if !ok {
					break
				}
				req, isMessage := item.Message()
				if !isMessage {
					frame, _ := item.Frame()
					if !e.sessions.route(frame) {
						e.log.Debug("rtsp: dropping interleaved frame on unrouted channel", "remote", e.conn.RemoteAddr(), "channel", frame.Channel)
					}
					continue
				}
				resp := Dispatch(&req, e.media, e.sessions)
				if resp.StatusCode >= 400 {
					e.log.Debug("rtsp: request rejected", "remote", e.conn.RemoteAddr(), "method", req.Method, "uri", req.URI, "status", resp.StatusCode)
				}
				select {
				case e.out <- MessageItem(resp):
				case <-ctx.Done():
					readErr <- nil
					return
				}
			}
		}
		if err != nil {
			switch {
			case ctx.Err() != nil:
				readErr <- ErrShutdown
			case err == io.EOF:
				readErr <- nil
			default:
				readErr <- err
			}
			return
		}
	}
}

func (e *Engine) runWriter(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	bw := bufio.NewWriterSize(e.conn, 4096)
	var buf []byte
	for {
		select {
		case item := <-e.out:
			var err error
			buf, err = Encode(buf[:0], item)
			if err != nil {
				// An unencodable item is an implementation bug; fatal to
				// the connection.
				e.log.Error("rtsp: failed to encode outbound item", "remote", e.conn.RemoteAddr(), "err", err)
				return
			}
			if _, err := bw.Write(buf); err != nil {
				return
			}
			if err := bw.Flush(); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// connSessions is the per-connection adapter satisfying SessionResolver:
// it owns this connection's interleaved-channel allocation (channel
// numbers are scoped to one TCP connection per RFC 2326 §10.12, not to
// the whole server) and remembers which registry session ids it set up
// so Engine.Run can tear them all down when the connection closes.
type connSessions struct {
	registry *Registry
	media    MediaController
	writer   chan<- MaybeInterleaved[*Response]

	mu     sync.Mutex
	used   map[int]bool
	paths  map[string]string
	byChan map[int]string
}

func newConnSessions(registry *Registry, media MediaController, writer chan<- MaybeInterleaved[*Response]) *connSessions {
	return &connSessions{
		registry: registry,
		media:    media,
		writer:   writer,
		used:     make(map[int]bool),
		paths:    make(map[string]string),
		byChan:   make(map[int]string),
	}
}

func (c *connSessions) Setup(path string, setup SessionSetup, source SourceDelegate) (string, SessionSetup, error) {
	c.mu.Lock()
	rtp, rtcp := AllocateChannels(c.used)
	if rtcp > MaxInterleavedChannel {
		c.mu.Unlock()
		return "", SessionSetup{}, ErrChannelsExhausted
	}
	c.used[rtp] = true
	c.used[rtcp] = true
	c.mu.Unlock()

	setup.RTPChannel, setup.RTCPChannel = rtp, rtcp

	id, err := c.registry.SetupAndStart(path, source, setup, c.writer)
	if err != nil {
		c.mu.Lock()
		delete(c.used, rtp)
		delete(c.used, rtcp)
		c.mu.Unlock()
		return "", SessionSetup{}, err
	}

	c.mu.Lock()
	c.paths[id] = path
	c.byChan[rtp] = id
	c.byChan[rtcp] = id
	c.mu.Unlock()
	return id, setup, nil
}

// route delivers an inbound interleaved frame (e.g. an RTCP receiver
// report from the client) to the session owning its channel number, per
// design §4.5's reverse channel lookup. It reports whether a session was
// found; the caller logs and drops frames on channels no live session
// here has claimed.
func (c *connSessions) route(frame Frame) bool {
	c.mu.Lock()
	id, ok := c.byChan[frame.Channel]
	c.mu.Unlock()
	if !ok {
		return false
	}
	return c.registry.deliver(id, frame)
}

func (c *connSessions) Play(id string) error {
	c.mu.Lock()
	_, ours := c.paths[id]
	c.mu.Unlock()
	if !ours {
		return ErrSessionNotFound
	}
	return c.registry.Play(id)
}

func (c *connSessions) Teardown(id string) bool {
	c.mu.Lock()
	path, ours := c.paths[id]
	c.mu.Unlock()
	if !ours {
		return false
	}
	present := c.registry.Teardown(id)
	c.mu.Lock()
	delete(c.paths, id)
	for ch, sid := range c.byChan {
		if sid == id {
			delete(c.byChan, ch)
			delete(c.used, ch)
		}
	}
	c.mu.Unlock()
	if present {
		c.media.UnregisterSession(path)
	}
	return present
}

// teardownAll stops every session this connection set up. Used when the
// connection itself closes without a client TEARDOWN for each session.
func (c *connSessions) teardownAll() {
	c.mu.Lock()
	paths := make(map[string]string, len(c.paths))
	for id, path := range c.paths {
		paths[id] = path
	}
	c.mu.Unlock()

	for id, path := range paths {
		if c.registry.Teardown(id) {
			c.media.UnregisterSession(path)
		}
	}
}
