package media

import (
	"sync"

	"rtspd/pkg/rtsp"
)

// presentation is the server-side state for one published path: its SDP
// body, a factory for fresh per-session upstream sources, and a count of
// sessions currently set up against it.
type presentation struct {
	sdp       []byte
	newSource func() rtsp.SourceDelegate
	live      int
}

// Controller is the in-memory reference rtsp.MediaController, grounded
// on the teacher's StreamManager mutex-guarded map (pkg/rtsp/stream.go),
// adapted from RTMP's one-publisher-many-subscribers model to RTSP's
// one-session-per-SETUP model: every SETUP gets its own SourceDelegate
// instance, and tearing one session down never affects another.
type Controller struct {
	mu            sync.RWMutex
	presentations map[string]*presentation
}

// NewController returns an empty controller; presentations are added
// with Publish.
func NewController() *Controller {
	return &Controller{presentations: make(map[string]*presentation)}
}

// Publish registers a presentation at path with the given SDP body and
// a factory producing one fresh SourceDelegate per session. Publishing
// to an already-registered path replaces it.
func (c *Controller) Publish(path string, sdp []byte, newSource func() rtsp.SourceDelegate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presentations[path] = &presentation{sdp: sdp, newSource: newSource}
}

// Unpublish removes a presentation. Sessions already set up against it
// are unaffected; only new SETUP/DESCRIBE requests stop finding it.
func (c *Controller) Unpublish(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.presentations, path)
}

func (c *Controller) QuerySDP(path string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.presentations[path]
	if !ok {
		return nil, false
	}
	return p.sdp, true
}

func (c *Controller) RegisterSession(path string) (rtsp.SessionSetup, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.presentations[path]
	if !ok {
		return rtsp.SessionSetup{}, rtsp.ErrPresentationNotFound
	}
	p.live++
	return rtsp.SessionSetup{Protocol: rtsp.TransportRTPAVPTCP, Cast: rtsp.TransportUnicast}, nil
}

func (c *Controller) UnregisterSession(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.presentations[path]
	if !ok {
		return
	}
	if p.live > 0 {
		p.live--
	}
}

// LiveSessions reports how many sessions are currently set up against
// path.
func (c *Controller) LiveSessions(path string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.presentations[path]
	if !ok {
		return 0
	}
	return p.live
}

func (c *Controller) Source(path string) (rtsp.SourceDelegate, bool) {
	c.mu.RLock()
	p, ok := c.presentations[path]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return p.newSource(), true
}
