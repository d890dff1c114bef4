package rtspd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"rtspd/pkg/rtsp"
)

// Server owns the RTSP listener and the process-wide session registry,
// grounded on the teacher's pkg/rtsp/server.go accept loop and
// internal/sol/server.go's Start/Stop pair, with the RTMP-specific
// event-loop/channel machinery replaced by rtsp.Engine per connection.
type Server struct {
	port            int
	media           rtsp.MediaController
	limits          rtsp.Limits
	outboundBacklog int
	readTimeout     time.Duration
	log             *slog.Logger

	registry *rtsp.Registry

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer builds a server bound to port, serving presentations from
// media, accepting streams up to limits. outboundBacklog sizes each
// connection's writer fan-in channel; readTimeout, if non-zero, closes
// a connection that has gone silent for that long.
func NewServer(port int, media rtsp.MediaController, limits rtsp.Limits, outboundBacklog int, readTimeout time.Duration) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		port:            port,
		media:           media,
		limits:          limits,
		outboundBacklog: outboundBacklog,
		readTimeout:     readTimeout,
		log:             slog.Default(),
		registry:        rtsp.NewRegistry(),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Start opens the listener and begins accepting connections in the
// background. It returns once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		s.log.Error("rtsp: failed to start listener", "err", err)
		return err
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop(ln)

	s.log.Info("rtsp: server started", "port", s.port)
	return nil
}

// Stop closes the listener, waits for the accept loop and every
// in-flight connection engine to exit, then tears down every remaining
// session in the registry.
func (s *Server) Stop() {
	s.log.Info("rtsp: server stopping")
	s.cancel()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.log.Error("rtsp: error closing listener", "err", err)
		}
	}

	s.wg.Wait()
	s.registry.Shutdown()
	s.log.Info("rtsp: server stopped")
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	defer closeWithLog(s.log, ln)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				s.log.Info("rtsp: accept loop stopped")
			default:
				s.log.Error("rtsp: accept failed", "err", err)
			}
			return
		}

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	s.log.Info("rtsp: connection accepted", "remote", conn.RemoteAddr())
	defer s.log.Info("rtsp: connection closed", "remote", conn.RemoteAddr())

	engine := rtsp.NewEngine(conn, s.media, s.registry, s.log, s.limits, s.outboundBacklog, rtsp.WithReadTimeout(s.readTimeout))
	engine.Run(s.ctx)
}

func closeWithLog(log *slog.Logger, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Error("rtsp: error closing resource", "err", err)
	}
}
