package rtsp

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// SessionResolver is the connection-scoped view of the session registry
// the handler needs. It is separated from MediaController because it is
// connection/registry state (which channel pair and writer channel a
// session belongs to), not presentation state. Setup is expected to
// assign setup's channel pair from the connection's own allocation
// before installing the session, and to return the setup actually
// installed so the handler can echo it back verbatim.
type SessionResolver interface {
	Setup(path string, setup SessionSetup, source SourceDelegate) (id string, installed SessionSetup, err error)
	Play(id string) error
	Teardown(id string) (present bool)
}

// Dispatch is the pure request handler: method dispatch, precondition
// checks, and the fixed error-reply policy from design §4.4. It performs
// no I/O; every response carries the inbound CSeq verbatim when one was
// present.
func Dispatch(req *Request, media MediaController, sessions SessionResolver) *Response {
	resp := dispatch(req, media, sessions)
	if resp.Header.Has(HeaderCSeq) {
		resp.Header.Set(HeaderCSeq, strings.TrimSpace(req.Header.Get(HeaderCSeq)))
	}
	resp.Header.Set(HeaderServer, ServerName)
	return resp
}

func dispatch(req *Request, media MediaController, sessions SessionResolver) *Response {
	cseq, hasCSeq := req.CSeq()
	if !hasCSeq {
		return NewResponse(StatusBadRequest)
	}

	if len(req.Header.List(HeaderRequire)) > 0 {
		return NewResponse(StatusOptionNotSupported).WithCSeq(cseq)
	}

	switch req.Method {
	case MethodOptions:
		return handleOptions(cseq)
	case MethodDescribe:
		return handleDescribe(req, cseq, media)
	case MethodSetup:
		return handleSetup(req, cseq, media, sessions)
	case MethodPlay:
		return handlePlay(req, cseq, sessions)
	case MethodTeardown:
		return handleTeardown(req, cseq, sessions)
	case MethodAnnounce, MethodGetParameter, MethodSetParameter, MethodPause, MethodRecord:
		return NewResponse(StatusMethodNotAllowed).WithCSeq(cseq)
	case MethodRedirect:
		return NewResponse(StatusMethodNotValidInThisState).WithCSeq(cseq)
	default:
		return NewResponse(StatusMethodNotAllowed).WithCSeq(cseq)
	}
}

func handleOptions(cseq int) *Response {
	resp := NewResponse(StatusOK).WithCSeq(cseq)
	resp.Header.Set(HeaderPublic, PublicMethods)
	return resp
}

func handleDescribe(req *Request, cseq int, media MediaController) *Response {
	accepts := false
	for _, a := range req.Header.List(HeaderAccept) {
		if a == "application/sdp" {
			accepts = true
			break
		}
	}
	if !accepts {
		return NewResponse(StatusNotAcceptable).WithCSeq(cseq)
	}

	sdp, ok := media.QuerySDP(presentationPath(req.URI))
	if !ok {
		return NewResponse(StatusNotFound).WithCSeq(cseq)
	}

	resp := NewResponse(StatusOK).WithCSeq(cseq)
	resp.Header.Set(HeaderContentType, "application/sdp")
	resp.Header.Set(HeaderContentLength, strconv.Itoa(len(sdp)))
	resp.Body = sdp
	return resp
}

func handleSetup(req *Request, cseq int, media MediaController, sessions SessionResolver) *Response {
	if req.Header.Has(HeaderSession) {
		return NewResponse(StatusAggregateOperationNotAllowed).WithCSeq(cseq)
	}

	path := presentationPath(req.URI)
	setup, err := media.RegisterSession(path)
	switch {
	case errors.Is(err, ErrPresentationNotFound):
		return NewResponse(StatusNotFound).WithCSeq(cseq)
	case err != nil:
		return NewResponse(StatusInternalServerError).WithCSeq(cseq)
	}

	source, ok := media.Source(path)
	if !ok {
		media.UnregisterSession(path)
		return NewResponse(StatusInternalServerError).WithCSeq(cseq)
	}

	id, installed, err := sessions.Setup(path, setup, source)
	if err != nil {
		media.UnregisterSession(path)
		return NewResponse(StatusInternalServerError).WithCSeq(cseq)
	}

	resp := NewResponse(StatusOK).WithCSeq(cseq)
	resp.Header.Set(HeaderSession, id)
	resp.Header.Set(HeaderTransport, installed.Header())
	return resp
}

func handlePlay(req *Request, cseq int, sessions SessionResolver) *Response {
	id := sessionIDFromHeader(req.Header.Get(HeaderSession))
	if id == "" {
		return NewResponse(StatusSessionNotFound).WithCSeq(cseq)
	}
	if err := sessions.Play(id); err != nil {
		return NewResponse(StatusSessionNotFound).WithCSeq(cseq)
	}
	resp := NewResponse(StatusOK).WithCSeq(cseq)
	resp.Header.Set(HeaderSession, id)
	return resp
}

func handleTeardown(req *Request, cseq int, sessions SessionResolver) *Response {
	id := sessionIDFromHeader(req.Header.Get(HeaderSession))
	if id == "" || !sessions.Teardown(id) {
		return NewResponse(StatusSessionNotFound).WithCSeq(cseq)
	}
	resp := NewResponse(StatusOK).WithCSeq(cseq)
	resp.Header.Set(HeaderSession, id)
	return resp
}

// presentationPath extracts the case-sensitive path component from an
// absolute RTSP request URI; presentations are keyed by path, not by the
// full URL a client happens to address the server with.
func presentationPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Path == "" {
		return uri
	}
	return u.Path
}

// sessionIDFromHeader strips any ";"-delimited parameters (e.g.
// ;timeout=60) a client may echo back alongside the session id.
func sessionIDFromHeader(raw string) string {
	for i, c := range raw {
		if c == ';' {
			return raw[:i]
		}
	}
	return raw
}
