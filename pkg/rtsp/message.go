package rtsp

import (
	"strconv"
	"strings"
)

// headerField is one "name: value" line, in the case it was set with.
type headerField struct {
	name  string
	value string
}

// Header is an insertion-ordered multimap of RTSP header fields. Lookups
// are case-insensitive; insertion order is preserved for emission, and
// repeated field names are kept distinct so that list-valued headers
// round-trip whether a client sent them as one comma-separated line or
// several repeated ones.
type Header struct {
	fields []headerField
}

func canonicalHeaderKey(name string) string {
	return strings.ToLower(name)
}

// Set replaces all existing occurrences of name with a single field
// holding value, keeping the position of the first existing occurrence
// (or appending if name was absent).
func (h *Header) Set(name, value string) {
	key := canonicalHeaderKey(name)
	replaced := false
	out := h.fields[:0:0]
	for _, f := range h.fields {
		if canonicalHeaderKey(f.name) == key {
			if !replaced {
				out = append(out, headerField{name: name, value: value})
				replaced = true
			}
			continue
		}
		out = append(out, f)
	}
	if !replaced {
		out = append(out, headerField{name: name, value: value})
	}
	h.fields = out
}

// Add appends a new field for name, preserving any existing occurrences.
func (h *Header) Add(name, value string) {
	h.fields = append(h.fields, headerField{name: name, value: value})
}

// Get returns the value of the first field matching name, or "" if absent.
func (h *Header) Get(name string) string {
	key := canonicalHeaderKey(name)
	for _, f := range h.fields {
		if canonicalHeaderKey(f.name) == key {
			return f.value
		}
	}
	return ""
}

// Has reports whether any field matches name.
func (h *Header) Has(name string) bool {
	key := canonicalHeaderKey(name)
	for _, f := range h.fields {
		if canonicalHeaderKey(f.name) == key {
			return true
		}
	}
	return false
}

// Del removes every field matching name.
func (h *Header) Del(name string) {
	key := canonicalHeaderKey(name)
	out := h.fields[:0:0]
	for _, f := range h.fields {
		if canonicalHeaderKey(f.name) != key {
			out = append(out, f)
		}
	}
	h.fields = out
}

// Values returns every raw field value for name, in insertion order.
func (h *Header) Values(name string) []string {
	key := canonicalHeaderKey(name)
	var values []string
	for _, f := range h.fields {
		if canonicalHeaderKey(f.name) == key {
			values = append(values, f.value)
		}
	}
	return values
}

// List returns the normalized semantic list for a list-valued header:
// every field matching name, each split on commas, trimmed of
// surrounding whitespace, and with empty items discarded. Repeated
// header lines and a single comma-separated line normalize to the same
// result.
func (h *Header) List(name string) []string {
	var items []string
	for _, raw := range h.Values(name) {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				items = append(items, part)
			}
		}
	}
	return items
}

// Range calls fn for every field in insertion order.
func (h *Header) Range(fn func(name, value string)) {
	for _, f := range h.fields {
		fn(f.name, f.value)
	}
}

// Request is a parsed RTSP request.
type Request struct {
	Method  string
	URI     string
	Version string
	Header  Header
	Body    []byte
}

// NewRequest creates a request with the given method and URI, defaulted
// to RTSP/1.0.
func NewRequest(method, uri string) *Request {
	return &Request{Method: method, URI: uri, Version: Version}
}

// CSeq returns the parsed CSeq header value and whether it was present
// and well-formed.
func (r *Request) CSeq() (int, bool) {
	return parseCSeq(r.Header.Get(HeaderCSeq))
}

// Response is a parsed or to-be-encoded RTSP response.
type Response struct {
	Version    string
	StatusCode int
	Reason     string
	Header     Header
	Body       []byte
}

// NewResponse creates a response with the canonical reason phrase for
// statusCode.
func NewResponse(statusCode int) *Response {
	return &Response{
		Version:    Version,
		StatusCode: statusCode,
		Reason:     StatusText(statusCode),
	}
}

// WithCSeq sets the CSeq header to reflect the value from an inbound
// request and returns the response for chaining.
func (r *Response) WithCSeq(cseq int) *Response {
	r.Header.Set(HeaderCSeq, strconv.Itoa(cseq))
	return r
}

func parseCSeq(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}
