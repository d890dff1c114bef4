package rtsp

import (
	"bytes"
	"strconv"
	"strings"
)

// Limits bounds the message and interleaved-frame sizes the decoder will
// accept before failing the connection, per design §4.2/§7.
type Limits struct {
	MaxBodySize           int
	MaxInterleavedPayload int
}

// DefaultLimits are sane ceilings for a server with no configured limit.
func DefaultLimits() Limits {
	return Limits{MaxBodySize: 1 << 20, MaxInterleavedPayload: MaxInterleavedPayload}
}

// Decoder turns a byte stream into a sequence of MaybeInterleaved[Request]
// items. It owns a single growable buffer: callers Feed it bytes as they
// arrive and call Next in a loop until it reports hungry. Because every
// byte not yet delivered as a complete item stays in the buffer, a
// decoder resumes exactly where it left off no matter how the input is
// chunked, including byte-at-a-time (design invariant 2).
type Decoder struct {
	buf    []byte
	limits Limits
}

// NewDecoder creates a decoder bounded by limits.
func NewDecoder(limits Limits) *Decoder {
	return &Decoder{limits: limits}
}

// Feed appends newly-read bytes to the decoder's buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next attempts to decode one item from the buffered bytes. It returns
// ok=false (hungry) if the buffer holds an incomplete item, and a
// terminal error if the buffered bytes can never form a valid item.
func (d *Decoder) Next() (item MaybeInterleaved[Request], ok bool, err error) {
	if len(d.buf) == 0 {
		return MaybeInterleaved[Request]{}, false, nil
	}

	if d.buf[0] == InterleavedMagic {
		frame, consumed, ferr := parseInterleavedFrame(d.buf, d.limits.MaxInterleavedPayload)
		if ferr != nil {
			return MaybeInterleaved[Request]{}, false, ferr
		}
		if consumed == 0 {
			return MaybeInterleaved[Request]{}, false, nil
		}
		d.buf = d.buf[consumed:]
		return InterleavedItem[Request](frame), true, nil
	}

	req, consumed, perr := parseRequest(d.buf, d.limits.MaxBodySize)
	if perr != nil {
		return MaybeInterleaved[Request]{}, false, perr
	}
	if consumed == 0 {
		return MaybeInterleaved[Request]{}, false, nil
	}
	d.buf = d.buf[consumed:]
	return MessageItem(req), true, nil
}

// parseInterleavedFrame parses the 4-byte interleaved header plus payload
// from the front of buf. consumed is 0 if buf does not yet hold a
// complete frame.
func parseInterleavedFrame(buf []byte, maxPayload int) (frame Frame, consumed int, err error) {
	const headerSize = 4
	if len(buf) < headerSize {
		return Frame{}, 0, nil
	}
	channel := int(buf[1])
	length := int(buf[2])<<8 | int(buf[3])
	if length > maxPayload {
		return Frame{}, 0, ErrInterleavedTooLarge
	}
	total := headerSize + length
	if len(buf) < total {
		return Frame{}, 0, nil
	}
	payload := make([]byte, length)
	copy(payload, buf[headerSize:total])
	return Frame{Channel: channel, Payload: payload}, total, nil
}

// findLine locates the next CRLF- or LF-terminated line at the front of
// buf. It returns found=false if no line terminator has arrived yet.
func findLine(buf []byte) (line []byte, consumed int, found bool) {
	idx := bytes.IndexByte(buf, '\n')
	if idx < 0 {
		return nil, 0, false
	}
	end := idx
	if end > 0 && buf[end-1] == '\r' {
		end--
	}
	return buf[:end], idx + 1, true
}

// splitStatusLine splits a status line into at most 3 space-separated
// fields: version, code, reason (the reason may itself contain spaces).
func splitStatusLine(line []byte) []string {
	return strings.SplitN(string(line), " ", 3)
}

// cutHeaderLine splits a header line on its first colon, trimming
// surrounding whitespace from the value.
func cutHeaderLine(line []byte) (name, value string, ok bool) {
	rawName, rawValue, found := bytes.Cut(line, []byte(":"))
	if !found {
		return "", "", false
	}
	return strings.TrimSpace(string(rawName)), strings.TrimSpace(string(rawValue)), true
}

// parseRequest parses a start line, header block, and body from the
// front of buf. consumed is 0 if buf does not yet hold a complete
// request.
func parseRequest(buf []byte, maxBody int) (req Request, consumed int, err error) {
	pos := 0

	startLine, n, found := findLine(buf[pos:])
	if !found {
		return Request{}, 0, nil
	}
	pos += n

	parts := strings.SplitN(string(startLine), " ", 3)
	if len(parts) != 3 {
		return Request{}, 0, ErrMalformedStartLine
	}
	if parts[2] != Version {
		return Request{}, 0, ErrUnknownVersion
	}
	req = Request{Method: parts[0], URI: parts[1], Version: parts[2]}

	for {
		line, n, found := findLine(buf[pos:])
		if !found {
			return Request{}, 0, nil
		}
		pos += n
		if len(line) == 0 {
			break
		}
		name, value, ok := bytes.Cut(line, []byte(":"))
		if !ok {
			return Request{}, 0, ErrMalformedHeader
		}
		req.Header.Add(strings.TrimSpace(string(name)), strings.TrimSpace(string(value)))
	}

	bodyLen := 0
	if cl := req.Header.Get(HeaderContentLength); cl != "" {
		v, convErr := strconv.Atoi(strings.TrimSpace(cl))
		if convErr != nil || v < 0 {
			return Request{}, 0, ErrMalformedHeader
		}
		bodyLen = v
	}
	if bodyLen > maxBody {
		return Request{}, 0, ErrBodyTooLarge
	}
	if len(buf)-pos < bodyLen {
		return Request{}, 0, nil
	}
	if bodyLen > 0 {
		req.Body = make([]byte, bodyLen)
		copy(req.Body, buf[pos:pos+bodyLen])
		pos += bodyLen
	}

	return req, pos, nil
}
