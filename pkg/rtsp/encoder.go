package rtsp

import (
	"fmt"
	"strconv"
)

// Encode appends the wire representation of item to buf and returns the
// extended slice. For a message, it writes the status line, headers in
// insertion order (auto-filling Content-Length when a body is present
// and the caller has not set one), a bare CRLF, then the body. For an
// interleaved frame, it writes the magic byte, channel, big-endian
// length, then payload; payloads over 65535 bytes fail encoding.
func Encode(buf []byte, item MaybeInterleaved[*Response]) ([]byte, error) {
	if frame, ok := item.Frame(); ok {
		return EncodeFrame(buf, frame)
	}
	resp, _ := item.Message()
	return EncodeResponse(buf, resp)
}

// EncodeFrame appends one interleaved frame to buf.
func EncodeFrame(buf []byte, frame Frame) ([]byte, error) {
	if len(frame.Payload) > MaxInterleavedPayload {
		return buf, ErrPayloadTooLarge
	}
	buf = append(buf, InterleavedMagic, byte(frame.Channel), byte(len(frame.Payload)>>8), byte(len(frame.Payload)))
	buf = append(buf, frame.Payload...)
	return buf, nil
}

// EncodeResponse appends one RTSP response to buf.
func EncodeResponse(buf []byte, resp *Response) ([]byte, error) {
	version := resp.Version
	if version == "" {
		version = Version
	}
	reason := resp.Reason
	if reason == "" {
		reason = StatusText(resp.StatusCode)
	}

	buf = append(buf, fmt.Sprintf("%s %d %s\r\n", version, resp.StatusCode, reason)...)

	hasContentLength := resp.Header.Has(HeaderContentLength)
	resp.Header.Range(func(name, value string) {
		buf = append(buf, name...)
		buf = append(buf, ": "...)
		buf = append(buf, value...)
		buf = append(buf, "\r\n"...)
	})
	if !hasContentLength && len(resp.Body) > 0 {
		buf = append(buf, HeaderContentLength...)
		buf = append(buf, ": "...)
		buf = append(buf, strconv.Itoa(len(resp.Body))...)
		buf = append(buf, "\r\n"...)
	}

	buf = append(buf, "\r\n"...)
	buf = append(buf, resp.Body...)
	return buf, nil
}

// EncodeRequest appends one RTSP request to buf. It is the symmetric
// counterpart of parseRequest, used by tests exercising the round-trip
// invariant and by any client-role code built atop this package.
func EncodeRequest(buf []byte, req *Request) ([]byte, error) {
	version := req.Version
	if version == "" {
		version = Version
	}
	buf = append(buf, req.Method...)
	buf = append(buf, ' ')
	buf = append(buf, req.URI...)
	buf = append(buf, ' ')
	buf = append(buf, version...)
	buf = append(buf, "\r\n"...)

	hasContentLength := req.Header.Has(HeaderContentLength)
	req.Header.Range(func(name, value string) {
		buf = append(buf, name...)
		buf = append(buf, ": "...)
		buf = append(buf, value...)
		buf = append(buf, "\r\n"...)
	})
	if !hasContentLength && len(req.Body) > 0 {
		buf = append(buf, HeaderContentLength...)
		buf = append(buf, ": "...)
		buf = append(buf, strconv.Itoa(len(req.Body))...)
		buf = append(buf, "\r\n"...)
	}

	buf = append(buf, "\r\n"...)
	buf = append(buf, req.Body...)
	return buf, nil
}

// ParseResponse parses a single complete response from buf, used by
// tests exercising the round-trip invariant against a client-role
// reader. It does not support partial/incremental feeding; the framing
// codec's Decoder is the incremental, server-role parser.
func ParseResponse(buf []byte, maxBody int) (resp Response, consumed int, err error) {
	pos := 0
	startLine, n, found := findLine(buf[pos:])
	if !found {
		return Response{}, 0, nil
	}
	pos += n

	fields := splitStatusLine(startLine)
	if len(fields) < 2 {
		return Response{}, 0, ErrMalformedStartLine
	}
	if fields[0] != Version {
		return Response{}, 0, ErrUnknownVersion
	}
	code, convErr := strconv.Atoi(fields[1])
	if convErr != nil {
		return Response{}, 0, ErrMalformedStartLine
	}
	resp = Response{Version: fields[0], StatusCode: code}
	if len(fields) == 3 {
		resp.Reason = fields[2]
	}

	for {
		line, n, found := findLine(buf[pos:])
		if !found {
			return Response{}, 0, nil
		}
		pos += n
		if len(line) == 0 {
			break
		}
		name, value, ok := cutHeaderLine(line)
		if !ok {
			return Response{}, 0, ErrMalformedHeader
		}
		resp.Header.Add(name, value)
	}

	bodyLen := 0
	if cl := resp.Header.Get(HeaderContentLength); cl != "" {
		v, convErr := strconv.Atoi(cl)
		if convErr != nil || v < 0 {
			return Response{}, 0, ErrMalformedHeader
		}
		bodyLen = v
	}
	if bodyLen > maxBody {
		return Response{}, 0, ErrBodyTooLarge
	}
	if len(buf)-pos < bodyLen {
		return Response{}, 0, nil
	}
	if bodyLen > 0 {
		resp.Body = make([]byte, bodyLen)
		copy(resp.Body, buf[pos:pos+bodyLen])
		pos += bodyLen
	}

	return resp, pos, nil
}
