package rtsp

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecoderParsesOptionsRequest(t *testing.T) {
	dec := NewDecoder(DefaultLimits())
	dec.Feed([]byte("OPTIONS rtsp://s/ RTSP/1.0\r\nCSeq: 1\r\n\r\n"))

	item, ok, err := dec.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a complete item")
	}
	req, isMessage := item.Message()
	if !isMessage {
		t.Fatal("expected a message item")
	}
	if req.Method != MethodOptions || req.URI != "rtsp://s/" || req.Version != Version {
		t.Errorf("unexpected request: %+v", req)
	}
	if got := req.Header.Get(HeaderCSeq); got != "1" {
		t.Errorf("expected CSeq 1, got %q", got)
	}

	if _, ok, _ := dec.Next(); ok {
		t.Fatal("expected hungry after consuming the only item")
	}
}

func TestDecoderAcceptsLoneLF(t *testing.T) {
	dec := NewDecoder(DefaultLimits())
	dec.Feed([]byte("OPTIONS rtsp://s/ RTSP/1.0\nCSeq: 1\n\n"))

	item, ok, err := dec.Next()
	if err != nil || !ok {
		t.Fatalf("expected a complete item, err=%v ok=%v", err, ok)
	}
	req, _ := item.Message()
	if req.Method != MethodOptions {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestDecoderParsesBodyByContentLength(t *testing.T) {
	dec := NewDecoder(DefaultLimits())
	dec.Feed([]byte("ANNOUNCE rtsp://s/ RTSP/1.0\r\nCSeq: 2\r\nContent-Length: 5\r\n\r\nhello"))

	item, ok, err := dec.Next()
	if err != nil || !ok {
		t.Fatalf("expected a complete item, err=%v ok=%v", err, ok)
	}
	req, _ := item.Message()
	if string(req.Body) != "hello" {
		t.Errorf("expected body %q, got %q", "hello", req.Body)
	}
}

func TestDecoderHungryOnPartialBody(t *testing.T) {
	dec := NewDecoder(DefaultLimits())
	dec.Feed([]byte("ANNOUNCE rtsp://s/ RTSP/1.0\r\nCSeq: 2\r\nContent-Length: 5\r\n\r\nhel"))

	if _, ok, err := dec.Next(); ok || err != nil {
		t.Fatalf("expected hungry with no error, got ok=%v err=%v", ok, err)
	}

	dec.Feed([]byte("lo"))
	item, ok, err := dec.Next()
	if err != nil || !ok {
		t.Fatalf("expected completion after rest of body arrives, err=%v ok=%v", err, ok)
	}
	req, _ := item.Message()
	if string(req.Body) != "hello" {
		t.Errorf("expected body %q, got %q", "hello", req.Body)
	}
}

func TestDecoderMalformedStartLine(t *testing.T) {
	dec := NewDecoder(DefaultLimits())
	dec.Feed([]byte("bogus\r\n\r\n"))
	if _, _, err := dec.Next(); !errors.Is(err, ErrMalformedStartLine) {
		t.Fatalf("expected ErrMalformedStartLine, got %v", err)
	}
}

func TestDecoderUnknownVersion(t *testing.T) {
	dec := NewDecoder(DefaultLimits())
	dec.Feed([]byte("OPTIONS rtsp://s/ RTSP/2.0\r\n\r\n"))
	if _, _, err := dec.Next(); !errors.Is(err, ErrUnknownVersion) {
		t.Fatalf("expected ErrUnknownVersion, got %v", err)
	}
}

func TestDecoderMalformedHeader(t *testing.T) {
	dec := NewDecoder(DefaultLimits())
	dec.Feed([]byte("OPTIONS rtsp://s/ RTSP/1.0\r\nCSeq without colon\r\n\r\n"))
	if _, _, err := dec.Next(); !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("expected ErrMalformedHeader, got %v", err)
	}
}

func TestDecoderBodyTooLarge(t *testing.T) {
	dec := NewDecoder(Limits{MaxBodySize: 4, MaxInterleavedPayload: MaxInterleavedPayload})
	dec.Feed([]byte("ANNOUNCE rtsp://s/ RTSP/1.0\r\nContent-Length: 5\r\n\r\nhello"))
	if _, _, err := dec.Next(); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
}

func TestDecoderInterleavedTooLarge(t *testing.T) {
	dec := NewDecoder(Limits{MaxBodySize: 1 << 20, MaxInterleavedPayload: 2})
	dec.Feed([]byte{InterleavedMagic, 0x00, 0x00, 0x04, 1, 2, 3, 4})
	if _, _, err := dec.Next(); !errors.Is(err, ErrInterleavedTooLarge) {
		t.Fatalf("expected ErrInterleavedTooLarge, got %v", err)
	}
}

func TestDecoderInterleavedFrameRoundTrip(t *testing.T) {
	buf, err := EncodeFrame(nil, Frame{Channel: 0, Payload: []byte{0x00, 0x01, 0x02, 0x03}})
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	want := []byte{0x24, 0x00, 0x00, 0x04, 0x00, 0x01, 0x02, 0x03}
	if !bytes.Equal(buf, want) {
		t.Fatalf("expected %v, got %v", want, buf)
	}

	dec := NewDecoder(DefaultLimits())
	dec.Feed(buf)
	item, ok, err := dec.Next()
	if err != nil || !ok {
		t.Fatalf("expected a complete item, err=%v ok=%v", err, ok)
	}
	frame, isFrame := item.Frame()
	if !isFrame {
		t.Fatal("expected an interleaved item")
	}
	if frame.Channel != 0 || !bytes.Equal(frame.Payload, []byte{0x00, 0x01, 0x02, 0x03}) {
		t.Errorf("unexpected frame: %+v", frame)
	}
}

// TestDecoderFramingPurityByteAtATime exercises invariant 2: feeding an
// encoded stream of N items to a fresh decoder one byte at a time still
// yields exactly those N items in order, then hungry.
func TestDecoderFramingPurityByteAtATime(t *testing.T) {
	var stream []byte

	req := NewRequest(MethodOptions, "rtsp://s/")
	req.Header.Set(HeaderCSeq, "1")
	reqBytes, err := EncodeRequest(nil, req)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	stream = append(stream, reqBytes...)

	frameBytes, err := EncodeFrame(nil, Frame{Channel: 3, Payload: []byte{0xAA, 0xBB, 0xCC}})
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	stream = append(stream, frameBytes...)

	req2 := NewRequest(MethodTeardown, "rtsp://s/a")
	req2.Header.Set(HeaderCSeq, "2")
	req2Bytes, err := EncodeRequest(nil, req2)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	stream = append(stream, req2Bytes...)

	dec := NewDecoder(DefaultLimits())
	var got []MaybeInterleaved[Request]
	for _, b := range stream {
		dec.Feed([]byte{b})
		for {
			item, ok, err := dec.Next()
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if !ok {
				break
			}
			got = append(got, item)
		}
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	if m, ok := got[0].Message(); !ok || m.Method != MethodOptions {
		t.Errorf("item 0: expected OPTIONS message, got %+v ok=%v", m, ok)
	}
	if f, ok := got[1].Frame(); !ok || f.Channel != 3 {
		t.Errorf("item 1: expected channel-3 frame, got %+v ok=%v", f, ok)
	}
	if m, ok := got[2].Message(); !ok || m.Method != MethodTeardown {
		t.Errorf("item 2: expected TEARDOWN message, got %+v ok=%v", m, ok)
	}

	if _, ok, err := dec.Next(); ok || err != nil {
		t.Fatalf("expected hungry with no error after all items consumed, ok=%v err=%v", ok, err)
	}
}

func TestDecoderDoesNotMisreadStrayDollarInsideMessage(t *testing.T) {
	// A literal '$' inside a header value must not be mistaken for the
	// interleaved magic byte: ParseMessage, once entered, owns the byte
	// stream until it reports Done.
	dec := NewDecoder(DefaultLimits())
	dec.Feed([]byte("OPTIONS rtsp://s/ RTSP/1.0\r\nCSeq: 1\r\nX-Note: $24\r\n\r\n"))

	item, ok, err := dec.Next()
	if err != nil || !ok {
		t.Fatalf("expected a complete item, err=%v ok=%v", err, ok)
	}
	req, isMessage := item.Message()
	if !isMessage {
		t.Fatal("expected a message item, not an interleaved frame")
	}
	if got := req.Header.Get("X-Note"); got != "$24" {
		t.Errorf("expected header value preserved verbatim, got %q", got)
	}
}
