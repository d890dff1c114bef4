package media

import (
	"context"
	"testing"
	"time"

	"github.com/pion/rtp"

	"rtspd/pkg/rtsp"
)

func TestDemoSourceEmitsDecodableRTPPackets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := DemoSource{PayloadType: 96, ClockRate: 90000, SSRC: 42}
	frames := src.Frames(ctx)

	var first, second rtsp.Frame
	select {
	case first = <-frames:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the first RTP frame")
	}
	select {
	case second = <-frames:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the second RTP frame")
	}

	if first.Channel != rtsp.FrameRTP {
		t.Errorf("expected FrameRTP channel kind, got %v", first.Channel)
	}

	var pkt rtp.Packet
	if err := pkt.Unmarshal(first.Payload); err != nil {
		t.Fatalf("first frame is not a decodable RTP packet: %v", err)
	}
	if pkt.PayloadType != 96 {
		t.Errorf("expected payload type 96, got %d", pkt.PayloadType)
	}
	if pkt.SSRC != 42 {
		t.Errorf("expected SSRC 42, got %d", pkt.SSRC)
	}

	var pkt2 rtp.Packet
	if err := pkt2.Unmarshal(second.Payload); err != nil {
		t.Fatalf("second frame is not a decodable RTP packet: %v", err)
	}
	if pkt2.SequenceNumber != pkt.SequenceNumber+1 {
		t.Errorf("expected sequence numbers to increment by 1, got %d then %d", pkt.SequenceNumber, pkt2.SequenceNumber)
	}
	if pkt2.Timestamp <= pkt.Timestamp {
		t.Errorf("expected rtp timestamp to advance, got %d then %d", pkt.Timestamp, pkt2.Timestamp)
	}
}

func TestDemoSourceStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := DemoSource{PayloadType: 96, ClockRate: 90000, SSRC: 1}
	frames := src.Frames(ctx)

	cancel()

	select {
	case _, ok := <-frames:
		if ok {
			// A frame already in flight is fine; drain until closed.
			for range frames {
			}
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the frame channel to close after cancellation")
	}
}

func TestNTPTimeEncodesSecondsSince1900(t *testing.T) {
	epoch := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	got := ntpTime(epoch)

	const ntpEpochOffset = 2208988800
	wantSeconds := uint64(ntpEpochOffset)
	if got>>32 != wantSeconds {
		t.Errorf("expected %d whole seconds since the NTP epoch, got %d", wantSeconds, got>>32)
	}
	if got&0xffffffff != 0 {
		t.Errorf("expected zero fractional seconds at an exact-second boundary, got %d", got&0xffffffff)
	}
}
