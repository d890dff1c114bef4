package media

import (
	"context"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"rtspd/pkg/rtsp"
)

// DemoSource is a reference rtsp.SourceDelegate that emits synthetic RTP
// packets at a fixed rate plus a periodic RTCP sender report. It exists
// to exercise the interleaved frame path end-to-end without a real
// capture/transcode pipeline behind it, replacing the teacher's
// hand-rolled pkg/rtp packet/session pair with the real pion codecs.
type DemoSource struct {
	PayloadType uint8
	ClockRate   uint32
	SSRC        uint32
}

func (d DemoSource) Frames(ctx context.Context) <-chan rtsp.Frame {
	out := make(chan rtsp.Frame, 16)
	go d.run(ctx, out)
	return out
}

func (d DemoSource) run(ctx context.Context, out chan<- rtsp.Frame) {
	defer close(out)

	frameTicker := time.NewTicker(40 * time.Millisecond)
	defer frameTicker.Stop()

	reportTicker := time.NewTicker(5 * time.Second)
	defer reportTicker.Stop()

	var seq uint16
	var timestamp uint32
	var packetCount, octetCount uint32

	for {
		select {
		case <-ctx.Done():
			return

		case <-frameTicker.C:
			payload := []byte{0x00, 0x00, 0x00, 0x01, 0x65} // placeholder IDR NAL start
			packet := &rtp.Packet{
				Header: rtp.Header{
					Version:        2,
					PayloadType:    d.PayloadType,
					SequenceNumber: seq,
					Timestamp:      timestamp,
					SSRC:           d.SSRC,
				},
				Payload: payload,
			}
			raw, err := packet.Marshal()
			if err != nil {
				return
			}
			seq++
			timestamp += d.ClockRate / 25
			packetCount++
			octetCount += uint32(len(payload))

			select {
			case out <- rtsp.Frame{Channel: rtsp.FrameRTP, Payload: raw}:
			case <-ctx.Done():
				return
			}

		case <-reportTicker.C:
			sr := &rtcp.SenderReport{
				SSRC:        d.SSRC,
				NTPTime:     ntpTime(time.Now()),
				RTPTime:     timestamp,
				PacketCount: packetCount,
				OctetCount:  octetCount,
			}
			raw, err := sr.Marshal()
			if err != nil {
				continue
			}

			select {
			case out <- rtsp.Frame{Channel: rtsp.FrameRTCP, Payload: raw}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// ntpTime converts t to the 64-bit NTP timestamp format RTCP sender
// reports carry: seconds since the 1900 epoch in the high 32 bits,
// fractional seconds in the low 32.
func ntpTime(t time.Time) uint64 {
	const ntpEpochOffset = 2208988800
	secs := uint64(t.Unix()) + ntpEpochOffset
	frac := uint64(t.Nanosecond()) * (1 << 32) / 1e9
	return secs<<32 | frac
}
