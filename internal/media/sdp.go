package media

import (
	"strconv"
	"time"

	"github.com/pion/sdp/v3"
)

// Track describes one media track of a presentation, enough to render
// its "m=" line and the rtpmap/fmtp attributes a client needs to decode
// it. It mirrors the fixed H.264/AAC pair the teacher's hand-formatted
// generateDetailedSDP emits.
type Track struct {
	Media        string
	PayloadType  uint8
	ClockRate    uint32
	EncodingName string
	Fmtp         string
}

// BuildSDP renders a session description for name's tracks. Each track's
// control attribute is trackN, matching the SETUP URL suffix clients are
// expected to request.
func BuildSDP(name string, tracks []Track) []byte {
	now := time.Now().Unix()

	desc := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      uint64(now),
			SessionVersion: uint64(now),
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "127.0.0.1",
		},
		SessionName: sdp.SessionName(name),
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: "0.0.0.0"},
		},
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
		Attributes: []sdp.Attribute{
			sdp.NewAttribute("tool", ServerName),
			sdp.NewAttribute("range", "npt=0-"),
		},
	}

	for i, t := range tracks {
		md := &sdp.MediaDescription{
			MediaName: sdp.MediaName{
				Media:   t.Media,
				Port:    sdp.RangedPort{Value: 0},
				Protos:  []string{"RTP", "AVP"},
				Formats: []string{strconv.Itoa(int(t.PayloadType))},
			},
			ConnectionInformation: &sdp.ConnectionInformation{
				NetworkType: "IN",
				AddressType: "IP4",
				Address:     &sdp.Address{Address: "0.0.0.0"},
			},
			Attributes: []sdp.Attribute{
				sdp.NewAttribute("rtpmap", strconv.Itoa(int(t.PayloadType))+" "+t.EncodingName+"/"+strconv.Itoa(int(t.ClockRate))),
			},
		}
		if t.Fmtp != "" {
			md.Attributes = append(md.Attributes, sdp.NewAttribute("fmtp", strconv.Itoa(int(t.PayloadType))+" "+t.Fmtp))
		}
		md.Attributes = append(md.Attributes, sdp.NewAttribute("control", "track"+strconv.Itoa(i+1)))
		desc.MediaDescriptions = append(desc.MediaDescriptions, md)
	}

	b, _ := desc.Marshal()
	return b
}

// ServerName is the tool= attribute value stamped on every presentation
// this controller serves.
const ServerName = "rtspd"
