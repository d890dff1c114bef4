package rtsp

import (
	"strconv"
	"strings"
)

// RTPInfo is the parsed form of an RTP-Info header field for one URL:
// url=<url>[;seq=<u16>][;rtptime=<u32>].
type RTPInfo struct {
	URL     string
	Seq     *uint16
	RTPTime *uint32
}

// ParseRTPInfo parses a single RTP-Info field. The url parameter is
// mandatory and must come first; seq and rtptime are each optional and
// may appear at most once; any other parameter name, a misplaced or
// missing url, a duplicate parameter, or more than three segments is
// ErrRTPInfoParameterUnknown.
func ParseRTPInfo(field string) (RTPInfo, error) {
	segments := strings.Split(field, ";")
	if len(segments) == 0 || len(segments) > 3 {
		return RTPInfo{}, ErrRTPInfoParameterUnknown
	}

	var info RTPInfo
	for i, seg := range segments {
		seg = strings.TrimSpace(seg)
		name, value, ok := strings.Cut(seg, "=")
		if !ok {
			return RTPInfo{}, ErrRTPInfoParameterUnknown
		}

		switch name {
		case "url":
			if i != 0 {
				return RTPInfo{}, ErrRTPInfoParameterUnknown
			}
			info.URL = value
		case "seq":
			if info.Seq != nil {
				return RTPInfo{}, ErrRTPInfoParameterUnknown
			}
			n, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return RTPInfo{}, ErrRTPInfoParameterUnknown
			}
			seq := uint16(n)
			info.Seq = &seq
		case "rtptime":
			if info.RTPTime != nil {
				return RTPInfo{}, ErrRTPInfoParameterUnknown
			}
			n, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return RTPInfo{}, ErrRTPInfoParameterUnknown
			}
			rtptime := uint32(n)
			info.RTPTime = &rtptime
		default:
			return RTPInfo{}, ErrRTPInfoParameterUnknown
		}
	}

	if info.URL == "" {
		return RTPInfo{}, ErrRTPInfoParameterUnknown
	}
	return info, nil
}

// String renders the canonical textual form: url first, then seq, then
// rtptime, each present only if set.
func (i RTPInfo) String() string {
	var sb strings.Builder
	sb.WriteString("url=")
	sb.WriteString(i.URL)
	if i.Seq != nil {
		sb.WriteString(";seq=")
		sb.WriteString(strconv.FormatUint(uint64(*i.Seq), 10))
	}
	if i.RTPTime != nil {
		sb.WriteString(";rtptime=")
		sb.WriteString(strconv.FormatUint(uint64(*i.RTPTime), 10))
	}
	return sb.String()
}
