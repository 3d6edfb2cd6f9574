// Package sip implements SIP protocol as described in RFC 3261.
package sip

import (
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/rromrrom/oss-core/internal/randutils"
	"github.com/rromrrom/oss-core/sip/internal/shared"
)

type ProtoInfo = shared.ProtoInfo

var protoVer20 = ProtoInfo{Name: "SIP", Version: "2.0"}

func ProtoVer20() ProtoInfo { return protoVer20 }

// MagicCookie is the RFC 3261 magic cookie that prefixes all branch values
// generated by a compliant element, letting a transaction layer tell RFC 3261
// branches apart from those produced by RFC 2543 implementations.
const MagicCookie = "z9hG4bK"

// defaultBranchLen is the length of the random suffix appended to [MagicCookie]
// by [GenerateBranch].
const defaultBranchLen = 32

// GenerateBranch returns a unique Via branch value prefixed with [MagicCookie],
// with a random suffix of n characters, or [defaultBranchLen] characters if n
// is zero or negative.
func GenerateBranch(n int) string {
	if n <= 0 {
		n = defaultBranchLen
	}
	return MagicCookie + randutils.RandString(n)
}

// defaultCallIDLen is the length of the random local part generated by [GenerateCallID].
const defaultCallIDLen = 32

// GenerateCallID returns a unique Call-ID value of the form "<random>@<host>".
// The random part is n characters long, or [defaultCallIDLen] characters if n
// is zero or negative. If host is empty, the "@<host>" suffix is omitted.
func GenerateCallID(n int, host string) string {
	if n <= 0 {
		n = defaultCallIDLen
	}
	id := randutils.RandString(n)
	if host == "" {
		return id
	}
	return id + "@" + host
}

// IsRFC3261Branch reports whether branch was generated by an RFC 3261 compliant
// element, i.e. it carries the [MagicCookie] prefix and is not just the cookie
// itself. Branches failing this check must be treated as RFC 2543 branches and
// matched using the legacy transaction key rules.
func IsRFC3261Branch(branch string) bool {
	return len(branch) > len(MagicCookie) && strings.HasPrefix(branch, MagicCookie)
}

// GetMessageHeaders returns the header store carried by msg, whether msg is a
// raw [*Request]/[*Response] or one of the inbound/outbound message envelopes.
// It returns nil if msg carries no headers.
func GetMessageHeaders(msg Message) Headers {
	switch m := msg.(type) {
	case nil:
		return nil
	case *Request:
		if m == nil {
			return nil
		}
		return m.Headers
	case *Response:
		if m == nil {
			return nil
		}
		return m.Headers
	case interface{ Headers() Headers }:
		return m.Headers()
	default:
		return nil
	}
}

// SetMessageHeaders replaces the header store carried by msg, if msg is a raw
// [*Request]/[*Response]. It is a no-op for message envelopes, whose headers
// are derived from the wrapped message.
func SetMessageHeaders(msg Message, hdrs Headers) {
	switch m := msg.(type) {
	case *Request:
		if m != nil {
			m.Headers = hdrs
		}
	case *Response:
		if m != nil {
			m.Headers = hdrs
		}
	}
}

// GetMessageBody returns the body carried by msg, whether msg is a raw
// [*Request]/[*Response] or one of the inbound/outbound message envelopes.
// It returns nil if msg carries no body.
func GetMessageBody(msg Message) []byte {
	switch m := msg.(type) {
	case nil:
		return nil
	case *Request:
		if m == nil {
			return nil
		}
		return m.Body
	case *Response:
		if m == nil {
			return nil
		}
		return m.Body
	case interface{ Body() []byte }:
		return m.Body()
	default:
		return nil
	}
}

// SetMessageBody replaces the body carried by msg, if msg is a raw
// [*Request]/[*Response]. It is a no-op for message envelopes, whose bodies
// are derived from the wrapped message.
func SetMessageBody(msg Message, body []byte) {
	switch m := msg.(type) {
	case *Request:
		if m != nil {
			m.Body = body
		}
	case *Response:
		if m != nil {
			m.Body = body
		}
	}
}

// GetMessageMetadata returns the out-of-band bookkeeping data carried by msg,
// whether msg is a raw [*Request]/[*Response] or one of the inbound/outbound
// message envelopes. It returns nil if msg carries no metadata.
func GetMessageMetadata(msg Message) MessageMetadata {
	switch m := msg.(type) {
	case nil:
		return nil
	case *Request:
		if m == nil {
			return nil
		}
		return m.Metadata
	case *Response:
		if m == nil {
			return nil
		}
		return m.Metadata
	case interface{ Metadata() *MessageMetadata }:
		md := m.Metadata()
		if md == nil {
			return nil
		}
		return *md
	default:
		return nil
	}
}

// SetMessageMetadata replaces the out-of-band bookkeeping data carried by msg,
// whether msg is a raw [*Request]/[*Response] or one of the inbound/outbound
// message envelopes.
func SetMessageMetadata(msg Message, md MessageMetadata) {
	switch m := msg.(type) {
	case *Request:
		if m != nil {
			m.Metadata = md
		}
	case *Response:
		if m != nil {
			m.Metadata = md
		}
	case interface{ Metadata() *MessageMetadata }:
		if dst := m.Metadata(); dst != nil {
			*dst = md
		}
	}
}

func init() {
	sdpRegex := regexp.MustCompile(`v=0\r?\no=.*\r?\ns=.*\r?\n`)
	mimetype.Extend(func(raw []byte, limit uint32) bool { return sdpRegex.Match(raw) }, "application/sdp", ".sdp")
	// TODO add other common mime-type detectors (DTMF, etc)
}
