package sip

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"braces.dev/errtrace"

	"github.com/rromrrom/oss-core/internal/randutils"
)

// ResponseReason is the free-form reason phrase of a SIP response.
type ResponseReason = string

// defaultTagLen is the length of locally generated From/To tags.
const defaultTagLen = 16

// GenerateTag returns a random tag value of n characters, or [defaultTagLen]
// characters if n is zero or negative.
func GenerateTag(n int) string {
	if n <= 0 {
		n = defaultTagLen
	}
	return randutils.RandString(n)
}

// RenderOptions configures message rendering.
type RenderOptions struct {
	// Compact renders headers using their compact form where one is defined.
	Compact bool
}

// Message is implemented by [Request] and [Response] and by the envelope types
// wrapping them. It provides the common rendering, validation and comparison
// surface used across the transaction and transport layers.
type Message interface {
	RenderTo(w io.Writer, opts *RenderOptions) (int, error)
	Render(opts *RenderOptions) string
	String() string
	Format(f fmt.State, verb rune)
	Clone() Message
	Equal(v any) bool
	IsValid() bool
	Validate() error
	MarshalJSON() ([]byte, error)
	UnmarshalJSON(data []byte) error
	LogValue() slog.Value
}

// Metadata field names used in [MessageMetadata].
const (
	LocalAddrField      = "local_addr"
	RemoteAddrField     = "remote_addr"
	TransportField      = "transport"
	RequestTstampField  = "request_tstamp"
	ResponseTstampField = "response_tstamp"
)

// MessageMetadata carries out-of-band bookkeeping data attached to a message
// as it travels through the stack (e.g. the timestamp of the request a
// response was generated for).
type MessageMetadata map[string]any

// Set stores val under key, allocating the underlying map if necessary.
func (md *MessageMetadata) Set(key string, val any) {
	if md == nil {
		return
	}
	if *md == nil {
		*md = make(MessageMetadata)
	}
	(*md)[key] = val
}

// Get returns the value stored under key, if any.
func (md *MessageMetadata) Get(key string) (any, bool) {
	if md == nil || *md == nil {
		return nil, false
	}
	val, ok := (*md)[key]
	return val, ok
}

func (md *MessageMetadata) clone() *MessageMetadata {
	if md == nil {
		cloned := make(MessageMetadata)
		return &cloned
	}
	cloned := MessageMetadata(maps.Clone(map[string]any(*md)))
	return &cloned
}

var (
	zeroAddrPort  netip.AddrPort
	zeroTime      time.Time
	zeroSlogValue slog.Value

	jsonNull = []byte("null")
	sNilTag  = "<nil>"
	bNilTag  = []byte("<nil>")
)

// atomicValue is a generic, type-safe wrapper around [atomic.Value] that
// tolerates storing the zero value of T (including nil pointers/interfaces),
// which [atomic.Value] itself rejects.
type atomicValue[T any] struct {
	v atomic.Value
}

type atomicValueBox[T any] struct {
	val T
}

func (a *atomicValue[T]) Store(val T) {
	a.v.Store(atomicValueBox[T]{val: val})
}

func (a *atomicValue[T]) Load() T {
	if box, ok := a.v.Load().(atomicValueBox[T]); ok {
		return box.val
	}
	var zero T
	return zero
}

// headersOf and bodyOf extract the header map and body of a concrete message
// value. [Message] doesn't expose these directly since both [Request] and
// [Response] already use the names Headers/Body for their fields.
func headersOf(msg Message) Headers {
	switch m := msg.(type) {
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
	default:
		return nil
	}
}

func bodyOf(msg Message) []byte {
	switch m := msg.(type) {
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
	default:
		return nil
	}
}

// envelopeJSON is the on-wire JSON shape shared by every envelope type.
type envelopeJSON[M any] struct {
	Message     M              `json:"message"`
	Transport   TransportProto `json:"transport,omitempty"`
	LocalAddr   netip.AddrPort `json:"local_addr,omitempty"`
	RemoteAddr  netip.AddrPort `json:"remote_addr,omitempty"`
	MessageTime time.Time      `json:"message_time,omitempty"`
}

// messageEnvelope is the shared base for outbound message envelopes. It holds
// the message itself plus the transport/address/time metadata attached once
// the message is handed to a transport.
type messageEnvelope[M Message] struct {
	msg     atomicValue[M]
	tp      atomicValue[TransportProto]
	locAddr atomicValue[netip.AddrPort]
	rmtAddr atomicValue[netip.AddrPort]
	msgTime time.Time
	data    *MessageMetadata
}

func (me *messageEnvelope[M]) message() M {
	if me == nil {
		var zero M
		return zero
	}
	return me.msg.Load()
}

func (me *messageEnvelope[M]) Message() M { return me.message() }

func (me *messageEnvelope[M]) Headers() Headers {
	if me == nil {
		return nil
	}
	return headersOf(me.message())
}

func (me *messageEnvelope[M]) Body() []byte {
	if me == nil {
		return nil
	}
	return bodyOf(me.message())
}

func (me *messageEnvelope[M]) transport() TransportProto {
	if me == nil {
		return ""
	}
	return me.tp.Load()
}

func (me *messageEnvelope[M]) Transport() TransportProto { return me.transport() }

func (me *messageEnvelope[M]) localAddr() netip.AddrPort {
	if me == nil {
		return zeroAddrPort
	}
	return me.locAddr.Load()
}

func (me *messageEnvelope[M]) LocalAddr() netip.AddrPort { return me.localAddr() }

func (me *messageEnvelope[M]) remoteAddr() netip.AddrPort {
	if me == nil {
		return zeroAddrPort
	}
	return me.rmtAddr.Load()
}

func (me *messageEnvelope[M]) RemoteAddr() netip.AddrPort { return me.remoteAddr() }

func (me *messageEnvelope[M]) MessageTime() time.Time {
	if me == nil {
		return zeroTime
	}
	return me.msgTime
}

func (me *messageEnvelope[M]) Metadata() *MessageMetadata {
	if me == nil {
		return nil
	}
	if me.data == nil {
		me.data = new(MessageMetadata)
	}
	return me.data
}

func (me *messageEnvelope[M]) RenderTo(w io.Writer, opts *RenderOptions) (int, error) {
	if me == nil {
		return 0, nil
	}
	return errtrace.Wrap2(me.message().RenderTo(w, opts))
}

func (me *messageEnvelope[M]) Render(opts *RenderOptions) string {
	if me == nil {
		return ""
	}
	return me.message().Render(opts)
}

func (me *messageEnvelope[M]) String() string {
	if me == nil {
		return sNilTag
	}
	return me.message().String()
}

func (me *messageEnvelope[M]) Format(f fmt.State, verb rune) {
	if me == nil {
		f.Write(bNilTag) //nolint:errcheck
		return
	}
	me.message().Format(f, verb)
}

func (me *messageEnvelope[M]) Clone() Message {
	if me == nil {
		return nil
	}
	me2 := &messageEnvelope[M]{msgTime: me.msgTime}
	if cloned, ok := me.message().Clone().(M); ok {
		me2.msg.Store(cloned)
	}
	me2.tp.Store(me.transport())
	me2.locAddr.Store(me.localAddr())
	me2.rmtAddr.Store(me.remoteAddr())
	me2.data = me.Metadata().clone()
	return me2
}

func (me *messageEnvelope[M]) Equal(other *messageEnvelope[M]) bool {
	if me == other {
		return true
	}
	if me == nil || other == nil {
		return false
	}
	return me.message().Equal(other.message()) &&
		me.transport() == other.transport() &&
		me.localAddr() == other.localAddr() &&
		me.remoteAddr() == other.remoteAddr()
}

func (me *messageEnvelope[M]) IsValid() bool {
	return me != nil && me.message().IsValid()
}

func (me *messageEnvelope[M]) Validate() error {
	if me == nil {
		return errtrace.Wrap(NewInvalidArgumentError("invalid message envelope"))
	}
	return errtrace.Wrap(me.message().Validate())
}

func (me *messageEnvelope[M]) MarshalJSON() ([]byte, error) {
	if me == nil {
		return jsonNull, nil
	}
	return errtrace.Wrap2(json.Marshal(envelopeJSON[M]{
		Message:     me.message(),
		Transport:   me.transport(),
		LocalAddr:   me.localAddr(),
		RemoteAddr:  me.remoteAddr(),
		MessageTime: me.msgTime,
	}))
}

func (me *messageEnvelope[M]) UnmarshalJSON(data []byte) error {
	var ej envelopeJSON[M]
	if err := json.Unmarshal(data, &ej); err != nil {
		return errtrace.Wrap(err)
	}
	me.msg.Store(ej.Message)
	me.tp.Store(ej.Transport)
	me.locAddr.Store(ej.LocalAddr)
	me.rmtAddr.Store(ej.RemoteAddr)
	me.msgTime = ej.MessageTime
	return nil
}

func (me *messageEnvelope[M]) LogValue() slog.Value {
	if me == nil {
		return zeroSlogValue
	}
	return slog.GroupValue(
		slog.Any("message", me.message()),
		slog.Any("transport", me.transport()),
		slog.Any("local_addr", me.localAddr()),
		slog.Any("remote_addr", me.remoteAddr()),
		slog.Time("message_time", me.msgTime),
	)
}

// outboundMessageEnvelope wraps [messageEnvelope] with a mutex guarding
// in-place message mutation, since an outbound message can be rewritten by
// interceptors (e.g. [Element]'s User-Agent/Server header injection) right up
// until it's handed to the transport.
type outboundMessageEnvelope[M Message] struct {
	*messageEnvelope[M]
	msgMu sync.RWMutex
}

func (oe *outboundMessageEnvelope[M]) AccessMessage(update func(M)) {
	if oe == nil || update == nil {
		return
	}
	oe.msgMu.Lock()
	defer oe.msgMu.Unlock()
	msg := oe.message()
	update(msg)
	oe.msg.Store(msg)
}

func (oe *outboundMessageEnvelope[M]) SetTransport(tp TransportProto) {
	if oe == nil {
		return
	}
	oe.tp.Store(tp)
}

func (oe *outboundMessageEnvelope[M]) SetLocalAddr(addr netip.AddrPort) {
	if oe == nil {
		return
	}
	oe.locAddr.Store(addr)
}

func (oe *outboundMessageEnvelope[M]) SetRemoteAddr(addr netip.AddrPort) {
	if oe == nil {
		return
	}
	oe.rmtAddr.Store(addr)
}

func (oe *outboundMessageEnvelope[M]) Clone() Message {
	if oe == nil {
		return nil
	}
	cloned, _ := oe.messageEnvelope.Clone().(*messageEnvelope[M]) //nolint:forcetypeassert
	return &outboundMessageEnvelope[M]{messageEnvelope: cloned}
}

func (oe *outboundMessageEnvelope[M]) Equal(other *outboundMessageEnvelope[M]) bool {
	if oe == other {
		return true
	}
	if oe == nil || other == nil {
		return false
	}
	return oe.messageEnvelope.Equal(other.messageEnvelope)
}

func (oe *outboundMessageEnvelope[M]) UnmarshalJSON(data []byte) error {
	if oe.messageEnvelope == nil {
		oe.messageEnvelope = new(messageEnvelope[M])
	}
	return errtrace.Wrap(oe.messageEnvelope.UnmarshalJSON(data))
}

// inboundMessageEnvelope is the immutable envelope for messages arriving
// from a transport: once recorded, the message/transport/address/time facts
// never change, so it has no mutex and no setters.
type inboundMessageEnvelope[M Message] struct {
	msg     atomicValue[M]
	tp      atomicValue[TransportProto]
	locAddr atomicValue[netip.AddrPort]
	rmtAddr atomicValue[netip.AddrPort]
	msgTime time.Time
	data    *MessageMetadata
}

func (me *inboundMessageEnvelope[M]) message() M {
	if me == nil {
		var zero M
		return zero
	}
	return me.msg.Load()
}

func (me *inboundMessageEnvelope[M]) Message() M { return me.message() }

func (me *inboundMessageEnvelope[M]) Headers() Headers {
	if me == nil {
		return nil
	}
	return headersOf(me.message())
}

func (me *inboundMessageEnvelope[M]) Body() []byte {
	if me == nil {
		return nil
	}
	return bodyOf(me.message())
}

func (me *inboundMessageEnvelope[M]) transport() TransportProto {
	if me == nil {
		return ""
	}
	return me.tp.Load()
}

func (me *inboundMessageEnvelope[M]) Transport() TransportProto { return me.transport() }

func (me *inboundMessageEnvelope[M]) localAddr() netip.AddrPort {
	if me == nil {
		return zeroAddrPort
	}
	return me.locAddr.Load()
}

func (me *inboundMessageEnvelope[M]) LocalAddr() netip.AddrPort { return me.localAddr() }

func (me *inboundMessageEnvelope[M]) remoteAddr() netip.AddrPort {
	if me == nil {
		return zeroAddrPort
	}
	return me.rmtAddr.Load()
}

func (me *inboundMessageEnvelope[M]) RemoteAddr() netip.AddrPort { return me.remoteAddr() }

func (me *inboundMessageEnvelope[M]) MessageTime() time.Time {
	if me == nil {
		return zeroTime
	}
	return me.msgTime
}

func (me *inboundMessageEnvelope[M]) Metadata() *MessageMetadata {
	if me == nil {
		return nil
	}
	if me.data == nil {
		me.data = new(MessageMetadata)
	}
	return me.data
}

func (me *inboundMessageEnvelope[M]) RenderTo(w io.Writer, opts *RenderOptions) (int, error) {
	if me == nil {
		return 0, nil
	}
	return errtrace.Wrap2(me.message().RenderTo(w, opts))
}

func (me *inboundMessageEnvelope[M]) Render(opts *RenderOptions) string {
	if me == nil {
		return ""
	}
	return me.message().Render(opts)
}

func (me *inboundMessageEnvelope[M]) String() string {
	if me == nil {
		return sNilTag
	}
	return me.message().String()
}

func (me *inboundMessageEnvelope[M]) Format(f fmt.State, verb rune) {
	if me == nil {
		f.Write(bNilTag) //nolint:errcheck
		return
	}
	me.message().Format(f, verb)
}

func (me *inboundMessageEnvelope[M]) Clone() Message {
	if me == nil {
		return nil
	}
	me2 := &inboundMessageEnvelope[M]{msgTime: me.msgTime}
	if cloned, ok := me.message().Clone().(M); ok {
		me2.msg.Store(cloned)
	}
	me2.tp.Store(me.transport())
	me2.locAddr.Store(me.localAddr())
	me2.rmtAddr.Store(me.remoteAddr())
	me2.data = me.Metadata().clone()
	return me2
}

func (me *inboundMessageEnvelope[M]) Equal(other *inboundMessageEnvelope[M]) bool {
	if me == other {
		return true
	}
	if me == nil || other == nil {
		return false
	}
	return me.message().Equal(other.message()) &&
		me.transport() == other.transport() &&
		me.localAddr() == other.localAddr() &&
		me.remoteAddr() == other.remoteAddr()
}

func (me *inboundMessageEnvelope[M]) IsValid() bool {
	return me != nil && me.message().IsValid()
}

func (me *inboundMessageEnvelope[M]) Validate() error {
	if me == nil {
		return errtrace.Wrap(NewInvalidArgumentError("invalid message envelope"))
	}
	return errtrace.Wrap(me.message().Validate())
}

func (me *inboundMessageEnvelope[M]) MarshalJSON() ([]byte, error) {
	if me == nil {
		return jsonNull, nil
	}
	return errtrace.Wrap2(json.Marshal(envelopeJSON[M]{
		Message:     me.message(),
		Transport:   me.transport(),
		LocalAddr:   me.localAddr(),
		RemoteAddr:  me.remoteAddr(),
		MessageTime: me.msgTime,
	}))
}

func (me *inboundMessageEnvelope[M]) UnmarshalJSON(data []byte) error {
	var ej envelopeJSON[M]
	if err := json.Unmarshal(data, &ej); err != nil {
		return errtrace.Wrap(err)
	}
	me.msg.Store(ej.Message)
	me.tp.Store(ej.Transport)
	me.locAddr.Store(ej.LocalAddr)
	me.rmtAddr.Store(ej.RemoteAddr)
	me.msgTime = ej.MessageTime
	return nil
}

func (me *inboundMessageEnvelope[M]) LogValue() slog.Value {
	if me == nil {
		return zeroSlogValue
	}
	return slog.GroupValue(
		slog.Any("message", me.message()),
		slog.Any("transport", me.transport()),
		slog.Any("local_addr", me.localAddr()),
		slog.Any("remote_addr", me.remoteAddr()),
		slog.Time("message_time", me.msgTime),
	)
}
