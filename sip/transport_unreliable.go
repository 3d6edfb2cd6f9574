package sip

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"sync"

	"braces.dev/errtrace"

	"github.com/rromrrom/oss-core/internal/ratelimit"
	"github.com/rromrrom/oss-core/internal/types"
	"github.com/rromrrom/oss-core/log"
)

// UnreliableTransportOptions contains options for [UnreliableTransport].
type UnreliableTransportOptions struct {
	// DefaultPort is a default well-known port of the transport.
	// Default is 5060.
	DefaultPort uint16
	// Secured indicates whether the transport is secured.
	// Default is false.
	Secured bool
	// Parser is a parser used to parse inbound SIP messages.
	// If nil, [DefaultParser] is used.
	Parser Parser
	// Logger is a logger used to log transport events, warnings and errors.
	// If nil, [log.Default] is used.
	Logger *slog.Logger
	// RateLimiter, if set, is consulted for every inbound packet before it is parsed.
	// Sources it rejects are dropped silently.
	RateLimiter *ratelimit.Limiter
}

func (o *UnreliableTransportOptions) defPort() uint16 {
	if o == nil || o.DefaultPort == 0 {
		return 5060
	}
	return o.DefaultPort
}

func (o *UnreliableTransportOptions) secured() bool {
	if o == nil {
		return false
	}
	return o.Secured
}

func (o *UnreliableTransportOptions) parser() Parser {
	if o == nil || o.Parser == nil {
		return DefaultParser()
	}
	return o.Parser
}

func (o *UnreliableTransportOptions) log() *slog.Logger {
	if o == nil || o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

func (o *UnreliableTransportOptions) rateLimiter() *ratelimit.Limiter {
	if o == nil {
		return nil
	}
	return o.RateLimiter
}

// UnreliableTransport implements [Transport] over a connection-less, packet-oriented
// network protocol, such as UDP.
type UnreliableTransport struct {
	proto  TransportProto
	conn   net.PacketConn
	laddr  netip.AddrPort
	meta   TransportMetadata
	parser Parser
	log    *slog.Logger

	inReqInts  types.CallbackManager[InboundRequestInterceptor]
	inResInts  types.CallbackManager[InboundResponseInterceptor]
	outReqInts types.CallbackManager[OutboundRequestInterceptor]
	outResInts types.CallbackManager[OutboundResponseInterceptor]

	limiter *ratelimit.Limiter

	closeOnce sync.Once
	closed    chan struct{}
}

// NewUnreliableTransport creates a new [UnreliableTransport].
// Transport protocol and connection are required arguments.
// Options are optional, default options are used if nil.
func NewUnreliableTransport(
	proto TransportProto,
	conn net.PacketConn,
	opts *UnreliableTransportOptions,
) (*UnreliableTransport, error) {
	if !proto.IsValid() {
		return nil, errtrace.Wrap(NewInvalidArgumentError("invalid protocol"))
	}
	if conn == nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError("invalid connection"))
	}

	laddr, err := netip.ParseAddrPort(conn.LocalAddr().String())
	if err != nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError("invalid connection local address"))
	}

	tp := &UnreliableTransport{
		proto: proto,
		conn:  conn,
		laddr: laddr,
		meta: TransportMetadata{
			Proto:       proto,
			Network:     conn.LocalAddr().Network(),
			Reliable:    false,
			Secured:     opts.secured(),
			Streamed:    false,
			DefaultPort: opts.defPort(),
		},
		parser:  opts.parser(),
		log:     opts.log(),
		limiter: opts.rateLimiter(),
		closed:  make(chan struct{}),
	}
	tp.log = tp.log.With("transport", tp)
	return tp, nil
}

func (tp *UnreliableTransport) Proto() TransportProto { return tp.proto }

func (tp *UnreliableTransport) Network() string { return tp.meta.Network }

func (tp *UnreliableTransport) LocalAddr() netip.AddrPort { return tp.laddr }

func (*UnreliableTransport) Reliable() bool { return false }

func (tp *UnreliableTransport) Secured() bool { return tp.meta.Secured }

func (*UnreliableTransport) Streamed() bool { return false }

func (tp *UnreliableTransport) DefaultPort() uint16 { return tp.meta.DefaultPort }

func (tp *UnreliableTransport) LogValue() slog.Value {
	if tp == nil {
		return zeroSlogValue
	}
	return slog.GroupValue(
		slog.Any("proto", tp.proto),
		slog.Any("local_addr", tp.laddr),
	)
}

func (tp *UnreliableTransport) UseInboundRequestInterceptor(
	interceptor InboundRequestInterceptor,
) (unbind func()) {
	if interceptor == nil {
		return func() {}
	}
	return tp.inReqInts.Add(interceptor)
}

func (tp *UnreliableTransport) UseInboundResponseInterceptor(
	interceptor InboundResponseInterceptor,
) (unbind func()) {
	if interceptor == nil {
		return func() {}
	}
	return tp.inResInts.Add(interceptor)
}

func (tp *UnreliableTransport) UseOutboundRequestInterceptor(
	interceptor OutboundRequestInterceptor,
) (unbind func()) {
	if interceptor == nil {
		return func() {}
	}
	return tp.outReqInts.Add(interceptor)
}

func (tp *UnreliableTransport) UseOutboundResponseInterceptor(
	interceptor OutboundResponseInterceptor,
) (unbind func()) {
	if interceptor == nil {
		return func() {}
	}
	return tp.outResInts.Add(interceptor)
}

// UseInterceptor registers every non-nil sub-interceptor of interceptor,
// returning a single unbind closure for all of them.
func (tp *UnreliableTransport) UseInterceptor(interceptor MessageInterceptor) (unbind func()) {
	if interceptor == nil {
		return func() {}
	}

	var unbinds []func()
	if in := interceptor.InboundRequestInterceptor(); in != nil {
		unbinds = append(unbinds, tp.UseInboundRequestInterceptor(in))
	}
	if in := interceptor.InboundResponseInterceptor(); in != nil {
		unbinds = append(unbinds, tp.UseInboundResponseInterceptor(in))
	}
	if out := interceptor.OutboundRequestInterceptor(); out != nil {
		unbinds = append(unbinds, tp.UseOutboundRequestInterceptor(out))
	}
	if out := interceptor.OutboundResponseInterceptor(); out != nil {
		unbinds = append(unbinds, tp.UseOutboundResponseInterceptor(out))
	}
	return func() {
		for _, fn := range unbinds {
			fn()
		}
	}
}

func (tp *UnreliableTransport) SendRequest(
	ctx context.Context,
	req *OutboundRequestEnvelope,
	opts *SendRequestOptions,
) error {
	ctx = ContextWithTransport(ctx, tp)
	var ints []OutboundRequestInterceptor
	for i := range tp.outReqInts.All() {
		ints = append(ints, i)
	}
	sender := ChainOutboundRequest(ints, RequestSenderFunc(tp.writeRequest))
	return errtrace.Wrap(sender.SendRequest(ctx, req, opts))
}

func (tp *UnreliableTransport) writeRequest(
	ctx context.Context,
	req *OutboundRequestEnvelope,
	opts *SendRequestOptions,
) error {
	raddr := req.RemoteAddr()
	if !raddr.IsValid() {
		return errtrace.Wrap(NewInvalidArgumentError("invalid remote address"))
	}

	buf := new(bytes.Buffer)
	if _, err := req.RenderTo(buf, opts.rendOpts()); err != nil {
		return errtrace.Wrap(err)
	}
	if err := tp.writePacket(ctx, buf.Bytes(), raddr); err != nil {
		return errtrace.Wrap(err)
	}
	req.SetLocalAddr(tp.laddr)
	return nil
}

func (tp *UnreliableTransport) SendResponse(
	ctx context.Context,
	res *OutboundResponseEnvelope,
	opts *SendResponseOptions,
) error {
	ctx = ContextWithTransport(ctx, tp)
	var ints []OutboundResponseInterceptor
	for i := range tp.outResInts.All() {
		ints = append(ints, i)
	}
	sender := ChainOutboundResponse(ints, ResponseSenderFunc(tp.writeResponse))
	return errtrace.Wrap(sender.SendResponse(ctx, res, opts))
}

func (tp *UnreliableTransport) writeResponse(
	ctx context.Context,
	res *OutboundResponseEnvelope,
	opts *SendResponseOptions,
) error {
	raddr := res.RemoteAddr()
	if !raddr.IsValid() {
		return errtrace.Wrap(NewInvalidArgumentError("invalid remote address"))
	}

	buf := new(bytes.Buffer)
	if _, err := res.RenderTo(buf, opts.rendOpts()); err != nil {
		return errtrace.Wrap(err)
	}
	if err := tp.writePacket(ctx, buf.Bytes(), raddr); err != nil {
		return errtrace.Wrap(err)
	}
	res.SetLocalAddr(tp.laddr)
	return nil
}

func (tp *UnreliableTransport) writePacket(ctx context.Context, b []byte, raddr netip.AddrPort) error {
	if d, ok := ctx.Deadline(); ok {
		if err := tp.conn.SetWriteDeadline(d); err != nil {
			return errtrace.Wrap(err)
		}
		defer tp.conn.SetWriteDeadline(zeroTime) //nolint:errcheck
	}
	_, err := tp.conn.WriteTo(b, net.UDPAddrFromAddrPort(raddr))
	return errtrace.Wrap(err)
}

// Serve reads packets from the underlying connection until ctx is done or
// the transport is closed, dispatching each parsed message to the bound
// interceptor chains.
func (tp *UnreliableTransport) Serve(ctx context.Context) error {
	tp.log.LogAttrs(ctx, slog.LevelDebug, "begin serving the transport")
	defer tp.log.LogAttrs(ctx, slog.LevelDebug, "serving the transport finished")

	buf := make([]byte, MaxMsgSize)
	for {
		select {
		case <-tp.closed:
			return errtrace.Wrap(ErrTransportClosed)
		case <-ctx.Done():
			return errtrace.Wrap(tp.Close(context.WithoutCancel(ctx)))
		default:
		}

		n, raddrAny, err := tp.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-tp.closed:
				return errtrace.Wrap(ErrTransportClosed)
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return errtrace.Wrap(ErrTransportClosed)
			}
			tp.log.LogAttrs(ctx, slog.LevelWarn, "failed to read packet", slog.Any("error", err))
			continue
		}
		if n == 0 {
			continue
		}

		raddr, err := netip.ParseAddrPort(raddrAny.String())
		if err != nil {
			tp.log.LogAttrs(ctx, slog.LevelWarn, "failed to parse peer address",
				slog.Any("peer", raddrAny), slog.Any("error", err))
			continue
		}

		if tp.limiter != nil && !tp.limiter.Allow(raddr.Addr()) {
			tp.log.LogAttrs(ctx, slog.LevelDebug, "dropping inbound packet, source is rate-limited or banned",
				slog.Any("peer", raddr))
			continue
		}

		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		tp.dispatch(ctx, pkt, raddr)
	}
}

func (tp *UnreliableTransport) dispatch(ctx context.Context, pkt []byte, raddr netip.AddrPort) {
	msg, err := tp.parser.ParsePacket(pkt)
	if err != nil {
		tp.log.LogAttrs(ctx, slog.LevelWarn, "failed to parse inbound packet",
			slog.Any("peer", raddr), slog.Any("error", err))
		return
	}

	switch m := msg.(type) {
	case *Request:
		tp.dispatchRequest(ctx, m, raddr)
	case *Response:
		tp.dispatchResponse(ctx, m, raddr)
	default:
		tp.log.LogAttrs(ctx, slog.LevelWarn, "parsed packet is neither a request nor a response",
			slog.Any("peer", raddr))
	}
}

func (tp *UnreliableTransport) dispatchRequest(ctx context.Context, req *Request, raddr netip.AddrPort) {
	in, err := NewInboundRequestEnvelope(req, tp.proto, tp.laddr, raddr)
	if err != nil {
		tp.log.LogAttrs(ctx, slog.LevelWarn, "failed to build inbound request envelope", slog.Any("error", err))
		return
	}

	ctx = ContextWithTransport(ctx, tp)
	var ints []InboundRequestInterceptor
	for i := range tp.inReqInts.All() {
		ints = append(ints, i)
	}
	receiver := ChainInboundRequest(ints, RequestReceiverFunc(func(context.Context, *InboundRequestEnvelope) error {
		return errtrace.Wrap(ErrUnhandledMessage)
	}))
	if err := receiver.RecvRequest(ctx, in); err != nil && !errors.Is(err, ErrUnhandledMessage) {
		tp.log.LogAttrs(ctx, slog.LevelWarn, "failed to handle inbound request", slog.Any("error", err))
	}
}

func (tp *UnreliableTransport) dispatchResponse(ctx context.Context, res *Response, raddr netip.AddrPort) {
	in, err := NewInboundResponseEnvelope(res, tp.proto, tp.laddr, raddr)
	if err != nil {
		tp.log.LogAttrs(ctx, slog.LevelWarn, "failed to build inbound response envelope", slog.Any("error", err))
		return
	}

	ctx = ContextWithTransport(ctx, tp)
	var ints []InboundResponseInterceptor
	for i := range tp.inResInts.All() {
		ints = append(ints, i)
	}
	receiver := ChainInboundResponse(ints, ResponseReceiverFunc(func(context.Context, *InboundResponseEnvelope) error {
		return errtrace.Wrap(ErrUnhandledMessage)
	}))
	if err := receiver.RecvResponse(ctx, in); err != nil && !errors.Is(err, ErrUnhandledMessage) {
		tp.log.LogAttrs(ctx, slog.LevelWarn, "failed to handle inbound response", slog.Any("error", err))
	}
}

// Close closes the underlying connection, unblocking a running [UnreliableTransport.Serve].
func (tp *UnreliableTransport) Close(context.Context) error {
	var err error
	tp.closeOnce.Do(func() {
		close(tp.closed)
		err = tp.conn.Close()
	})
	return errtrace.Wrap(err)
}
