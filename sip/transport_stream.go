package sip

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"

	"braces.dev/errtrace"

	"github.com/rromrrom/oss-core/internal/ratelimit"
	"github.com/rromrrom/oss-core/internal/types"
	"github.com/rromrrom/oss-core/log"
)

// StreamTransportOptions contains options for [StreamTransport].
type StreamTransportOptions struct {
	// DefaultPort is a default well-known port of the transport.
	// Default is 5060.
	DefaultPort uint16
	// Secured indicates whether the transport is secured (TLS/WSS).
	// Default is false.
	Secured bool
	// Parser is a parser used to parse inbound SIP messages.
	// If nil, [DefaultParser] is used.
	Parser Parser
	// Logger is a logger used to log transport events, warnings and errors.
	// If nil, [log.Default] is used.
	Logger *slog.Logger
	// Dial opens an outbound connection to raddr. Required for [StreamTransport.SendRequest]/
	// [StreamTransport.SendResponse] to reach a peer with no existing inbound connection.
	Dial func(ctx context.Context, raddr netip.AddrPort) (net.Conn, error)
	// RateLimiter, if set, is consulted for every accepted connection before it is served.
	// Sources it rejects have their connection closed immediately.
	RateLimiter *ratelimit.Limiter
}

func (o *StreamTransportOptions) defPort() uint16 {
	if o == nil || o.DefaultPort == 0 {
		return 5060
	}
	return o.DefaultPort
}

func (o *StreamTransportOptions) secured() bool {
	if o == nil {
		return false
	}
	return o.Secured
}

func (o *StreamTransportOptions) parser() Parser {
	if o == nil || o.Parser == nil {
		return DefaultParser()
	}
	return o.Parser
}

func (o *StreamTransportOptions) log() *slog.Logger {
	if o == nil || o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

func (o *StreamTransportOptions) rateLimiter() *ratelimit.Limiter {
	if o == nil {
		return nil
	}
	return o.RateLimiter
}

func (o *StreamTransportOptions) dial(ctx context.Context, raddr netip.AddrPort) (net.Conn, error) {
	if o == nil || o.Dial == nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError("no dialer configured for the transport"))
	}
	return o.Dial(ctx, raddr)
}

// StreamTransport implements [Transport] over a connection-oriented network
// protocol, such as TCP, TLS or WS/WSS. One StreamTransport owns one listener
// and pools the connections it accepts and dials, keyed by remote address.
type StreamTransport struct {
	proto    TransportProto
	ls       net.Listener
	laddr    netip.AddrPort
	meta     TransportMetadata
	parser   Parser
	log      *slog.Logger
	streamed bool
	opts     *StreamTransportOptions
	limiter  *ratelimit.Limiter

	inReqInts  types.CallbackManager[InboundRequestInterceptor]
	inResInts  types.CallbackManager[InboundResponseInterceptor]
	outReqInts types.CallbackManager[OutboundRequestInterceptor]
	outResInts types.CallbackManager[OutboundResponseInterceptor]

	connsMu sync.Mutex
	conns   map[netip.AddrPort]*streamConn

	closeOnce sync.Once
	closed    chan struct{}
}

// NewStreamTransport creates a new [StreamTransport] serving connections accepted from ls.
// Transport protocol and listener are required arguments. Options are optional, default
// options are used if nil.
func NewStreamTransport(proto TransportProto, ls net.Listener, opts *StreamTransportOptions) (*StreamTransport, error) {
	if !proto.IsValid() {
		return nil, errtrace.Wrap(NewInvalidArgumentError("invalid protocol"))
	}
	if ls == nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError("invalid listener"))
	}

	laddr, err := netip.ParseAddrPort(ls.Addr().String())
	if err != nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError("invalid listener local address"))
	}

	tp := &StreamTransport{
		proto: proto,
		ls:    ls,
		laddr: laddr,
		meta: TransportMetadata{
			Proto:       proto,
			Network:     ls.Addr().Network(),
			Reliable:    true,
			Secured:     opts.secured(),
			Streamed:    true,
			DefaultPort: opts.defPort(),
		},
		parser:   opts.parser(),
		log:      opts.log(),
		streamed: true,
		opts:     opts,
		limiter:  opts.rateLimiter(),
		conns:    make(map[netip.AddrPort]*streamConn),
		closed:   make(chan struct{}),
	}
	tp.log = tp.log.With("transport", tp)
	return tp, nil
}

func (tp *StreamTransport) Proto() TransportProto { return tp.proto }

func (tp *StreamTransport) Network() string { return tp.meta.Network }

func (tp *StreamTransport) LocalAddr() netip.AddrPort { return tp.laddr }

func (*StreamTransport) Reliable() bool { return true }

func (tp *StreamTransport) Secured() bool { return tp.meta.Secured }

func (tp *StreamTransport) Streamed() bool { return tp.streamed }

func (tp *StreamTransport) DefaultPort() uint16 { return tp.meta.DefaultPort }

func (tp *StreamTransport) LogValue() slog.Value {
	if tp == nil {
		return zeroSlogValue
	}
	return slog.GroupValue(
		slog.Any("proto", tp.proto),
		slog.Any("local_addr", tp.laddr),
	)
}

func (tp *StreamTransport) UseInboundRequestInterceptor(
	interceptor InboundRequestInterceptor,
) (unbind func()) {
	if interceptor == nil {
		return func() {}
	}
	return tp.inReqInts.Add(interceptor)
}

func (tp *StreamTransport) UseInboundResponseInterceptor(
	interceptor InboundResponseInterceptor,
) (unbind func()) {
	if interceptor == nil {
		return func() {}
	}
	return tp.inResInts.Add(interceptor)
}

func (tp *StreamTransport) UseOutboundRequestInterceptor(
	interceptor OutboundRequestInterceptor,
) (unbind func()) {
	if interceptor == nil {
		return func() {}
	}
	return tp.outReqInts.Add(interceptor)
}

func (tp *StreamTransport) UseOutboundResponseInterceptor(
	interceptor OutboundResponseInterceptor,
) (unbind func()) {
	if interceptor == nil {
		return func() {}
	}
	return tp.outResInts.Add(interceptor)
}

// UseInterceptor registers every non-nil sub-interceptor of interceptor,
// returning a single unbind closure for all of them.
func (tp *StreamTransport) UseInterceptor(interceptor MessageInterceptor) (unbind func()) {
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

// streamConn wraps a pooled connection with the remote address it is keyed by.
type streamConn struct {
	net.Conn
	tp    *StreamTransport
	raddr netip.AddrPort
}

func (tp *StreamTransport) getOrDial(ctx context.Context, raddr netip.AddrPort) (*streamConn, error) {
	tp.connsMu.Lock()
	sc, ok := tp.conns[raddr]
	tp.connsMu.Unlock()
	if ok {
		return sc, nil
	}

	c, err := tp.opts.dial(ctx, raddr)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	sc = tp.trackConn(c, raddr)
	go sc.serve() //nolint:errcheck
	return sc, nil
}

func (tp *StreamTransport) trackConn(c net.Conn, raddr netip.AddrPort) *streamConn {
	sc := &streamConn{Conn: c, tp: tp, raddr: raddr}
	tp.connsMu.Lock()
	tp.conns[raddr] = sc
	tp.connsMu.Unlock()
	return sc
}

func (tp *StreamTransport) untrackConn(sc *streamConn) {
	tp.connsMu.Lock()
	if cur, ok := tp.conns[sc.raddr]; ok && cur == sc {
		delete(tp.conns, sc.raddr)
	}
	tp.connsMu.Unlock()
}

// serve reads messages from the connection until it is closed or a fatal
// parse error occurs, dispatching each parsed message to the bound
// interceptor chains. It always ends by untracking and closing the connection.
func (sc *streamConn) serve() error {
	defer sc.tp.untrackConn(sc)
	defer sc.Close() //nolint:errcheck

	ctx := context.Background()
	r := &io.LimitedReader{R: sc.Conn, N: int64(MaxMsgSize)}
	for msg, err := range sc.tp.parser.ParseStream(r).Messages() {
		r.N = int64(MaxMsgSize)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			sc.tp.log.LogAttrs(ctx, slog.LevelWarn, "failed to parse inbound stream message",
				slog.Any("peer", sc.raddr), slog.Any("error", err))
			continue
		}

		switch m := msg.(type) {
		case *Request:
			sc.tp.dispatchRequest(ctx, m, sc.raddr)
		case *Response:
			sc.tp.dispatchResponse(ctx, m, sc.raddr)
		default:
			sc.tp.log.LogAttrs(ctx, slog.LevelWarn, "parsed stream message is neither a request nor a response",
				slog.Any("peer", sc.raddr))
		}
	}
	return nil
}

func (tp *StreamTransport) dispatchRequest(ctx context.Context, req *Request, raddr netip.AddrPort) {
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

func (tp *StreamTransport) dispatchResponse(ctx context.Context, res *Response, raddr netip.AddrPort) {
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

func (tp *StreamTransport) SendRequest(
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

func (tp *StreamTransport) writeRequest(
	ctx context.Context,
	req *OutboundRequestEnvelope,
	opts *SendRequestOptions,
) error {
	raddr := req.RemoteAddr()
	if !raddr.IsValid() {
		return errtrace.Wrap(NewInvalidArgumentError("invalid remote address"))
	}

	sc, err := tp.getOrDial(ctx, raddr)
	if err != nil {
		return errtrace.Wrap(err)
	}

	buf := new(bytes.Buffer)
	if _, err := req.RenderTo(buf, opts.rendOpts()); err != nil {
		return errtrace.Wrap(err)
	}
	if err := tp.writeConn(ctx, sc, buf); err != nil {
		return errtrace.Wrap(err)
	}
	req.SetLocalAddr(tp.laddr)
	return nil
}

func (tp *StreamTransport) SendResponse(
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

func (tp *StreamTransport) writeResponse(
	ctx context.Context,
	res *OutboundResponseEnvelope,
	opts *SendResponseOptions,
) error {
	raddr := res.RemoteAddr()
	if !raddr.IsValid() {
		return errtrace.Wrap(NewInvalidArgumentError("invalid remote address"))
	}

	sc, err := tp.getOrDial(ctx, raddr)
	if err != nil {
		return errtrace.Wrap(err)
	}

	buf := new(bytes.Buffer)
	if _, err := res.RenderTo(buf, opts.rendOpts()); err != nil {
		return errtrace.Wrap(err)
	}
	if err := tp.writeConn(ctx, sc, buf); err != nil {
		return errtrace.Wrap(err)
	}
	res.SetLocalAddr(tp.laddr)
	return nil
}

func (tp *StreamTransport) writeConn(ctx context.Context, sc *streamConn, buf *bytes.Buffer) error {
	if d, ok := ctx.Deadline(); ok {
		if err := sc.SetWriteDeadline(d); err != nil {
			return errtrace.Wrap(err)
		}
		defer sc.SetWriteDeadline(zeroTime) //nolint:errcheck
	}
	_, err := sc.Write(buf.Bytes())
	return errtrace.Wrap(err)
}

// Serve accepts connections from the underlying listener until ctx is done or
// the transport is closed, handing each accepted connection off to its own
// read loop.
func (tp *StreamTransport) Serve(ctx context.Context) error {
	tp.log.LogAttrs(ctx, slog.LevelDebug, "begin serving the transport")
	defer tp.log.LogAttrs(ctx, slog.LevelDebug, "serving the transport finished")

	go func() {
		<-ctx.Done()
		tp.Close(context.WithoutCancel(ctx)) //nolint:errcheck
	}()

	for {
		c, err := tp.ls.Accept()
		if err != nil {
			select {
			case <-tp.closed:
				return errtrace.Wrap(ErrTransportClosed)
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return errtrace.Wrap(ErrTransportClosed)
			}
			tp.log.LogAttrs(ctx, slog.LevelWarn, "failed to accept connection", slog.Any("error", err))
			continue
		}

		raddr, err := netip.ParseAddrPort(c.RemoteAddr().String())
		if err != nil {
			tp.log.LogAttrs(ctx, slog.LevelWarn, "failed to parse peer address", slog.Any("error", err))
			c.Close() //nolint:errcheck
			continue
		}

		if tp.limiter != nil && !tp.limiter.Allow(raddr.Addr()) {
			tp.log.LogAttrs(ctx, slog.LevelDebug, "rejecting inbound connection, source is rate-limited or banned",
				slog.Any("peer", raddr))
			c.Close() //nolint:errcheck
			continue
		}

		sc := tp.trackConn(c, raddr)
		go sc.serve() //nolint:errcheck
	}
}

// Close closes the listener and every tracked connection, unblocking a running [StreamTransport.Serve].
func (tp *StreamTransport) Close(context.Context) error {
	var err error
	tp.closeOnce.Do(func() {
		close(tp.closed)
		err = tp.ls.Close()

		tp.connsMu.Lock()
		conns := make([]*streamConn, 0, len(tp.conns))
		for _, sc := range tp.conns {
			conns = append(conns, sc)
		}
		tp.connsMu.Unlock()
		for _, sc := range conns {
			sc.Close() //nolint:errcheck
		}
	})
	return errtrace.Wrap(err)
}
