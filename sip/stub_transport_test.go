package sip_test

import (
	"context"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rromrrom/oss-core/sip"
)

// stubTransport is a full [sip.Transport] stub that records counts of sent
// requests/responses instead of writing to the network. Serve blocks until
// Close is called or ctx is done.
type stubTransport struct {
	proto sip.TransportProto
	laddr netip.AddrPort

	reqs atomic.Int64
	ress atomic.Int64

	closeOnce sync.Once
	closed    chan struct{}
}

func newStubTransport(proto sip.TransportProto, port uint16) *stubTransport {
	return &stubTransport{
		proto:  proto,
		laddr:  netip.AddrPortFrom(netip.IPv4Unspecified(), port),
		closed: make(chan struct{}),
	}
}

func (tp *stubTransport) Proto() sip.TransportProto { return tp.proto }

func (tp *stubTransport) Network() string { return "udp" }

func (tp *stubTransport) LocalAddr() netip.AddrPort { return tp.laddr }

func (tp *stubTransport) Reliable() bool { return tp.proto != "UDP" }

func (tp *stubTransport) requestCount() int64 { return tp.reqs.Load() }

func (tp *stubTransport) responseCount() int64 { return tp.ress.Load() }

func (tp *stubTransport) SendRequest(context.Context, *sip.OutboundRequestEnvelope, *sip.SendRequestOptions) error {
	tp.reqs.Add(1)
	return nil
}

func (tp *stubTransport) SendResponse(context.Context, *sip.OutboundResponseEnvelope, *sip.SendResponseOptions) error {
	tp.ress.Add(1)
	return nil
}

func (*stubTransport) UseInboundRequestInterceptor(sip.InboundRequestInterceptor) (unbind func()) {
	return func() {}
}

func (*stubTransport) UseInboundResponseInterceptor(sip.InboundResponseInterceptor) (unbind func()) {
	return func() {}
}

func (*stubTransport) UseOutboundRequestInterceptor(sip.OutboundRequestInterceptor) (unbind func()) {
	return func() {}
}

func (*stubTransport) UseOutboundResponseInterceptor(sip.OutboundResponseInterceptor) (unbind func()) {
	return func() {}
}

func (tp *stubTransport) Serve(ctx context.Context) error {
	select {
	case <-tp.closed:
		return sip.ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (tp *stubTransport) Close(context.Context) error {
	tp.closeOnce.Do(func() {
		close(tp.closed)
	})
	return nil
}

// sendReqCall records a single SendRequest call observed by [stubClientTransport].
type sendReqCall struct {
	req  *sip.OutboundRequestEnvelope
	opts *sip.SendRequestOptions
}

// stubClientTransport is an in-memory [sip.ClientTransport] that records every
// sent request on a channel instead of writing to the network.
type stubClientTransport struct {
	proto    sip.TransportProto
	network  string
	laddr    netip.AddrPort
	reliable bool

	mu   sync.Mutex
	hook func(call sendReqCall, idx int) error
	n    int

	ch chan sendReqCall
}

func newStubClientTransport(
	proto sip.TransportProto,
	network string,
	laddr netip.AddrPort,
	reliable bool,
) *stubClientTransport {
	return &stubClientTransport{
		proto:    proto,
		network:  network,
		laddr:    laddr,
		reliable: reliable,
		ch:       make(chan sendReqCall, 64),
	}
}

func (tp *stubClientTransport) Proto() sip.TransportProto { return tp.proto }

func (tp *stubClientTransport) Network() string { return tp.network }

func (tp *stubClientTransport) LocalAddr() netip.AddrPort { return tp.laddr }

func (tp *stubClientTransport) Reliable() bool { return tp.reliable }

// setSendHook installs fn to be called before every SendRequest with a
// zero-based call index, letting tests fail a specific retransmit.
func (tp *stubClientTransport) setSendHook(fn func(call sendReqCall, idx int) error) {
	tp.mu.Lock()
	tp.hook = fn
	tp.mu.Unlock()
}

func (tp *stubClientTransport) SendRequest(
	_ context.Context,
	req *sip.OutboundRequestEnvelope,
	opts *sip.SendRequestOptions,
) error {
	call := sendReqCall{req: req, opts: opts}

	tp.mu.Lock()
	idx := tp.n
	tp.n++
	hook := tp.hook
	tp.mu.Unlock()

	if hook != nil {
		if err := hook(call, idx); err != nil {
			return err
		}
	}

	tp.ch <- call
	return nil
}

func (tp *stubClientTransport) sendCh() <-chan sendReqCall { return tp.ch }

func (tp *stubClientTransport) waitSend(tb testing.TB, timeout time.Duration) sendReqCall {
	tb.Helper()

	select {
	case call := <-tp.ch:
		return call
	case <-time.After(timeout):
		tb.Fatalf("timed out waiting for a send on stub client transport")
		return sendReqCall{}
	}
}

func (tp *stubClientTransport) drainSends() {
	for {
		select {
		case <-tp.ch:
		default:
			return
		}
	}
}

func (tp *stubClientTransport) ensureNoSend(tb testing.TB, wait time.Duration) {
	tb.Helper()

	select {
	case call := <-tp.ch:
		tb.Fatalf("unexpected send on stub client transport: %s %s", call.req.Method(), call.req.RemoteAddr())
	case <-time.After(wait):
	}
}

// sendResCall records a single SendResponse call observed by [stubServerTransport].
type sendResCall struct {
	res  *sip.OutboundResponseEnvelope
	opts *sip.SendResponseOptions
}

// stubServerTransport is an in-memory [sip.ServerTransport] that records every
// sent response on a channel instead of writing to the network.
type stubServerTransport struct {
	proto    sip.TransportProto
	network  string
	laddr    netip.AddrPort
	reliable bool

	mu   sync.Mutex
	hook func(call sendResCall, idx int) error
	n    int

	ch chan sendResCall
}

func newStubServerTransport(
	proto sip.TransportProto,
	network string,
	laddr netip.AddrPort,
	reliable bool,
) *stubServerTransport {
	return &stubServerTransport{
		proto:    proto,
		network:  network,
		laddr:    laddr,
		reliable: reliable,
		ch:       make(chan sendResCall, 64),
	}
}

// newStubTransportExt is an alias for [newStubServerTransport]: some tests
// exercise the non-invite server transaction through this name.
func newStubTransportExt(
	proto sip.TransportProto,
	network string,
	laddr netip.AddrPort,
	reliable bool,
) *stubServerTransport {
	return newStubServerTransport(proto, network, laddr, reliable)
}

func (tp *stubServerTransport) Proto() sip.TransportProto { return tp.proto }

func (tp *stubServerTransport) Network() string { return tp.network }

func (tp *stubServerTransport) LocalAddr() netip.AddrPort { return tp.laddr }

func (tp *stubServerTransport) Reliable() bool { return tp.reliable }

// setSendHook installs fn to be called before every SendResponse with a
// zero-based call index, letting tests fail a specific retransmit.
func (tp *stubServerTransport) setSendHook(fn func(call sendResCall, idx int) error) {
	tp.mu.Lock()
	tp.hook = fn
	tp.mu.Unlock()
}

// setSendResHook is an alias for [stubServerTransport.setSendHook].
func (tp *stubServerTransport) setSendResHook(fn func(call sendResCall, idx int) error) {
	tp.setSendHook(fn)
}

func (tp *stubServerTransport) SendResponse(
	_ context.Context,
	res *sip.OutboundResponseEnvelope,
	opts *sip.SendResponseOptions,
) error {
	call := sendResCall{res: res, opts: opts}

	tp.mu.Lock()
	idx := tp.n
	tp.n++
	hook := tp.hook
	tp.mu.Unlock()

	if hook != nil {
		if err := hook(call, idx); err != nil {
			return err
		}
	}

	tp.ch <- call
	return nil
}

func (tp *stubServerTransport) sendCh() <-chan sendResCall { return tp.ch }

func (tp *stubServerTransport) waitSend(tb testing.TB, timeout time.Duration) sendResCall {
	tb.Helper()

	select {
	case call := <-tp.ch:
		return call
	case <-time.After(timeout):
		tb.Fatalf("timed out waiting for a send on stub server transport")
		return sendResCall{}
	}
}

func (tp *stubServerTransport) drainSends() {
	for {
		select {
		case <-tp.ch:
		default:
			return
		}
	}
}

func (tp *stubServerTransport) ensureNoSend(tb testing.TB, wait time.Duration) {
	tb.Helper()

	select {
	case call := <-tp.ch:
		tb.Fatalf("unexpected send on stub server transport: %v", call.res.Status())
	case <-time.After(wait):
	}
}

// waitSendRes is an alias for [stubServerTransport.waitSend].
func (tp *stubServerTransport) waitSendRes(tb testing.TB, timeout time.Duration) sendResCall {
	tb.Helper()
	return tp.waitSend(tb, timeout)
}

// drainSendRess is an alias for [stubServerTransport.drainSends].
func (tp *stubServerTransport) drainSendRess() {
	tp.drainSends()
}

// ensureNoSendRes is an alias for [stubServerTransport.ensureNoSend].
func (tp *stubServerTransport) ensureNoSendRes(tb testing.TB, wait time.Duration) {
	tb.Helper()
	tp.ensureNoSend(tb, wait)
}
