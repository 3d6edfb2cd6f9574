// Package core wires together a [sip.TransportManager] and a [sip.TransactionManager]
// into a single SIP signalling stack: one call opens the configured listeners,
// one call tears them down, and inbound traffic is routed to caller-supplied
// handlers without the caller ever touching a transaction or transport directly.
package core

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"braces.dev/errtrace"

	"github.com/rromrrom/oss-core/internal/errorutil"
	"github.com/rromrrom/oss-core/internal/ratelimit"
	"github.com/rromrrom/oss-core/internal/wsconn"
	"github.com/rromrrom/oss-core/log"
	"github.com/rromrrom/oss-core/sip"
)

// StackOptions are the options for a [Stack].
type StackOptions struct {
	// TransactionManagerOptions configures the stack's [sip.TransactionManager].
	TransactionManagerOptions *sip.TransactionManagerOptions
	// Logger is the logger used for stack-level events.
	// If nil, [log.Default] is used.
	Logger *slog.Logger
}

func (o *StackOptions) log() *slog.Logger {
	if o == nil || o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

func (o *StackOptions) txmOpts() *sip.TransactionManagerOptions {
	if o == nil {
		return nil
	}
	return o.TransactionManagerOptions
}

// Stack is a SIP signalling stack: a [sip.TransportManager] carrying the
// configured UDP/TCP/TLS/WS listeners, fronted by a [sip.TransactionManager]
// that absorbs retransmissions before handing requests to the handlers the
// caller installed with [Stack.SetRequestHandler]/[Stack.SetAckOr2xxHandler].
//
// A Stack is built with [NewStack], configured with the Enable* flags and
// the *Listeners slices, then started with [Stack.TransportInit] (or
// [Stack.TransportInitRange]) followed by [Stack.Run]. It is a single-shot
// object: once [Stack.Stop] has torn it down it cannot be started again.
type Stack struct {
	// EnableUDP/EnableTCP/EnableWS/EnableTLS gate which of the *Listeners
	// slices below [Stack.TransportInit] opens listeners for.
	EnableUDP bool
	EnableTCP bool
	EnableWS  bool
	EnableTLS bool

	// UDPListeners/TCPListeners/WSListeners/TLSListeners hold the local
	// addresses [Stack.TransportInit] binds listeners on. Append to them
	// directly before calling TransportInit.
	UDPListeners []netip.AddrPort
	TCPListeners []netip.AddrPort
	WSListeners  []netip.AddrPort
	TLSListeners []netip.AddrPort

	log *slog.Logger

	tpm *sip.TransportManager
	txm *sip.TransactionManager

	mu        sync.Mutex
	tlsConfig *tls.Config
	limiter   *ratelimit.Limiter
	haveDef   bool

	reqHandler      sip.RequestReceiver
	ackOr2xxHandler sip.RequestReceiver

	running        atomic.Bool
	unbindDispatch func()
	stopLimiter    func()
}

// NewStack creates a new, unstarted [Stack]. Options are optional.
func NewStack(opts *StackOptions) *Stack {
	return &Stack{
		log: opts.log(),
		tpm: &sip.TransportManager{},
		txm: sip.NewTransactionManager(opts.txmOpts()),
	}
}

// SetRequestHandler installs the receiver that non-ACK inbound requests not
// matching an existing server transaction are delivered to. It may be called
// before or after [Stack.Run].
func (s *Stack) SetRequestHandler(h sip.RequestReceiver) {
	s.mu.Lock()
	s.reqHandler = h
	s.mu.Unlock()
}

// SetAckOr2xxHandler installs the receiver for an inbound ACK that does not
// match any tracked server transaction, i.e. the RFC 6026 ACK-for-2xx case
// (the 2xx response already terminated its INVITE server transaction).
func (s *Stack) SetAckOr2xxHandler(h sip.RequestReceiver) {
	s.mu.Lock()
	s.ackOr2xxHandler = h
	s.mu.Unlock()
}

// SetTransportThreshold (re)builds the shared rate limiter applied to every
// listener opened afterwards by [Stack.TransportInit]/[Stack.TransportInitRange].
// Transports capture the limiter at construction time, so this must be called
// before the transports it should protect are created; calling it after
// [Stack.Run] only affects listeners opened from then on.
func (s *Stack) SetTransportThreshold(cfg ratelimit.Config) {
	s.mu.Lock()
	s.limiter = ratelimit.New(cfg)
	s.mu.Unlock()
}

// InitializeTLSContext loads the certificate/key pair used to secure TLS and
// WSS listeners opened by [Stack.TransportInit]/[Stack.TransportInitRange].
func (s *Stack) InitializeTLSContext(certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return errtrace.Wrap(err)
	}
	s.mu.Lock()
	s.tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	s.mu.Unlock()
	return nil
}

// TransportInit opens a listener for every address in UDPListeners/TCPListeners/
// WSListeners/TLSListeners whose Enable* flag is set, and tracks each with the
// stack's [sip.TransportManager]. It is safe to call more than once (e.g. after
// appending to a *Listeners slice): addresses already tracked are skipped.
func (s *Stack) TransportInit() error {
	var errs []error

	if s.EnableUDP {
		for _, addr := range s.UDPListeners {
			if err := s.initUDP(addr); err != nil {
				errs = append(errs, fmt.Errorf("udp %s: %w", addr, err))
			}
		}
	}
	if s.EnableTCP {
		for _, addr := range s.TCPListeners {
			if err := s.initStream("TCP", addr, false); err != nil {
				errs = append(errs, fmt.Errorf("tcp %s: %w", addr, err))
			}
		}
	}
	if s.EnableTLS {
		for _, addr := range s.TLSListeners {
			if err := s.initStream("TLS", addr, true); err != nil {
				errs = append(errs, fmt.Errorf("tls %s: %w", addr, err))
			}
		}
	}
	if s.EnableWS {
		for _, addr := range s.WSListeners {
			if err := s.initWS(addr); err != nil {
				errs = append(errs, fmt.Errorf("ws %s: %w", addr, err))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errtrace.Wrap(errorutil.JoinPrefix("transport init:", errs...))
}

// TransportInitRange probes, for each (bases[i], maxes[i]) pair, the lowest
// free TCP port in [bases[i], maxes[i]] and appends the bound address to
// TLSListeners if TLSListeners is already non-empty, or to TCPListeners
// otherwise, before calling [Stack.TransportInit].
func (s *Stack) TransportInitRange(bases, maxes []int) error {
	if len(bases) != len(maxes) {
		return errtrace.Wrap(sip.NewInvalidArgumentError("bases and maxes must have the same length"))
	}

	hasTLS := len(s.TLSListeners) > 0
	for i, base := range bases {
		addr, err := bindFreePort(base, maxes[i])
		if err != nil {
			return errtrace.Wrap(err)
		}
		if hasTLS {
			s.TLSListeners = append(s.TLSListeners, addr)
		} else {
			s.TCPListeners = append(s.TCPListeners, addr)
		}
	}

	return errtrace.Wrap(s.TransportInit())
}

// bindFreePort scans [base, max] for the first port a TCP listener can bind
// to, closes the probe listener and reports the bound address.
func bindFreePort(base, max int) (netip.AddrPort, error) {
	for port := base; port <= max; port++ {
		ln, err := net.Listen("tcp", net.JoinHostPort("0.0.0.0", strconv.Itoa(port)))
		if err != nil {
			continue
		}
		addr, err := netip.ParseAddrPort(ln.Addr().String())
		_ = ln.Close()
		if err != nil {
			return netip.AddrPort{}, errtrace.Wrap(err)
		}
		return addr, nil
	}
	return netip.AddrPort{}, errtrace.Wrap(fmt.Errorf("no free port in range [%d, %d]", base, max))
}

func (s *Stack) initUDP(addr netip.AddrPort) error {
	conn, err := net.ListenPacket("udp", addr.String())
	if err != nil {
		return errtrace.Wrap(err)
	}

	s.mu.Lock()
	isDef := !s.haveDef
	limiter := s.limiter
	logger := s.log
	s.mu.Unlock()

	tp, err := sip.NewUnreliableTransport("UDP", conn, &sip.UnreliableTransportOptions{
		Logger:      logger,
		RateLimiter: limiter,
	})
	if err != nil {
		_ = conn.Close()
		return errtrace.Wrap(err)
	}

	if err := s.tpm.TrackTransport(tp, isDef); err != nil {
		_ = tp.Close(context.Background())
		return errtrace.Wrap(err)
	}
	if isDef {
		s.mu.Lock()
		s.haveDef = true
		s.mu.Unlock()
	}
	return nil
}

func (s *Stack) initStream(proto sip.TransportProto, addr netip.AddrPort, secured bool) error {
	ln, err := net.Listen("tcp", addr.String())
	if err != nil {
		return errtrace.Wrap(err)
	}

	s.mu.Lock()
	tlsCfg := s.tlsConfig
	limiter := s.limiter
	logger := s.log
	s.mu.Unlock()

	if secured {
		if tlsCfg == nil {
			_ = ln.Close()
			return errtrace.Wrap(ErrNoTLSContext)
		}
		ln = tls.NewListener(ln, tlsCfg)
	}

	tp, err := sip.NewStreamTransport(proto, ln, &sip.StreamTransportOptions{
		Secured:     secured,
		Logger:      logger,
		Dial:        s.streamDialer(proto, secured, tlsCfg),
		RateLimiter: limiter,
	})
	if err != nil {
		_ = ln.Close()
		return errtrace.Wrap(err)
	}

	return errtrace.Wrap(s.trackStream(tp))
}

func (s *Stack) initWS(addr netip.AddrPort) error {
	ln, err := net.Listen("tcp", addr.String())
	if err != nil {
		return errtrace.Wrap(err)
	}

	s.mu.Lock()
	limiter := s.limiter
	logger := s.log
	s.mu.Unlock()

	tp, err := sip.NewStreamTransport("WS", wsconn.NewListener(ln, nil), &sip.StreamTransportOptions{
		Logger:      logger,
		Dial:        s.wsDialer(),
		RateLimiter: limiter,
	})
	if err != nil {
		_ = ln.Close()
		return errtrace.Wrap(err)
	}

	return errtrace.Wrap(s.trackStream(tp))
}

func (s *Stack) trackStream(tp *sip.StreamTransport) error {
	s.mu.Lock()
	isDef := !s.haveDef
	s.mu.Unlock()

	if err := s.tpm.TrackTransport(tp, isDef); err != nil {
		_ = tp.Close(context.Background())
		return errtrace.Wrap(err)
	}
	if isDef {
		s.mu.Lock()
		s.haveDef = true
		s.mu.Unlock()
	}
	return nil
}

func (s *Stack) streamDialer(
	proto sip.TransportProto,
	secured bool,
	tlsCfg *tls.Config,
) func(ctx context.Context, raddr netip.AddrPort) (net.Conn, error) {
	return func(ctx context.Context, raddr netip.AddrPort) (net.Conn, error) {
		if secured {
			if tlsCfg == nil {
				return nil, errtrace.Wrap(ErrNoTLSContext)
			}
			d := tls.Dialer{Config: tlsCfg}
			return errtrace.Wrap2(d.DialContext(ctx, "tcp", raddr.String()))
		}
		var d net.Dialer
		return errtrace.Wrap2(d.DialContext(ctx, "tcp", raddr.String()))
	}
}

func (s *Stack) wsDialer() func(ctx context.Context, raddr netip.AddrPort) (net.Conn, error) {
	dialer := wsconn.NewDialer(nil)
	return func(ctx context.Context, raddr netip.AddrPort) (net.Conn, error) {
		var d net.Dialer
		raw, err := d.DialContext(ctx, "tcp", raddr.String())
		if err != nil {
			return nil, errtrace.Wrap(err)
		}
		u := &url.URL{Scheme: "ws", Host: raddr.String(), Path: "/"}
		conn, err := dialer.Upgrade(raw, u)
		if err != nil {
			_ = raw.Close()
			return nil, errtrace.Wrap(err)
		}
		return conn, nil
	}
}

// dispatchInboundRequest is the stack's terminal [sip.InboundRequestInterceptor],
// installed behind the transaction manager's own interceptor. By the time a
// request reaches here, the transaction manager has already absorbed it into
// a matched server transaction if one exists, so only genuinely new requests
// and ACKs to an already-terminated INVITE server transaction (RFC 6026) make
// it through.
func (s *Stack) dispatchInboundRequest(ctx context.Context, req *sip.InboundRequestEnvelope, next sip.RequestReceiver) error {
	s.mu.Lock()
	reqHandler := s.reqHandler
	ackHandler := s.ackOr2xxHandler
	s.mu.Unlock()

	if req.Method().Equal(sip.RequestMethodAck) {
		if ackHandler != nil {
			return errtrace.Wrap(ackHandler.RecvRequest(ctx, req))
		}
		return errtrace.Wrap(next.RecvRequest(ctx, req))
	}
	if reqHandler != nil {
		return errtrace.Wrap(reqHandler.RecvRequest(ctx, req))
	}
	return errtrace.Wrap(next.RecvRequest(ctx, req))
}

// Run starts serving every tracked transport and the rate limiter's ban
// sweeper, and wires the stack's two-stage inbound request interceptor chain.
// It returns [ErrAlreadyRunning] if the stack is already running. Serving
// happens in a background goroutine; Run itself returns once wiring is done.
func (s *Stack) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errtrace.Wrap(ErrAlreadyRunning)
	}

	// Registration order matters: the transaction manager's interceptor must
	// run outermost so it can absorb a retransmission into its matched server
	// transaction before the stack's own dispatch ever sees the request.
	unbindTxm := s.tpm.UseInboundRequestInterceptor(s.txm.InboundRequestInterceptor())
	unbindOwn := s.tpm.UseInboundRequestInterceptor(sip.InboundRequestInterceptorFunc(s.dispatchInboundRequest))

	s.mu.Lock()
	s.unbindDispatch = func() {
		unbindTxm()
		unbindOwn()
	}
	limiter := s.limiter
	s.mu.Unlock()

	if limiter != nil {
		s.mu.Lock()
		s.stopLimiter = limiter.Run()
		s.mu.Unlock()
	}

	go func() {
		if err := s.tpm.Serve(ctx); err != nil {
			s.log.ErrorContext(ctx, "transport manager stopped serving", "error", err)
		}
	}()

	return nil
}

// Stop tears down the stack: it unbinds the interceptor chain, stops the rate
// limiter's sweeper, closes every tracked transport and terminates every live
// transaction. It returns [ErrNotRunning] if the stack isn't running. A
// stopped stack cannot be started again.
func (s *Stack) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return errtrace.Wrap(ErrNotRunning)
	}

	s.mu.Lock()
	unbind := s.unbindDispatch
	stopLimiter := s.stopLimiter
	s.unbindDispatch = nil
	s.stopLimiter = nil
	s.mu.Unlock()

	if unbind != nil {
		unbind()
	}
	if stopLimiter != nil {
		stopLimiter()
	}

	var errs []error
	if err := s.tpm.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.txm.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return errtrace.Wrap(errorutil.Join(errs...))
}

// resolveClientTransport finds a tracked transport matching req's protocol.
func (s *Stack) resolveClientTransport(req *sip.OutboundRequestEnvelope) (sip.ClientTransport, bool) {
	proto := req.Transport()
	if proto == "" {
		return nil, false
	}
	for tp := range s.tpm.AllTransports() {
		if p, ok := sip.GetTransportProto(tp); ok && p == proto {
			return tp, true
		}
	}
	return nil, false
}

// CreateClientTransaction resolves a tracked transport matching req's
// protocol and starts a client transaction for req on it.
func (s *Stack) CreateClientTransaction(
	ctx context.Context,
	req *sip.OutboundRequestEnvelope,
	opts *sip.ClientTransactionOptions,
) (sip.ClientTransaction, error) {
	tp, ok := s.resolveClientTransport(req)
	if !ok {
		return nil, errtrace.Wrap(sip.ErrNoTransport)
	}
	return errtrace.Wrap2(s.txm.NewClientTransaction(ctx, req, tp, opts))
}

// SendRequest starts a client transaction for req, exactly like
// [Stack.CreateClientTransaction], and binds the given callbacks to it.
// Either callback may be nil.
func (s *Stack) SendRequest(
	ctx context.Context,
	req *sip.OutboundRequestEnvelope,
	opts *sip.ClientTransactionOptions,
	onResponse sip.InboundResponseHandler,
	onStateChanged sip.TransactionStateHandler,
) (sip.ClientTransaction, error) {
	tx, err := s.CreateClientTransaction(ctx, req, opts)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	if onResponse != nil {
		tx.OnResponse(onResponse)
	}
	if onStateChanged != nil {
		tx.OnStateChanged(onStateChanged)
	}
	return tx, nil
}

// SendRequestDirect sends req over the transport manager without creating a
// transaction, bypassing retransmission handling entirely. It is meant for
// the messages RFC 3261/6026 require to go out untransacted: an ACK to a 2xx
// response, and the 2xx response itself when resent from outside its
// transaction.
func (s *Stack) SendRequestDirect(ctx context.Context, req *sip.OutboundRequestEnvelope, opts *sip.SendRequestOptions) error {
	return errtrace.Wrap(s.tpm.SendRequest(ctx, req, opts))
}
