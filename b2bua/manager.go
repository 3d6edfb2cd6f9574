// Package b2bua implements a back-to-back user agent transaction manager:
// it terminates inbound SIP requests on a server transaction and originates
// a paired client transaction toward a routed target, relaying responses
// back through a configurable multi-step pipeline.
package b2bua

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"braces.dev/errtrace"

	"github.com/rromrrom/oss-core/internal/syncutil"
	"github.com/rromrrom/oss-core/internal/workerpool"
	"github.com/rromrrom/oss-core/log"
	"github.com/rromrrom/oss-core/sip"
	"github.com/rromrrom/oss-core/sip/uri"
)

// DialogHint carries the dialog-identifying headers of a pairing, useful to
// handlers that need to correlate mid-dialog requests without re-parsing
// the original request.
type DialogHint struct {
	CallID  string
	FromTag string
	ToTag   string
}

// Pairing links a server transaction to the client transaction the manager
// created to forward it.
type Pairing struct {
	ServerTx   sip.ServerTransaction
	ClientTx   sip.ClientTransaction
	Handler    Handler
	DialogHint DialogHint
}

// ManagerOptions configures a [Manager].
type ManagerOptions struct {
	// TransactionManager creates and tracks the server/client transactions
	// the manager pairs. Required.
	TransactionManager *sip.TransactionManager
	// TransportManager resolves transports for inbound requests and
	// outbound forwarded requests. Required.
	TransportManager *sip.TransportManager
	// WorkerPool runs the ingress/egress pipelines off the transport I/O
	// goroutine. If nil, a pool sized with [workerpool.DefaultMinWorkers]/
	// [workerpool.DefaultMaxWorkers] is created and owned by the manager.
	WorkerPool *workerpool.Pool
	// Logger defaults to [log.Default] if nil.
	Logger *slog.Logger
}

// Manager is a SIP B2BUA transaction manager: the `handlers`/`domainRouters`/
// `userAgentHandlers` registries plus the nine-step ingress pipeline and the
// mirrored egress pipeline.
type Manager struct {
	txm *sip.TransactionManager
	tpm *sip.TransportManager
	wp  *workerpool.Pool
	log *slog.Logger
	ownWP bool

	mu                sync.RWMutex
	handlers          map[MessageType]Handler
	domainRouters     map[string]Handler
	defaultHandler    Handler
	userAgentHandlers []UserAgentHandler

	pendingSubscriptions *syncutil.ShardMap[string, struct{}]
	pairings             *syncutil.ShardMap[sip.ServerTransactionKey, *Pairing]

	hooksMu sync.RWMutex
	hooks   hooks

	closed atomic.Bool
}

// NewManager creates a [Manager] ready to be wired as the terminal
// [sip.RequestReceiver] behind a [sip.TransactionManager]'s
// [sip.TransactionManager.InboundRequestInterceptor].
func NewManager(opts *ManagerOptions) *Manager {
	m := &Manager{
		txm:                  opts.TransactionManager,
		tpm:                  opts.TransportManager,
		wp:                   opts.WorkerPool,
		log:                  opts.Logger,
		handlers:             make(map[MessageType]Handler),
		domainRouters:        make(map[string]Handler),
		pendingSubscriptions: syncutil.NewShardMap[string, struct{}](),
		pairings:             syncutil.NewShardMap[sip.ServerTransactionKey, *Pairing](),
	}
	if m.log == nil {
		m.log = log.Default()
	}
	if m.wp == nil {
		m.wp = workerpool.New(workerpool.Options{})
		m.ownWP = true
	}
	return m
}

// Close stops accepting new requests and, if the manager owns its worker
// pool, drains it.
func (m *Manager) Close() {
	m.closed.Store(true)
	if m.ownWP {
		m.wp.Close()
	}
}

// RegisterHandler registers h for every [sip.RequestMethod] it reports via
// [Handler.SupportedMethods]. It returns [ErrHandlerExists] wrapped with the
// conflicting [MessageType] if a handler is already registered for one of
// them, leaving the prior registrations for other methods in place.
func (m *Manager) RegisterHandler(h Handler) error {
	methods := h.SupportedMethods()
	if len(methods) == 0 {
		return errtrace.Wrap(newWrapperErr(ErrNoRoute, "handler advertises no supported methods"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, meth := range methods {
		mt := MessageTypeOf(meth)
		if _, ok := m.handlers[mt]; ok {
			return errtrace.Wrap(newWrapperErr(ErrHandlerExists, string(mt)))
		}
	}
	for _, meth := range methods {
		m.handlers[MessageTypeOf(meth)] = h
	}
	return nil
}

// RegisterDefaultHandler sets the catch-all handler used when no registered
// handler or domain router claims a request.
func (m *Manager) RegisterDefaultHandler(h Handler) {
	m.mu.Lock()
	m.defaultHandler = h
	m.mu.Unlock()
}

// RegisterDomainRouter registers h to handle every request whose
// request-URI host matches domain, ahead of method-based handler lookup.
func (m *Manager) RegisterDomainRouter(domain string, h Handler) error {
	if domain == "" {
		return errtrace.Wrap(sip.NewInvalidArgumentError("empty domain"))
	}
	m.mu.Lock()
	m.domainRouters[domain] = h
	m.mu.Unlock()
	return nil
}

// AddUserAgentHandler appends h to the plugin hijack chain run ahead of the
// handler registry for every inbound request.
func (m *Manager) AddUserAgentHandler(h UserAgentHandler) {
	m.mu.Lock()
	m.userAgentHandlers = append(m.userAgentHandlers, h)
	m.mu.Unlock()
}

// AddPendingSubscription marks callID as belonging to a subscription the
// manager is tracking, so NOTIFYs for it can be recognized as mid-dialog.
func (m *Manager) AddPendingSubscription(callID string) {
	m.pendingSubscriptions.Set(callID, struct{}{})
}

// RemovePendingSubscription stops tracking callID.
func (m *Manager) RemovePendingSubscription(callID string) {
	m.pendingSubscriptions.Del(callID)
}

// IsSubscriptionPending reports whether callID is currently tracked.
func (m *Manager) IsSubscriptionPending(callID string) bool {
	return m.pendingSubscriptions.Has(callID)
}

// SetExternalDispatch replaces the manager's own ingress pipeline entirely:
// every newly created server transaction is handed to fn instead of
// running through [Manager.handleServerTransaction].
func (m *Manager) SetExternalDispatch(fn ExternalDispatchFunc) {
	m.hooksMu.Lock()
	m.hooks.externalDispatch = fn
	m.hooksMu.Unlock()
}

// Hook setters. Each corresponds to one named extension point of the
// pipeline; passing nil removes the hook.
func (m *Manager) SetTransactionCreatedHook(fn TransactionCreatedHook) {
	m.hooksMu.Lock()
	m.hooks.onTransactionCreated = fn
	m.hooksMu.Unlock()
}

func (m *Manager) SetAuthenticateHook(fn AuthenticateHook) {
	m.hooksMu.Lock()
	m.hooks.onAuthenticate = fn
	m.hooksMu.Unlock()
}

func (m *Manager) SetGenerateLocalResponseHook(fn GenerateLocalResponseHook) {
	m.hooksMu.Lock()
	m.hooks.onGenerateLocalResponse = fn
	m.hooksMu.Unlock()
}

func (m *Manager) SetInvokeLocalHandlerHook(fn InvokeLocalHandlerHook) {
	m.hooksMu.Lock()
	m.hooks.onInvokeLocalHandler = fn
	m.hooksMu.Unlock()
}

func (m *Manager) SetProcessRequestBodyHook(fn ProcessRequestBodyHook) {
	m.hooksMu.Lock()
	m.hooks.onProcessRequestBody = fn
	m.hooksMu.Unlock()
}

func (m *Manager) SetProcessOutboundHook(fn ProcessOutboundHook) {
	m.hooksMu.Lock()
	m.hooks.onProcessOutbound = fn
	m.hooksMu.Unlock()
}

func (m *Manager) SetPostRouteHook(fn PostRouteHook) {
	m.hooksMu.Lock()
	m.hooks.postRoute = fn
	m.hooksMu.Unlock()
}

func (m *Manager) SetProcessClientResponseHook(fn ProcessClientResponseHook) {
	m.hooksMu.Lock()
	m.hooks.onProcessClientResponse = fn
	m.hooksMu.Unlock()
}

func (m *Manager) SetProcessResponseBodyHook(fn ProcessResponseBodyHook) {
	m.hooksMu.Lock()
	m.hooks.onProcessResponseBody = fn
	m.hooksMu.Unlock()
}

func (m *Manager) SetProcessResponseInboundHook(fn ProcessResponseInboundHook) {
	m.hooksMu.Lock()
	m.hooks.onProcessResponseInbound = fn
	m.hooksMu.Unlock()
}

func (m *Manager) SetProcessResponseOutboundHook(fn ProcessResponseOutboundHook) {
	m.hooksMu.Lock()
	m.hooks.onProcessResponseOutbnd = fn
	m.hooksMu.Unlock()
}

func (m *Manager) SetTransactionErrorHook(fn TransactionErrorHook) {
	m.hooksMu.Lock()
	m.hooks.onTransactionError = fn
	m.hooksMu.Unlock()
}

func (m *Manager) SetMidDialogHook(fn MidDialogHook) {
	m.hooksMu.Lock()
	m.hooks.onMidDialog = fn
	m.hooksMu.Unlock()
}

func (m *Manager) SetRetargetHook(fn RetargetHook) {
	m.hooksMu.Lock()
	m.hooks.onRetarget = fn
	m.hooksMu.Unlock()
}

func (m *Manager) snapshotHooks() hooks {
	m.hooksMu.RLock()
	defer m.hooksMu.RUnlock()
	return m.hooks
}

// RecvRequest is the terminal [sip.RequestReceiver] of the inbound request
// chain: it only ever sees requests the transaction manager's own
// interceptor could not match to an existing transaction, i.e. genuinely
// new requests. It creates the server transaction and hands the rest of the
// pipeline to the worker pool so the transport read loop is never blocked.
func (m *Manager) RecvRequest(ctx context.Context, req *sip.InboundRequestEnvelope) error {
	if m.closed.Load() {
		return errtrace.Wrap(ErrManagerClosed)
	}

	tp, ok := m.tpm.GetTransport(req.Transport(), req.LocalAddr())
	if !ok {
		return errtrace.Wrap(sip.ErrNoTransport)
	}

	tx, err := m.txm.NewServerTransaction(ctx, req, tp, &sip.ServerTransactionOptions{Logger: m.log})
	if err != nil {
		return errtrace.Wrap(err)
	}

	tx.OnStateChanged(func(ctx context.Context, _, to sip.TransactionState) {
		if to == sip.TransactionStateTerminated {
			m.pairings.Del(tx.Key())
		}
	})

	if err := m.wp.Submit(func(ctx context.Context) {
		m.handleServerTransaction(ctx, tx)
	}); err != nil {
		tx.Terminate(ctx) //nolint:errcheck
		return errtrace.Wrap(err)
	}
	return nil
}

// handleServerTransaction runs the nine-step ingress pipeline for a newly
// created server transaction.
func (m *Manager) handleServerTransaction(ctx context.Context, tx sip.ServerTransaction) {
	req := tx.Request()
	hks := m.snapshotHooks()

	// 1. on_transaction_created.
	if hks.onTransactionCreated != nil {
		hks.onTransactionCreated(ctx, req)
	}

	if hks.externalDispatch != nil {
		hks.externalDispatch(ctx, m, tx)
		return
	}

	// 2. plugin hijack.
	for _, uah := range m.snapshotUserAgentHandlers() {
		res, err := uah.HandleRequest(ctx, req)
		if err != nil {
			m.failTransaction(ctx, tx, nil, err, hks)
			return
		}
		if res != nil {
			m.sendServerResponse(ctx, tx, res)
			return
		}
	}

	// 3. on_authenticate_transaction.
	if hks.onAuthenticate != nil {
		res, err := hks.onAuthenticate(ctx, req)
		if err != nil {
			m.failTransaction(ctx, tx, nil, err, hks)
			return
		}
		if res != nil {
			m.sendServerResponse(ctx, tx, res)
			return
		}
	}

	// 4. on_route_transaction.
	h := m.lookupHandler(req)
	if h == nil {
		m.respondStatus(ctx, tx, sip.ResponseStatusNotFound, "No Route")
		return
	}

	route, err := h.OnRequest(ctx, req)
	if err != nil {
		m.failTransaction(ctx, tx, h, err, hks)
		return
	}
	if route == nil {
		route = &RouteResult{}
	}

	if hks.onRetarget != nil {
		hks.onRetarget(ctx, req, route)
	}

	// 5. generate-local-response.
	if route.LocalResponse == nil && hks.onGenerateLocalResponse != nil {
		res, err := hks.onGenerateLocalResponse(ctx, req, route)
		if err != nil {
			m.failTransaction(ctx, tx, h, err, hks)
			return
		}
		route.LocalResponse = res
	}

	// 6. invoke-local-handler.
	if route.LocalResponse == nil && hks.onInvokeLocalHandler != nil {
		res, err := hks.onInvokeLocalHandler(ctx, req, route)
		if err != nil {
			m.failTransaction(ctx, tx, h, err, hks)
			return
		}
		route.LocalResponse = res
	}

	if route.LocalResponse != nil {
		m.sendServerResponse(ctx, tx, route.LocalResponse)
		if hks.postRoute != nil {
			hks.postRoute(ctx, req, route)
		}
		return
	}

	outReq, err := m.buildOutboundRequest(req, route)
	if err != nil {
		m.failTransaction(ctx, tx, h, err, hks)
		return
	}

	// 7. on_process_request_body, on_process_outbound.
	if hks.onProcessRequestBody != nil {
		if err := hks.onProcessRequestBody(ctx, outReq); err != nil {
			m.failTransaction(ctx, tx, h, err, hks)
			return
		}
	}
	if hks.onProcessOutbound != nil {
		if err := hks.onProcessOutbound(ctx, outReq); err != nil {
			m.failTransaction(ctx, tx, h, err, hks)
			return
		}
	}

	// 8. post-route callback.
	if hks.postRoute != nil {
		hks.postRoute(ctx, req, route)
	}

	// 9. create paired client transaction; forward.
	clnTp, ok := m.resolveClientTransport(outReq, route)
	if !ok {
		m.respondStatus(ctx, tx, sip.ResponseStatusServerInternalError, "No Target")
		return
	}

	clnTx, err := m.txm.NewClientTransaction(ctx, outReq, clnTp, &sip.ClientTransactionOptions{Logger: m.log})
	if err != nil {
		m.failTransaction(ctx, tx, h, err, hks)
		return
	}

	pairing := &Pairing{
		ServerTx:   tx,
		ClientTx:   clnTx,
		Handler:    h,
		DialogHint: dialogHintOf(req.Headers()),
	}
	m.pairings.Set(tx.Key(), pairing)
	clnTx.OnResponse(func(ctx context.Context, res *sip.InboundResponseEnvelope) {
		m.handleClientResponse(ctx, pairing, res)
	})
}

func (m *Manager) snapshotUserAgentHandlers() []UserAgentHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]UserAgentHandler(nil), m.userAgentHandlers...)
}

// lookupHandler resolves the handler for req: domain router by request-URI
// host first, then the method-based registry, falling back to the default
// handler.
func (m *Manager) lookupHandler(req *sip.InboundRequestEnvelope) Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if host := requestHost(req.URI()); host != "" {
		if h, ok := m.domainRouters[host]; ok {
			return h
		}
	}
	if h, ok := m.handlers[MessageTypeOf(req.Method())]; ok {
		return h
	}
	return m.defaultHandler
}

func requestHost(u sip.URI) string {
	switch v := u.(type) {
	case *uri.SIP:
		return v.Addr.Host()
	case *uri.Tel:
		return ""
	default:
		return ""
	}
}

// buildOutboundRequest clones req's message into a new outbound envelope,
// applying route's target/transport overrides.
func (m *Manager) buildOutboundRequest(req *sip.InboundRequestEnvelope, route *RouteResult) (*sip.OutboundRequestEnvelope, error) {
	cloned, ok := req.Message().Clone().(*sip.Request)
	if !ok {
		return nil, errtrace.Wrap(sip.NewInvalidMessageError("request clone"))
	}
	if route.Target != nil {
		cloned.URI = route.Target
	}

	outReq, err := sip.NewOutboundRequestEnvelope(cloned)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	if route.Transport != "" {
		outReq.SetTransport(route.Transport)
	} else {
		outReq.SetTransport(req.Transport())
	}
	return outReq, nil
}

// resolveClientTransport picks the transport the forwarded request is sent
// over: the transport resolved from outReq's own protocol/local address if
// set, falling back to any tracked transport the transport manager knows
// about for that protocol.
func (m *Manager) resolveClientTransport(outReq *sip.OutboundRequestEnvelope, route *RouteResult) (sip.ClientTransport, bool) {
	proto := outReq.Transport()
	if proto == "" {
		return nil, false
	}
	for tp := range m.tpm.AllTransports() {
		if p, ok := sip.GetTransportProto(tp); ok && p == proto {
			return tp, true
		}
	}
	return nil, false
}

func (m *Manager) sendServerResponse(ctx context.Context, tx sip.ServerTransaction, res *sip.OutboundResponseEnvelope) {
	if err := tx.SendResponse(ctx, res, nil); err != nil {
		m.log.LogAttrs(ctx, slog.LevelWarn, "failed to send response",
			slog.Any("transaction", tx), slog.Any("error", err))
	}
}

func (m *Manager) respondStatus(ctx context.Context, tx sip.ServerTransaction, sts sip.ResponseStatus, reason string) {
	res, err := tx.Request().NewResponse(sts, &sip.ResponseOptions{Reason: sip.ResponseReason(reason)})
	if err != nil {
		m.log.LogAttrs(ctx, slog.LevelWarn, "failed to build response",
			slog.Any("transaction", tx), slog.Any("error", err))
		return
	}
	m.sendServerResponse(ctx, tx, res)
}

func (m *Manager) failTransaction(ctx context.Context, tx sip.ServerTransaction, h Handler, err error, hks hooks) {
	if h != nil {
		h.OnError(ctx, err)
	}
	if hks.onTransactionError != nil {
		hks.onTransactionError(ctx, tx, err)
	}

	sts := sip.ResponseStatusServerInternalError
	var se statusError
	if errors.As(err, &se) {
		sts = se.Status()
	}
	m.respondStatus(ctx, tx, sts, "")
}

// handleClientResponse runs the egress pipeline for a response received on
// pairing's client transaction, relaying it back through pairing's server
// transaction.
func (m *Manager) handleClientResponse(ctx context.Context, pairing *Pairing, res *sip.InboundResponseEnvelope) {
	hks := m.snapshotHooks()

	// on_process_client_response.
	if hks.onProcessClientResponse != nil {
		if err := hks.onProcessClientResponse(ctx, res); err != nil {
			m.logEgressErr(ctx, pairing, err)
			return
		}
	}

	// on_process_response_body (restored from original_source).
	if hks.onProcessResponseBody != nil {
		if err := hks.onProcessResponseBody(ctx, res); err != nil {
			m.logEgressErr(ctx, pairing, err)
			return
		}
	}

	// on_process_response_inbound.
	if hks.onProcessResponseInbound != nil {
		if err := hks.onProcessResponseInbound(ctx, res); err != nil {
			m.logEgressErr(ctx, pairing, err)
			return
		}
	}

	if pairing.Handler != nil {
		if err := pairing.Handler.OnResponse(ctx, res); err != nil {
			m.logEgressErr(ctx, pairing, err)
			return
		}
	}

	outRes, err := pairing.ServerTx.Request().NewResponse(res.Status(), &sip.ResponseOptions{
		Reason: sip.ResponseReason(res.Message().Reason),
		Body:   res.Body(),
	})
	if err != nil {
		m.logEgressErr(ctx, pairing, err)
		return
	}
	outRes.Headers().CopyFrom(res.Headers(), "Contact")

	// on_process_response_outbound, then transport send.
	if hks.onProcessResponseOutbnd != nil {
		if err := hks.onProcessResponseOutbnd(ctx, outRes); err != nil {
			m.logEgressErr(ctx, pairing, err)
			return
		}
	}

	m.sendServerResponse(ctx, pairing.ServerTx, outRes)
}

func (m *Manager) logEgressErr(ctx context.Context, pairing *Pairing, err error) {
	m.log.LogAttrs(ctx, slog.LevelWarn, "b2bua egress pipeline error",
		slog.Any("client_transaction", pairing.ClientTx),
		slog.Any("error", err))
	if pairing.Handler != nil {
		pairing.Handler.OnError(ctx, err)
	}
}

func dialogHintOf(hdrs sip.Headers) DialogHint {
	var hint DialogHint
	if cid, ok := hdrs.CallID(); ok {
		hint.CallID = string(cid)
	}
	if from, ok := hdrs.From(); ok {
		hint.FromTag, _ = from.Params.First("tag")
	}
	if to, ok := hdrs.To(); ok {
		hint.ToTag, _ = to.Params.First("tag")
	}
	return hint
}

// statusError is implemented by errors that carry the SIP response status a
// rejected request should be answered with (see [sip.NewRejectRequestError]).
type statusError interface {
	Status() sip.ResponseStatus
}
