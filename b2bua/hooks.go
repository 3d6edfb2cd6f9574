package b2bua

import (
	"context"

	"github.com/rromrrom/oss-core/sip"
)

// Hook function types for the manager's ingress/egress pipelines. Each
// corresponds to one of the named extension points of the pipeline this
// package is modeled on; a nil hook is a no-op.
type (
	// TransactionCreatedHook fires as soon as a new server transaction has
	// been created for an inbound request, before authentication or routing.
	TransactionCreatedHook func(ctx context.Context, req *sip.InboundRequestEnvelope)

	// AuthenticateHook may reject a request outright by returning a non-nil
	// response (e.g. 401/407); a nil response lets the request continue.
	AuthenticateHook func(ctx context.Context, req *sip.InboundRequestEnvelope) (*sip.OutboundResponseEnvelope, error)

	// GenerateLocalResponseHook runs after routing and before forwarding; if
	// it returns a non-nil response, that response is sent instead of
	// forwarding the request to the routed target.
	GenerateLocalResponseHook func(ctx context.Context, req *sip.InboundRequestEnvelope, route *RouteResult) (*sip.OutboundResponseEnvelope, error)

	// InvokeLocalHandlerHook runs after GenerateLocalResponseHook declines to
	// answer; like it, a non-nil response here answers the request locally.
	InvokeLocalHandlerHook func(ctx context.Context, req *sip.InboundRequestEnvelope, route *RouteResult) (*sip.OutboundResponseEnvelope, error)

	// ProcessRequestBodyHook may rewrite the outbound request's body (e.g.
	// SDP rewriting) before it leaves the manager.
	ProcessRequestBodyHook func(ctx context.Context, req *sip.OutboundRequestEnvelope) error

	// ProcessOutboundHook runs last, immediately before the paired client
	// transaction is created and the request is sent.
	ProcessOutboundHook func(ctx context.Context, req *sip.OutboundRequestEnvelope) error

	// PostRouteHook observes the final routing decision after all handler
	// and hook processing, whether or not the request ends up forwarded.
	PostRouteHook func(ctx context.Context, req *sip.InboundRequestEnvelope, route *RouteResult)

	// ProcessClientResponseHook runs first on the egress path, before the
	// response is matched back to its server transaction.
	ProcessClientResponseHook func(ctx context.Context, res *sip.InboundResponseEnvelope) error

	// ProcessResponseBodyHook may rewrite the response body before it is
	// relayed to the server transaction.
	ProcessResponseBodyHook func(ctx context.Context, res *sip.InboundResponseEnvelope) error

	// ProcessResponseInboundHook runs after the body hook, before the
	// response is turned into an outbound response on the server side.
	ProcessResponseInboundHook func(ctx context.Context, res *sip.InboundResponseEnvelope) error

	// ProcessResponseOutboundHook runs last, immediately before the response
	// is sent out on the server transaction's transport.
	ProcessResponseOutboundHook func(ctx context.Context, res *sip.OutboundResponseEnvelope) error

	// TransactionErrorHook observes any error terminating either side of a
	// pairing (timeout, transport failure, rejected request).
	TransactionErrorHook func(ctx context.Context, tx sip.Transaction, err error)

	// MidDialogHook observes requests the manager recognizes as belonging to
	// an established dialog (matched by a pending subscription or by a
	// handler's own bookkeeping), ahead of the normal routing steps.
	MidDialogHook func(ctx context.Context, tx sip.ServerTransaction)

	// RetargetHook may rewrite the route for a request that a handler has
	// already routed, e.g. to follow a 3xx or to failover to a different
	// target; returning false leaves the original route untouched.
	RetargetHook func(ctx context.Context, req *sip.InboundRequestEnvelope, route *RouteResult) bool

	// ExternalDispatchFunc, when set with [Manager.SetExternalDispatch],
	// entirely replaces the manager's own ingress pipeline for new server
	// transactions; the manager still creates the transaction but hands it
	// to this function instead of running its own pipeline.
	ExternalDispatchFunc func(ctx context.Context, m *Manager, tx sip.ServerTransaction)
)

type hooks struct {
	onTransactionCreated    TransactionCreatedHook
	onAuthenticate          AuthenticateHook
	onGenerateLocalResponse GenerateLocalResponseHook
	onInvokeLocalHandler    InvokeLocalHandlerHook
	onProcessRequestBody    ProcessRequestBodyHook
	onProcessOutbound       ProcessOutboundHook
	postRoute               PostRouteHook

	onProcessClientResponse  ProcessClientResponseHook
	onProcessResponseBody    ProcessResponseBodyHook
	onProcessResponseInbound ProcessResponseInboundHook
	onProcessResponseOutbnd  ProcessResponseOutboundHook

	onTransactionError TransactionErrorHook
	onMidDialog        MidDialogHook
	onRetarget         RetargetHook

	externalDispatch ExternalDispatchFunc
}
