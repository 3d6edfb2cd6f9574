package b2bua

import (
	"context"

	"github.com/rromrrom/oss-core/sip"
)

// MessageType classifies a request for the purposes of handler lookup.
// It mirrors the SIP methods the manager routes, plus MessageTypeDefault
// for the catch-all handler registered with [Manager.RegisterDefaultHandler].
type MessageType string

// Message type constants.
const (
	MessageTypeInvite    MessageType = "INVITE"
	MessageTypeRegister  MessageType = "REGISTER"
	MessageTypeSubscribe MessageType = "SUBSCRIBE"
	MessageTypeNotify    MessageType = "NOTIFY"
	MessageTypeMessage   MessageType = "MESSAGE"
	MessageTypeOptions   MessageType = "OPTIONS"
	MessageTypeBye       MessageType = "BYE"
	MessageTypeCancel    MessageType = "CANCEL"
	MessageTypeAck       MessageType = "ACK"
	MessageTypePrack     MessageType = "PRACK"
	MessageTypeInfo      MessageType = "INFO"
	MessageTypeRefer     MessageType = "REFER"
	MessageTypeUpdate    MessageType = "UPDATE"
	MessageTypePublish   MessageType = "PUBLISH"
	// MessageTypeDefault is the key under which a catch-all handler is
	// stored; it is looked up when no handler is registered for a request's
	// own method.
	MessageTypeDefault MessageType = "DEFAULT"
)

// MessageTypeOf maps a SIP request method to its [MessageType].
func MessageTypeOf(method sip.RequestMethod) MessageType {
	switch method {
	case sip.RequestMethodInvite:
		return MessageTypeInvite
	case sip.RequestMethodRegister:
		return MessageTypeRegister
	case sip.RequestMethodSubscribe:
		return MessageTypeSubscribe
	case sip.RequestMethodNotify:
		return MessageTypeNotify
	case sip.RequestMethodMessage:
		return MessageTypeMessage
	case sip.RequestMethodOptions:
		return MessageTypeOptions
	case sip.RequestMethodBye:
		return MessageTypeBye
	case sip.RequestMethodCancel:
		return MessageTypeCancel
	case sip.RequestMethodAck:
		return MessageTypeAck
	case sip.RequestMethodPrack:
		return MessageTypePrack
	case sip.RequestMethodInfo:
		return MessageTypeInfo
	case sip.RequestMethodRefer:
		return MessageTypeRefer
	case sip.RequestMethodUpdate:
		return MessageTypeUpdate
	case sip.RequestMethodPublish:
		return MessageTypePublish
	default:
		return MessageTypeDefault
	}
}

// RouteResult is produced by a [Handler] to tell the manager where to send
// a request it is willing to handle.
type RouteResult struct {
	// Target is the request-URI the forwarded request should carry. If nil,
	// the inbound request's own URI is kept.
	Target sip.URI
	// Transport selects the transport protocol the client transaction is
	// created on. If empty, the inbound request's transport is reused.
	Transport sip.TransportProto
	// LocalResponse, when non-nil, tells the manager to answer the request
	// locally with this response instead of forwarding it; no client
	// transaction is created in that case.
	LocalResponse *sip.OutboundResponseEnvelope
}

// Handler is the unit of business logic the manager dispatches requests and
// responses to. A Handler is registered either for a [MessageType] (method
// based routing) or for a request-URI host (domain based routing).
type Handler interface {
	// OnRequest decides how to handle an inbound request that reached this
	// handler; see [RouteResult].
	OnRequest(ctx context.Context, req *sip.InboundRequestEnvelope) (*RouteResult, error)
	// OnResponse lets the handler observe (and mutate, in place) a response
	// flowing back through the manager for a request it routed.
	OnResponse(ctx context.Context, res *sip.InboundResponseEnvelope) error
	// OnError is invoked when the transaction paired with a request this
	// handler routed terminates in error (timeout, transport error, ...).
	OnError(ctx context.Context, err error)
	// SupportedMethods lists the methods this handler wants to be
	// registered for when used as a default/catch-all handler; it plays no
	// role once the handler is registered explicitly by [MessageType].
	SupportedMethods() []sip.RequestMethod
}

// UserAgentHandler is a plugin hook that gets first refusal on every inbound
// request, ahead of the handler registry. Returning a non-nil response
// hijacks the request: the manager sends it back directly and never reaches
// the registry for that request.
type UserAgentHandler interface {
	HandleRequest(ctx context.Context, req *sip.InboundRequestEnvelope) (*sip.OutboundResponseEnvelope, error)
}

// UserAgentHandlerFunc adapts a plain function to a [UserAgentHandler].
type UserAgentHandlerFunc func(ctx context.Context, req *sip.InboundRequestEnvelope) (*sip.OutboundResponseEnvelope, error)

func (f UserAgentHandlerFunc) HandleRequest(
	ctx context.Context,
	req *sip.InboundRequestEnvelope,
) (*sip.OutboundResponseEnvelope, error) {
	return f(ctx, req)
}
