package sip

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/netip"
	"slices"
	"strconv"
	"time"

	"braces.dev/errtrace"

	"github.com/rromrrom/oss-core/internal/iterutils"
	"github.com/rromrrom/oss-core/internal/ioutil"
	"github.com/rromrrom/oss-core/internal/randutils"
	"github.com/rromrrom/oss-core/internal/stringutils"
	"github.com/rromrrom/oss-core/internal/types"
	"github.com/rromrrom/oss-core/internal/utils"
	"github.com/rromrrom/oss-core/sip/header"
)

type ResponseStatus = types.ResponseStatus

const (
	ResponseStatusTrying                ResponseStatus = types.ResponseStatusTrying
	ResponseStatusRinging               ResponseStatus = types.ResponseStatusRinging
	ResponseStatusCallIsBeingForwarded  ResponseStatus = types.ResponseStatusCallIsBeingForwarded
	ResponseStatusQueued                ResponseStatus = types.ResponseStatusQueued
	ResponseStatusSessionProgress       ResponseStatus = types.ResponseStatusSessionProgress
	ResponseStatusEarlyDialogTerminated ResponseStatus = types.ResponseStatusEarlyDialogTerminated

	ResponseStatusOK             ResponseStatus = types.ResponseStatusOK
	ResponseStatusAccepted       ResponseStatus = types.ResponseStatusAccepted
	ResponseStatusNoNotification ResponseStatus = types.ResponseStatusNoNotification

	ResponseStatusMultipleChoices    ResponseStatus = types.ResponseStatusMultipleChoices
	ResponseStatusMovedPermanently   ResponseStatus = types.ResponseStatusMovedPermanently
	ResponseStatusMovedTemporarily   ResponseStatus = types.ResponseStatusMovedTemporarily
	ResponseStatusUseProxy           ResponseStatus = types.ResponseStatusUseProxy
	ResponseStatusAlternativeService ResponseStatus = types.ResponseStatusAlternativeService

	ResponseStatusBadRequest                   ResponseStatus = types.ResponseStatusBadRequest
	ResponseStatusUnauthorized                 ResponseStatus = types.ResponseStatusUnauthorized
	ResponseStatusPaymentRequired               ResponseStatus = types.ResponseStatusPaymentRequired
	ResponseStatusForbidden                    ResponseStatus = types.ResponseStatusForbidden
	ResponseStatusNotFound                     ResponseStatus = types.ResponseStatusNotFound
	ResponseStatusMethodNotAllowed             ResponseStatus = types.ResponseStatusMethodNotAllowed
	ResponseStatusNotAcceptable                ResponseStatus = types.ResponseStatusNotAcceptable
	ResponseStatusProxyAuthenticationRequired  ResponseStatus = types.ResponseStatusProxyAuthenticationRequired
	ResponseStatusRequestTimeout               ResponseStatus = types.ResponseStatusRequestTimeout
	ResponseStatusConflict                     ResponseStatus = types.ResponseStatusConflict
	ResponseStatusGone                         ResponseStatus = types.ResponseStatusGone
	ResponseStatusLengthRequired               ResponseStatus = types.ResponseStatusLengthRequired
	ResponseStatusConditionalRequestFailed     ResponseStatus = types.ResponseStatusConditionalRequestFailed
	ResponseStatusRequestEntityTooLarge        ResponseStatus = types.ResponseStatusRequestEntityTooLarge
	ResponseStatusRequestURITooLong            ResponseStatus = types.ResponseStatusRequestURITooLong
	ResponseStatusUnsupportedMediaType         ResponseStatus = types.ResponseStatusUnsupportedMediaType
	ResponseStatusUnsupportedURIScheme         ResponseStatus = types.ResponseStatusUnsupportedURIScheme
	ResponseStatusUnknownResourcePriority      ResponseStatus = types.ResponseStatusUnknownResourcePriority
	ResponseStatusBadExtension                 ResponseStatus = types.ResponseStatusBadExtension
	ResponseStatusExtensionRequired            ResponseStatus = types.ResponseStatusExtensionRequired
	ResponseStatusSessionIntervalTooSmall      ResponseStatus = types.ResponseStatusSessionIntervalTooSmall
	ResponseStatusIntervalTooBrief             ResponseStatus = types.ResponseStatusIntervalTooBrief
	ResponseStatusBadLocationInformation       ResponseStatus = types.ResponseStatusBadLocationInformation
	ResponseStatusBadAlertMessage              ResponseStatus = types.ResponseStatusBadAlertMessage
	ResponseStatusUseIdentityHeader            ResponseStatus = types.ResponseStatusUseIdentityHeader
	ResponseStatusProvideReferrerIdentity      ResponseStatus = types.ResponseStatusProvideReferrerIdentity
	ResponseStatusFlowFailed                   ResponseStatus = types.ResponseStatusFlowFailed
	ResponseStatusAnonymityDisallowed          ResponseStatus = types.ResponseStatusAnonymityDisallowed
	ResponseStatusBadIdentityInfo              ResponseStatus = types.ResponseStatusBadIdentityInfo
	ResponseStatusUnsupportedCredential        ResponseStatus = types.ResponseStatusUnsupportedCredential
	ResponseStatusInvalidIdentityHeader        ResponseStatus = types.ResponseStatusInvalidIdentityHeader
	ResponseStatusFirstHopLacksOutboundSupport ResponseStatus = types.ResponseStatusFirstHopLacksOutboundSupport
	ResponseStatusMaxBreadthExceeded           ResponseStatus = types.ResponseStatusMaxBreadthExceeded
	ResponseStatusBadInfoPackage                ResponseStatus = types.ResponseStatusBadInfoPackage
	ResponseStatusConsentNeeded                ResponseStatus = types.ResponseStatusConsentNeeded
	ResponseStatusTemporarilyUnavailable       ResponseStatus = types.ResponseStatusTemporarilyUnavailable
	ResponseStatusCallTransactionDoesNotExist  ResponseStatus = types.ResponseStatusCallTransactionDoesNotExist
	ResponseStatusLoopDetected                 ResponseStatus = types.ResponseStatusLoopDetected
	ResponseStatusTooManyHops                  ResponseStatus = types.ResponseStatusTooManyHops
	ResponseStatusAddressIncomplete            ResponseStatus = types.ResponseStatusAddressIncomplete
	ResponseStatusAmbiguous                    ResponseStatus = types.ResponseStatusAmbiguous
	ResponseStatusBusyHere                     ResponseStatus = types.ResponseStatusBusyHere
	ResponseStatusRequestTerminated            ResponseStatus = types.ResponseStatusRequestTerminated
	ResponseStatusNotAcceptableHere            ResponseStatus = types.ResponseStatusNotAcceptableHere
	ResponseStatusBadEvent                     ResponseStatus = types.ResponseStatusBadEvent
	ResponseStatusRequestPending               ResponseStatus = types.ResponseStatusRequestPending
	ResponseStatusUndecipherable               ResponseStatus = types.ResponseStatusUndecipherable
	ResponseStatusSecurityAgreementRequired    ResponseStatus = types.ResponseStatusSecurityAgreementRequired

	ResponseStatusServerInternalError                 ResponseStatus = types.ResponseStatusServerInternalError
	ResponseStatusNotImplemented                      ResponseStatus = types.ResponseStatusNotImplemented
	ResponseStatusBadGateway                          ResponseStatus = types.ResponseStatusBadGateway
	ResponseStatusServiceUnavailable                  ResponseStatus = types.ResponseStatusServiceUnavailable
	ResponseStatusGatewayTimeout                      ResponseStatus = types.ResponseStatusGatewayTimeout
	ResponseStatusVersionNotSupported                 ResponseStatus = types.ResponseStatusVersionNotSupported
	ResponseStatusMessageTooLarge                     ResponseStatus = types.ResponseStatusMessageTooLarge
	ResponseStatusPushNotificationServiceNotSupported ResponseStatus = types.ResponseStatusPushNotificationServiceNotSupported
	ResponseStatusPreconditionFailure                 ResponseStatus = types.ResponseStatusPreconditionFailure

	ResponseStatusBusyEverywhere       ResponseStatus = types.ResponseStatusBusyEverywhere
	ResponseStatusDecline              ResponseStatus = types.ResponseStatusDecline
	ResponseStatusDoesNotExistAnywhere ResponseStatus = types.ResponseStatusDoesNotExistAnywhere
	ResponseStatusNotAcceptable606     ResponseStatus = types.ResponseStatusNotAcceptable606
	ResponseStatusUnwanted             ResponseStatus = types.ResponseStatusUnwanted
	ResponseStatusRejected             ResponseStatus = types.ResponseStatusRejected
)

func ResponseStatusReason(status ResponseStatus) string { return string(status.Reason()) }

type Response struct {
	Status  ResponseStatus
	Reason  string
	Proto   ProtoInfo
	Headers Headers
	Body    []byte

	Metadata MessageMetadata
}

func (res *Response) RenderTo(w io.Writer, opts *RenderOptions) (num int, err error) {
	if res == nil {
		return 0, nil
	}

	cw := ioutil.GetCountingWriter(w)
	defer ioutil.FreeCountingWriter(cw)
	cw.Fprint(res.Proto, " ", res.Status, " ", res.Reason)
	cw.Fprint("\r\n")
	cw.Call(func(w io.Writer) (int, error) {
		return renderHdrs(w, res.Headers, opts)
	})
	cw.Fprint("\r\n")
	cw.Write(res.Body)
	return cw.Result()
}

func (res *Response) Render(opts *RenderOptions) string {
	if res == nil {
		return ""
	}
	sb := stringutils.NewStrBldr()
	defer stringutils.FreeStrBldr(sb)
	res.RenderTo(sb, opts) //nolint:errcheck
	return sb.String()
}

func (res *Response) String() string {
	if res == nil {
		return sNilTag
	}
	return res.Render(nil)
}

// Format implements [fmt.Formatter] for custom formatting.
func (res *Response) Format(f fmt.State, verb rune) {
	switch verb {
	case 's':
		if f.Flag('+') {
			res.RenderTo(f, nil) //nolint:errcheck
			return
		}
		f.Write([]byte(res.String()))
		return
	case 'q':
		if f.Flag('+') {
			fmt.Fprint(f, strconv.Quote(res.Render(nil)))
			return
		}
		f.Write([]byte(strconv.Quote(res.String())))
		return
	default:
		type hideMethods Response
		type Response hideMethods
		fmt.Fprintf(f, fmt.FormatString(f, verb), (*Response)(res))
		return
	}
}

func (res *Response) LogValue() slog.Value {
	if res == nil {
		return slog.Value{}
	}
	_, viaHop := iterutils.IterFirst2(res.Headers.Via())
	return slog.GroupValue(
		slog.String("type", fmt.Sprintf("%T", res)),
		slog.String("ptr", fmt.Sprintf("%p", res)),
		slog.Any("status", res.Status),
		slog.String("reason", res.Reason),
		slog.Group("headers",
			slog.Any("Via", utils.ValOrNil(viaHop)),
			slog.Any("From", res.Headers.From()),
			slog.Any("To", res.Headers.To()),
			slog.Any("Call-ID", res.Headers.CallID()),
			slog.Any("CSeq", res.Headers.CSeq()),
		),
		slog.Group("metadata",
			slog.Any(LocalAddrField, res.Metadata[LocalAddrField]),
			slog.Any(RemoteAddrField, res.Metadata[RemoteAddrField]),
			slog.Any(RequestTstampField, res.Metadata[RequestTstampField]),
			slog.Any(ResponseTstampField, res.Metadata[ResponseTstampField]),
		),
	)
}

func (res *Response) Clone() Message {
	if res == nil {
		return nil
	}
	res2 := *res
	res2.Headers = res.Headers.Clone()
	res2.Body = slices.Clone(res.Body)
	res2.Metadata = maps.Clone(res.Metadata)
	return &res2
}

func (res *Response) IsValid() bool {
	return res != nil &&
		res.Status.IsValid() &&
		res.Proto.IsValid() &&
		validateHdrs(res.Headers) == nil &&
		res.Headers.Has("Via") &&
		res.Headers.Has("From") &&
		res.Headers.Has("To") &&
		res.Headers.Has("Call-ID") &&
		res.Headers.Has("CSeq")
}

func (res *Response) Validate() error {
	if res == nil {
		return errtrace.Wrap(NewInvalidArgumentError("invalid response"))
	}
	if !res.Status.IsValid() {
		return errtrace.Wrap(ErrInvalidMessage)
	}
	if err := validateHdrs(res.Headers); err != nil {
		return errtrace.Wrap(err)
	}
	for _, name := range []HeaderName{"Via", "From", "To", "Call-ID", "CSeq"} {
		if !res.Headers.Has(name) {
			return errtrace.Wrap(errMissHdrs)
		}
	}
	return nil
}

func (res *Response) MarshalJSON() ([]byte, error) {
	if res == nil {
		return jsonNull, nil
	}
	type alias Response
	return errtrace.Wrap2(json.Marshal((*alias)(res)))
}

func (res *Response) UnmarshalJSON(data []byte) error {
	type alias Response
	return errtrace.Wrap(json.Unmarshal(data, (*alias)(res)))
}

func (res *Response) Equal(val any) bool {
	var other *Response
	switch v := val.(type) {
	case Response:
		other = &v
	case *Response:
		other = v
	default:
		return false
	}

	if res == other {
		return true
	} else if res == nil || other == nil {
		return false
	}

	return res.Status.Equal(other.Status) &&
		stringutils.LCase(res.Reason) == stringutils.LCase(other.Reason) &&
		res.Proto.Equal(other.Proto) &&
		compareHdrs(res.Headers, other.Headers) &&
		slices.Equal(res.Body, other.Body)
}

// NewResponse generates a SIP response from a SIP request as described in RFC 3261 Section 8.2.6.
func NewResponse(req *Request, status ResponseStatus, reason string) *Response {
	if reason == "" {
		reason = ResponseStatusReason(status)
	}
	res := &Response{
		Status:   status,
		Reason:   reason,
		Proto:    req.Proto,
		Headers:  make(Headers, 6).CopyFrom(req.Headers, "Via", "From", "To", "Call-ID", "CSeq", "Timestamp"),
		Metadata: maps.Clone(req.Metadata),
	}
	if status != ResponseStatusTrying && res.Headers.To() != nil {
		if res.Headers.To().Params == nil || !res.Headers.To().Params.Has("tag") {
			if res.Headers.To().Params == nil {
				res.Headers.To().Params = make(header.Values)
			}
			res.Headers.To().Params.Set("tag", randutils.RandString(16))
		}
	}
	return res
}

// ResponseWriter is used to generate a SIP response on inbound request and send it to the remote peer
// using the procedure defined in RFC 3261 Section 18.2.2.
//
// Example of responding on inbound INVITE request:
//
//	w.Headers().Set(header.Contact{{URI: &uri.SIP{User: uri.User("bob"), Addr: uri.HostPort("192.0.2.4", 5060)}}})
//	w.SetTag("1234")
//	w.Write(ctx, sip.ResponseStatusRinging)
//	w.Write(ctx, sip.ResponseStatusOK, "OK", []byte("v=0\r\n...")/*, header.MIMEType{Type: "application", Subtype: "sdp"} */)
type ResponseWriter interface {
	// Headers returns a map for configuring additional response headers.
	Headers() Headers
	// SetTag sets a local tag to the To header for all responses generated with Write.
	SetTag(tag string)
	// Write generates a SIP response and sends to the remote peer.
	// Implementations should support at least following optional arguments:
	//  - reason as string
	//  - body as []byte
	//  - MIME type as [header.MIMEType]
	Write(ctx context.Context, status ResponseStatus, opts ...any) error
}

type InboundResponseEnvelope struct {
	*inboundMessageEnvelope[*Response]
}

func NewInboundResponseEnvelope(
	res *Response,
	tp TransportProto,
	laddr, raddr netip.AddrPort,
) (*InboundResponseEnvelope, error) {
	if res == nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError("invalid response"))
	}
	if tp == "" {
		return nil, errtrace.Wrap(NewInvalidArgumentError("invalid transport protocol"))
	}
	if !laddr.IsValid() {
		return nil, errtrace.Wrap(NewInvalidArgumentError("invalid local address"))
	}
	if !raddr.IsValid() {
		return nil, errtrace.Wrap(NewInvalidArgumentError("invalid remote address"))
	}

	me := &inboundMessageEnvelope[*Response]{
		msgTime: time.Now(),
		data:    new(MessageMetadata),
	}
	me.msg.Store(res)
	me.tp.Store(tp)
	me.locAddr.Store(laddr)
	me.rmtAddr.Store(raddr)
	return &InboundResponseEnvelope{me}, nil
}

func (r *InboundResponseEnvelope) Message() *Response {
	if r == nil {
		return nil
	}
	return r.inboundMessageEnvelope.Message()
}

func (r *InboundResponseEnvelope) Headers() Headers {
	if r == nil {
		return nil
	}
	return r.inboundMessageEnvelope.Headers()
}

func (r *InboundResponseEnvelope) Body() []byte {
	if r == nil {
		return nil
	}
	return r.inboundMessageEnvelope.Body()
}

func (r *InboundResponseEnvelope) Transport() TransportProto {
	if r == nil {
		return ""
	}
	return r.inboundMessageEnvelope.Transport()
}

func (r *InboundResponseEnvelope) LocalAddr() netip.AddrPort {
	if r == nil {
		return zeroAddrPort
	}
	return r.inboundMessageEnvelope.LocalAddr()
}

func (r *InboundResponseEnvelope) RemoteAddr() netip.AddrPort {
	if r == nil {
		return zeroAddrPort
	}
	return r.inboundMessageEnvelope.RemoteAddr()
}

func (r *InboundResponseEnvelope) MessageTime() time.Time {
	if r == nil {
		return zeroTime
	}
	return r.inboundMessageEnvelope.MessageTime()
}

func (r *InboundResponseEnvelope) Metadata() *MessageMetadata {
	if r == nil {
		return nil
	}
	return r.inboundMessageEnvelope.Metadata()
}

func (r *InboundResponseEnvelope) Status() ResponseStatus {
	if r == nil {
		return 0
	}
	return r.message().Status
}

func (r *InboundResponseEnvelope) RenderTo(w io.Writer, opts *RenderOptions) (int, error) {
	if r == nil {
		return 0, nil
	}
	return errtrace.Wrap2(r.inboundMessageEnvelope.RenderTo(w, opts))
}

func (r *InboundResponseEnvelope) Render(opts *RenderOptions) string {
	if r == nil {
		return ""
	}
	return r.inboundMessageEnvelope.Render(opts)
}

func (r *InboundResponseEnvelope) String() string {
	if r == nil {
		return sNilTag
	}
	return r.message().String()
}

func (r *InboundResponseEnvelope) Format(f fmt.State, verb rune) {
	if r == nil {
		f.Write(bNilTag) //nolint:errcheck
		return
	}
	r.message().Format(f, verb)
}

func (r *InboundResponseEnvelope) Clone() Message {
	if r == nil {
		return nil
	}
	return &InboundResponseEnvelope{
		r.inboundMessageEnvelope.Clone().(*inboundMessageEnvelope[*Response]), //nolint:forcetypeassert
	}
}

func (r *InboundResponseEnvelope) Equal(v any) bool {
	if r == nil {
		return v == nil
	}
	if other, ok := v.(*InboundResponseEnvelope); ok {
		return r.inboundMessageEnvelope.Equal(other.inboundMessageEnvelope)
	}
	return false
}

func (r *InboundResponseEnvelope) IsValid() bool {
	if r == nil {
		return false
	}
	return r.inboundMessageEnvelope.IsValid()
}

func (r *InboundResponseEnvelope) Validate() error {
	if r == nil {
		return errtrace.Wrap(NewInvalidArgumentError("invalid response"))
	}
	return errtrace.Wrap(r.inboundMessageEnvelope.Validate())
}

func (r *InboundResponseEnvelope) MarshalJSON() ([]byte, error) {
	if r == nil {
		return jsonNull, nil
	}
	return errtrace.Wrap2(r.inboundMessageEnvelope.MarshalJSON())
}

func (r *InboundResponseEnvelope) UnmarshalJSON(data []byte) error {
	if r.inboundMessageEnvelope == nil {
		r.inboundMessageEnvelope = new(inboundMessageEnvelope[*Response])
	}
	return errtrace.Wrap(r.inboundMessageEnvelope.UnmarshalJSON(data))
}

func (r *InboundResponseEnvelope) LogValue() slog.Value {
	if r == nil {
		return zeroSlogValue
	}
	return r.inboundMessageEnvelope.LogValue()
}

type OutboundResponseEnvelope struct {
	*outboundMessageEnvelope[*Response]
}

func NewOutboundResponseEnvelope(res *Response) (*OutboundResponseEnvelope, error) {
	if res == nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError("invalid response"))
	}

	me := &messageEnvelope[*Response]{
		msgTime: time.Now(),
		data:    new(MessageMetadata),
	}
	me.msg.Store(res)
	return &OutboundResponseEnvelope{
		&outboundMessageEnvelope[*Response]{
			messageEnvelope: me,
		},
	}, nil
}

func (r *OutboundResponseEnvelope) Message() *Response {
	if r == nil {
		return nil
	}
	return r.outboundMessageEnvelope.Message()
}

func (r *OutboundResponseEnvelope) AccessMessage(update func(*Response)) {
	if r == nil {
		return
	}
	r.outboundMessageEnvelope.AccessMessage(update)
}

func (r *OutboundResponseEnvelope) Headers() Headers {
	if r == nil {
		return nil
	}
	return r.outboundMessageEnvelope.Headers()
}

func (r *OutboundResponseEnvelope) Body() []byte {
	if r == nil {
		return nil
	}
	return r.outboundMessageEnvelope.Body()
}

func (r *OutboundResponseEnvelope) Transport() TransportProto {
	if r == nil {
		return ""
	}
	return r.outboundMessageEnvelope.Transport()
}

func (r *OutboundResponseEnvelope) SetTransport(tp TransportProto) {
	if r == nil {
		return
	}
	r.outboundMessageEnvelope.SetTransport(tp)
}

func (r *OutboundResponseEnvelope) LocalAddr() netip.AddrPort {
	if r == nil {
		return zeroAddrPort
	}
	return r.outboundMessageEnvelope.LocalAddr()
}

func (r *OutboundResponseEnvelope) SetLocalAddr(addr netip.AddrPort) {
	if r == nil {
		return
	}
	r.outboundMessageEnvelope.SetLocalAddr(addr)
}

func (r *OutboundResponseEnvelope) RemoteAddr() netip.AddrPort {
	if r == nil {
		return zeroAddrPort
	}
	return r.outboundMessageEnvelope.RemoteAddr()
}

func (r *OutboundResponseEnvelope) SetRemoteAddr(addr netip.AddrPort) {
	if r == nil {
		return
	}
	r.outboundMessageEnvelope.SetRemoteAddr(addr)
}

func (r *OutboundResponseEnvelope) MessageTime() time.Time {
	if r == nil {
		return zeroTime
	}
	return r.outboundMessageEnvelope.MessageTime()
}

func (r *OutboundResponseEnvelope) Metadata() *MessageMetadata {
	if r == nil {
		return nil
	}
	return r.outboundMessageEnvelope.Metadata()
}

func (r *OutboundResponseEnvelope) Status() ResponseStatus {
	if r == nil {
		return 0
	}

	r.msgMu.RLock()
	defer r.msgMu.RUnlock()
	return r.message().Status
}

func (r *OutboundResponseEnvelope) RenderTo(w io.Writer, opts *RenderOptions) (int, error) {
	if r == nil {
		return 0, nil
	}
	return errtrace.Wrap2(r.outboundMessageEnvelope.RenderTo(w, opts))
}

func (r *OutboundResponseEnvelope) Render(opts *RenderOptions) string {
	if r == nil {
		return ""
	}
	return r.outboundMessageEnvelope.Render(opts)
}

func (r *OutboundResponseEnvelope) String() string {
	if r == nil {
		return sNilTag
	}

	r.msgMu.RLock()
	defer r.msgMu.RUnlock()
	return r.message().String()
}

func (r *OutboundResponseEnvelope) Format(f fmt.State, verb rune) {
	if r == nil {
		f.Write(bNilTag) //nolint:errcheck
		return
	}

	r.msgMu.RLock()
	defer r.msgMu.RUnlock()
	r.message().Format(f, verb)
}

func (r *OutboundResponseEnvelope) Clone() Message {
	if r == nil {
		return nil
	}
	return &OutboundResponseEnvelope{
		r.outboundMessageEnvelope.Clone().(*outboundMessageEnvelope[*Response]), //nolint:forcetypeassert
	}
}

func (r *OutboundResponseEnvelope) Equal(v any) bool {
	if r == nil {
		return v == nil
	}
	if other, ok := v.(*OutboundResponseEnvelope); ok {
		return r.outboundMessageEnvelope.Equal(other.outboundMessageEnvelope)
	}
	return false
}

func (r *OutboundResponseEnvelope) IsValid() bool {
	if r == nil {
		return false
	}
	return r.outboundMessageEnvelope.IsValid()
}

func (r *OutboundResponseEnvelope) Validate() error {
	if r == nil {
		return errtrace.Wrap(NewInvalidArgumentError("invalid response"))
	}
	return errtrace.Wrap(r.outboundMessageEnvelope.Validate())
}

func (r *OutboundResponseEnvelope) MarshalJSON() ([]byte, error) {
	if r == nil {
		return jsonNull, nil
	}
	return errtrace.Wrap2(r.outboundMessageEnvelope.MarshalJSON())
}

func (r *OutboundResponseEnvelope) UnmarshalJSON(data []byte) error {
	if r.outboundMessageEnvelope == nil {
		r.outboundMessageEnvelope = new(outboundMessageEnvelope[*Response])
	}
	return errtrace.Wrap(r.outboundMessageEnvelope.UnmarshalJSON(data))
}

func (r *OutboundResponseEnvelope) LogValue() slog.Value {
	if r == nil {
		return zeroSlogValue
	}
	return r.outboundMessageEnvelope.LogValue()
}

// ResponseReceiver receives inbound responses, typically a matched client transaction.
type ResponseReceiver interface {
	// RecvResponse receives a valid inbound response from the transport or downstream receiver.
	RecvResponse(ctx context.Context, res *InboundResponseEnvelope) error
}

type ResponseReceiverFunc func(ctx context.Context, res *InboundResponseEnvelope) error

func (fn ResponseReceiverFunc) RecvResponse(ctx context.Context, res *InboundResponseEnvelope) error {
	return fn(ctx, res) //errtrace:skip
}

// ResponseSender sends outbound responses, typically implemented by a transport or transaction.
type ResponseSender interface {
	// SendResponse renders and sends the response to the remote peer.
	//
	// If no deadline is specified on the context, the deadline is set to [SendResponseOptions.Timeout].
	SendResponse(ctx context.Context, res *OutboundResponseEnvelope, opts *SendResponseOptions) error
}

type ResponseSenderFunc func(ctx context.Context, res *OutboundResponseEnvelope, opts *SendResponseOptions) error

func (fn ResponseSenderFunc) SendResponse(
	ctx context.Context,
	res *OutboundResponseEnvelope,
	opts *SendResponseOptions,
) error {
	return fn(ctx, res, opts) //errtrace:skip
}
