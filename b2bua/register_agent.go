package b2bua

import (
	"context"
	"crypto/md5" //nolint:gosec // RFC 2617 digest auth mandates MD5; no ecosystem SIP digest library exists in the examples.
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"braces.dev/errtrace"

	"github.com/rromrrom/oss-core/internal/randutils"
	"github.com/rromrrom/oss-core/internal/timeutil"
	"github.com/rromrrom/oss-core/log"
	"github.com/rromrrom/oss-core/sip"
	"github.com/rromrrom/oss-core/sip/header"
	"github.com/rromrrom/oss-core/sip/uri"
)

// RegisterAgentOptions are the options for a [RegisterAgent].
type RegisterAgentOptions struct {
	// TransactionManager creates the client transactions the agent's REGISTER
	// requests run over.
	TransactionManager *sip.TransactionManager
	// TransportManager resolves the transport a REGISTER request is sent on.
	TransportManager *sip.TransportManager

	// AOR is the address of record being registered, used as the From/To URI.
	AOR uri.URI
	// Registrar is the request URI of the registrar.
	Registrar uri.URI
	// Contact is the URI advertised in the Contact header.
	Contact uri.URI
	// Transport is the transport protocol REGISTER requests are sent over.
	// Default is "UDP".
	Transport sip.TransportProto
	// Expires is the registration lifetime requested in the Expires header,
	// and the interval the agent reschedules itself at after a 2xx response.
	// Default is one hour.
	Expires time.Duration

	// Username and Password are the credentials used to answer a 401/407
	// digest challenge from the registrar. If Username is empty, the agent
	// reports [ErrRegistrationFailed] on any challenge instead of retrying.
	Username string
	Password string

	// OnResponse, if set, is called after every completed registration
	// attempt (including failed retries), with err set to [ErrRegistrationFailed]
	// (or a transport/transaction error) on failure and nil on success.
	OnResponse func(ctx context.Context, res *sip.InboundResponseEnvelope, err error)

	// Logger is the logger used for the agent's own events.
	// If nil, [log.Default] is used.
	Logger *slog.Logger
}

func (o *RegisterAgentOptions) transport() sip.TransportProto {
	if o == nil || o.Transport == "" {
		return "UDP"
	}
	return o.Transport
}

func (o *RegisterAgentOptions) expires() time.Duration {
	if o == nil || o.Expires <= 0 {
		return time.Hour
	}
	return o.Expires
}

func (o *RegisterAgentOptions) log() *slog.Logger {
	if o == nil || o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

// RegisterAgent is an outbound-REGISTER client: it periodically refreshes a
// single address-of-record registration with a registrar, answering a
// digest challenge when the registrar issues one.
//
// It is the client-side counterpart to [Manager]'s inbound REGISTER routing:
// a [Manager] routes REGISTER requests a registrar receives, while a
// RegisterAgent originates them towards one.
type RegisterAgent struct {
	txm *sip.TransactionManager
	tpm *sip.TransportManager
	log *slog.Logger

	aor       uri.URI
	registrar uri.URI
	contact   uri.URI
	transport sip.TransportProto
	expires   time.Duration
	username  string
	password  string

	onResponse func(ctx context.Context, res *sip.InboundResponseEnvelope, err error)

	callID string

	mu      sync.Mutex
	seq     uint
	timer   *timeutil.SerializableTimer
	stopped bool
}

// NewRegisterAgent creates a new, unstarted RegisterAgent.
func NewRegisterAgent(opts *RegisterAgentOptions) *RegisterAgent {
	return &RegisterAgent{
		txm:        opts.TransactionManager,
		tpm:        opts.TransportManager,
		log:        opts.log(),
		aor:        opts.AOR,
		registrar:  opts.Registrar,
		contact:    opts.Contact,
		transport:  opts.transport(),
		expires:    opts.expires(),
		username:   opts.Username,
		password:   opts.Password,
		onResponse: opts.OnResponse,
		callID:     sip.GenerateCallID(0, ""),
		seq:        1,
	}
}

// Start sends the initial REGISTER request. Subsequent refreshes are
// scheduled automatically from the response to each attempt.
func (a *RegisterAgent) Start(ctx context.Context) error {
	return errtrace.Wrap(a.register(ctx, nil))
}

// Stop cancels any pending registration refresh. It does not unregister the
// address of record.
func (a *RegisterAgent) Stop() {
	a.mu.Lock()
	a.stopped = true
	tmr := a.timer
	a.timer = nil
	a.mu.Unlock()

	if tmr != nil {
		tmr.Stop()
	}
}

func (a *RegisterAgent) nextSeq() uint {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return a.seq
}

// resolveClientTransport picks any transport the transport manager tracks
// for the agent's configured protocol.
func (a *RegisterAgent) resolveClientTransport() (sip.ClientTransport, bool) {
	for tp := range a.tpm.AllTransports() {
		if p, ok := sip.GetTransportProto(tp); ok && p == a.transport {
			return tp, true
		}
	}
	return nil, false
}

func (a *RegisterAgent) buildRequest(auth sip.Header) (*sip.OutboundRequestEnvelope, error) {
	req, err := sip.NewRequest(sip.RequestMethodRegister, a.registrar, a.aor, a.aor, &sip.RequestOptions{
		Transport: a.transport,
		CallID:    a.callID,
		SeqNum:    a.nextSeq(),
	})
	if err != nil {
		return nil, errtrace.Wrap(err)
	}

	req.Headers.Append(&header.Expires{Duration: a.expires})
	req.Headers.Append(header.Contact{{URI: a.contact}})
	if auth != nil {
		req.Headers.Append(auth)
	}

	outReq, err := sip.NewOutboundRequestEnvelope(req)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	outReq.SetTransport(a.transport)
	return outReq, nil
}

// register builds and sends a REGISTER request, optionally carrying a
// pre-computed Authorization/Proxy-Authorization header, and binds the
// response handler to the resulting client transaction.
func (a *RegisterAgent) register(ctx context.Context, auth sip.Header) error {
	outReq, err := a.buildRequest(auth)
	if err != nil {
		return errtrace.Wrap(err)
	}

	tp, ok := a.resolveClientTransport()
	if !ok {
		return errtrace.Wrap(sip.ErrNoTransport)
	}

	tx, err := a.txm.NewClientTransaction(ctx, outReq, tp, nil)
	if err != nil {
		return errtrace.Wrap(err)
	}

	tx.OnResponse(func(ctx context.Context, res *sip.InboundResponseEnvelope) {
		a.handleResponse(ctx, res, auth != nil)
	})
	return nil
}

func (a *RegisterAgent) handleResponse(ctx context.Context, res *sip.InboundResponseEnvelope, retried bool) {
	status := res.Status()

	switch {
	case status.IsSuccessful():
		a.scheduleRefresh(ctx)
		a.report(ctx, res, nil)
	case !retried && (status == sip.ResponseStatusUnauthorized || status == sip.ResponseStatusProxyAuthenticationRequired):
		auth, err := a.challengeResponse(res)
		if err != nil {
			a.report(ctx, res, errtrace.Wrap(err))
			return
		}
		if err := a.register(ctx, auth); err != nil {
			a.report(ctx, res, errtrace.Wrap(err))
		}
	default:
		a.report(ctx, res, errtrace.Wrap(newWrapperErr(ErrRegistrationFailed, fmt.Sprintf("status %d", int(status)))))
	}
}

func (a *RegisterAgent) report(ctx context.Context, res *sip.InboundResponseEnvelope, err error) {
	if err != nil {
		a.log.ErrorContext(ctx, "registration failed", "error", err)
	}
	if a.onResponse != nil {
		a.onResponse(ctx, res, err)
	}
}

func (a *RegisterAgent) scheduleRefresh(ctx context.Context) {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	prev := a.timer
	a.timer = timeutil.AfterFunc(a.expires, func() {
		if err := a.register(ctx, nil); err != nil {
			a.log.ErrorContext(ctx, "registration refresh failed", "error", err)
		}
	})
	a.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
}

// challengeResponse computes the Authorization/Proxy-Authorization header
// answering a 401/407 digest challenge carried in res.
func (a *RegisterAgent) challengeResponse(res *sip.InboundResponseEnvelope) (sip.Header, error) {
	if a.username == "" {
		return nil, errtrace.Wrap(newWrapperErr(ErrRegistrationFailed, "no credentials configured"))
	}

	isProxy := res.Status() == sip.ResponseStatusProxyAuthenticationRequired
	name := sip.HeaderName("WWW-Authenticate")
	if isProxy {
		name = "Proxy-Authenticate"
	}

	hs := res.Headers().Get(name)
	if len(hs) == 0 {
		return nil, errtrace.Wrap(newWrapperErr(ErrRegistrationFailed, "missing auth challenge"))
	}

	var challenge *header.DigestAuthChallenge
	switch hdr := hs[0].(type) {
	case *header.WWWAuthenticate:
		challenge, _ = hdr.AuthChallenge.(*header.DigestAuthChallenge)
	case *header.ProxyAuthenticate:
		challenge, _ = (*header.WWWAuthenticate)(hdr).AuthChallenge.(*header.DigestAuthChallenge)
	}
	if challenge == nil {
		return nil, errtrace.Wrap(newWrapperErr(ErrRegistrationFailed, "unsupported auth scheme"))
	}

	crd := a.digestCredentials(challenge)
	if isProxy {
		return (*header.ProxyAuthorization)(&header.Authorization{AuthCredentials: crd}), nil
	}
	return &header.Authorization{AuthCredentials: crd}, nil
}

func (a *RegisterAgent) digestCredentials(challenge *header.DigestAuthChallenge) *header.DigestAuthCredentials {
	ha1 := md5Hex(a.username + ":" + challenge.Realm + ":" + a.password)
	ha2 := md5Hex(string(sip.RequestMethodRegister) + ":" + a.registrar.Render())

	crd := &header.DigestAuthCredentials{
		Username:  a.username,
		Realm:     challenge.Realm,
		Nonce:     challenge.Nonce,
		Algorithm: challenge.Algorithm,
		Opaque:    challenge.Opaque,
		URI:       a.registrar,
	}

	if len(challenge.QOP) > 0 {
		cnonce := randutils.RandString(16)
		crd.QOP = challenge.QOP[0]
		crd.CNonce = cnonce
		crd.NonceCount = 1
		crd.Response = md5Hex(strings.Join(
			[]string{ha1, challenge.Nonce, "00000001", cnonce, crd.QOP, ha2}, ":",
		))
	} else {
		crd.Response = md5Hex(strings.Join([]string{ha1, challenge.Nonce, ha2}, ":"))
	}

	return crd
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s)) //nolint:gosec
	return fmt.Sprintf("%x", sum)
}
