package sip

import (
	"context"
	"log/slog"

	"braces.dev/errtrace"
	"github.com/qmuntal/stateless"

	"github.com/rromrrom/oss-core/internal/types"
)

// TransactionType identifies the kind of a SIP transaction.
type TransactionType string

// Transaction types, RFC 3261 Section 17.
const (
	TransactionTypeClientInvite    TransactionType = "client_invite"
	TransactionTypeClientNonInvite TransactionType = "client_non_invite"
	TransactionTypeServerInvite    TransactionType = "server_invite"
	TransactionTypeServerNonInvite TransactionType = "server_non_invite"
)

// TransactionState is a state of a transaction's state machine.
type TransactionState string

// Transaction states, RFC 3261 Section 17.
const (
	TransactionStateCalling    TransactionState = "calling"
	TransactionStateTrying     TransactionState = "trying"
	TransactionStateProceeding TransactionState = "proceeding"
	TransactionStateAccepted   TransactionState = "accepted"
	TransactionStateCompleted  TransactionState = "completed"
	TransactionStateConfirmed  TransactionState = "confirmed"
	TransactionStateTerminated TransactionState = "terminated"
)

// Transaction is the common behavior shared by [ClientTransaction] and [ServerTransaction].
type Transaction interface {
	// Type returns the transaction type.
	Type() TransactionType
	// State returns the current transaction state.
	State() TransactionState
	// OnStateChanged binds the callback to be called on every transaction state change.
	// The callback can be unbound by calling the returned unbind function.
	OnStateChanged(fn TransactionStateHandler) (unbind func())
	// MatchMessage reports whether the message matches the transaction,
	// per the matching rules of RFC 3261 Section 17.
	MatchMessage(msg Message) bool
	// Terminate forces the transaction into the terminated state.
	Terminate(ctx context.Context) error
}

// transactImpl is implemented by the concrete client/server transaction type
// embedding [baseTransact]. It lets the embedded base call back into the
// outermost type instead of operating on itself.
type transactImpl interface {
	Transaction
}

// Shared FSM trigger names used by both client and server transactions.
const (
	txEvtTerminate = "terminate"
	txEvtTranspErr = "transport_error"
)

// baseTransact holds the state machine and logger shared by [serverTransact] and [clientTransact].
type baseTransact struct {
	typ  TransactionType
	impl transactImpl
	log  *slog.Logger
	fsm  *stateless.StateMachine

	stateCbs types.CallbackManager[TransactionStateHandler]
}

func newBaseTransact(typ TransactionType, impl transactImpl, logger *slog.Logger) *baseTransact {
	return &baseTransact{
		typ:  typ,
		impl: impl,
		log:  logger,
	}
}

// initFSM creates the transaction's state machine with the given start state and
// wires it so every transition invokes the bound [TransactionStateHandler] callbacks.
func (b *baseTransact) initFSM(start TransactionState) error {
	b.fsm = stateless.NewStateMachine(start)
	b.fsm.OnTransitioned(func(ctx context.Context, t stateless.Transition) {
		from, _ := t.Source.(TransactionState)
		to, _ := t.Destination.(TransactionState)
		if from == to {
			return
		}
		for fn := range b.stateCbs.All() {
			fn(ctx, from, to)
		}
	})
	return nil
}

// Type returns the transaction type.
func (b *baseTransact) Type() TransactionType {
	if b == nil {
		return ""
	}
	return b.typ
}

// State returns the current transaction state.
func (b *baseTransact) State() TransactionState {
	if b == nil || b.fsm == nil {
		return ""
	}
	sts, _ := b.fsm.MustState().(TransactionState)
	return sts
}

// OnStateChanged binds the callback to be called on every transaction state change.
func (b *baseTransact) OnStateChanged(fn TransactionStateHandler) (unbind func()) {
	if b == nil || fn == nil {
		return func() {}
	}
	return b.stateCbs.Add(fn)
}

// Terminate forces the transaction into the terminated state.
func (b *baseTransact) Terminate(ctx context.Context) error {
	if b == nil || b.fsm == nil {
		return nil
	}
	if b.State() == TransactionStateTerminated {
		return nil
	}
	return errtrace.Wrap(b.fsm.FireCtx(ctx, txEvtTerminate))
}

// actNoop is a no-op FSM action, used where a trigger needs a configured
// transition without any side effect.
func (b *baseTransact) actNoop(_ context.Context, _ ...any) error {
	return nil
}

// actTranspErr logs a transport error reported by the transaction's transport.
// It never forces a state transition itself: whether a transport error
// terminates the transaction or is merely recorded is encoded per transaction
// type in its own FSM configuration.
func (b *baseTransact) actTranspErr(ctx context.Context, args ...any) error {
	var err error
	if len(args) > 0 {
		err, _ = args[0].(error)
	}
	b.log.LogAttrs(ctx, slog.LevelWarn, "transaction transport error",
		slog.Any("transaction", b.impl),
		slog.Any("error", err),
	)
	return nil
}

// actTerminated logs entry into the terminated state. Subtypes extend it to
// stop their own timers, calling this first.
func (b *baseTransact) actTerminated(ctx context.Context, _ ...any) error {
	b.log.LogAttrs(ctx, slog.LevelDebug, "transaction terminated", slog.Any("transaction", b.impl))
	return nil
}

// actTimedOut logs the timeout that drove the transaction into the
// terminated state, per [ErrTransactionTimedOut].
func (b *baseTransact) actTimedOut(ctx context.Context, _ ...any) error {
	b.log.LogAttrs(ctx, slog.LevelWarn, "transaction timed out",
		slog.Any("transaction", b.impl),
		slog.Any("error", ErrTransactionTimedOut),
	)
	return nil
}

type transactionCtxKey struct{}

// ContextWithTransaction returns a copy of ctx carrying tx, retrievable
// via the transaction stored in request/response handlers.
func ContextWithTransaction(ctx context.Context, tx any) context.Context {
	return context.WithValue(ctx, transactionCtxKey{}, tx)
}

// TransactionFromContext returns the transaction stored in ctx by
// [ContextWithTransaction], if any.
func TransactionFromContext(ctx context.Context) (Transaction, bool) {
	tx, ok := ctx.Value(transactionCtxKey{}).(Transaction)
	return tx, ok
}
