// Package admission is the single gate every report submission passes before any side
// effect: shape check, proof verification, then a nullifier reservation.
package admission

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/RIKUY-ORG/Rikuy/api/src/ledger"
	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
	"github.com/RIKUY-ORG/Rikuy/pkg/logger"
	"github.com/RIKUY-ORG/Rikuy/pkg/utilities"
	"github.com/RIKUY-ORG/Rikuy/pkg/zkp"
)

type State string

const (
	StateReceived             State = "RECEIVED"
	StateProofChecked         State = "PROOF_CHECKED"
	StateNullifierChecked     State = "NULLIFIER_CHECKED"
	StateAdmitted             State = "ADMITTED"
	StateRejectedMalformed    State = "REJECTED_MALFORMED"
	StateRejectedInvalidProof State = "REJECTED_INVALID_PROOF"
	StateRejectedReplay       State = "REJECTED_REPLAY"
)

type NullifierLedger interface {
	IsUsed(ctx context.Context, scope, nullifier string) (bool, error)
	IsConsumed(ctx context.Context, scope, nullifier string) (bool, error)
	Reserve(ctx context.Context, scope, nullifier string) (*ledger.Reservation, error)
	Consume(ctx context.Context, r *ledger.Reservation, reference string) error
	Release(ctx context.Context, r *ledger.Reservation) error
}

type Gate struct {
	verifier zkp.Verifier
	ledger   NullifierLedger
	log      *logger.Logger
}

func NewGate(verifier zkp.Verifier, nullifiers NullifierLedger, log *logger.Logger) *Gate {
	if log == nil {
		log = logger.Nop()
	}
	return &Gate{verifier: verifier, ledger: nullifiers, log: log.Named("admission")}
}

// Admission is a submission that passed the gate. Its nullifier stays reserved until the
// caller either consumes it after the durable write or releases it on failure.
type Admission struct {
	Submission *zkp.Submission
	Result     zkp.Result
	// Enforced is false when the proof went through the development bypass.
	Enforced bool

	mu          sync.Mutex
	state       State
	trail       []State
	ledger      NullifierLedger
	reservation *ledger.Reservation
	settled     bool
}

func (a *Admission) move(s State) {
	a.state = s
	a.trail = append(a.trail, s)
}

func (a *Admission) State() State { return a.state }

// Trail lists every state the submission went through.
func (a *Admission) Trail() []State {
	out := make([]State, len(a.trail))
	copy(out, a.trail)
	return out
}

func (a *Admission) Nullifier() string { return a.Result.Nullifier.String() }
func (a *Admission) Scope() string     { return a.Result.Scope.String() }

// Consume marks the nullifier used, linking it to reference.
func (a *Admission) Consume(ctx context.Context, reference string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.settled {
		return nil
	}
	a.settled = true
	if a.reservation == nil {
		return nil
	}
	return a.ledger.Consume(ctx, a.reservation, reference)
}

// Release hands the nullifier back so the same proof can be retried. It does nothing
// after Consume.
func (a *Admission) Release(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.settled {
		return nil
	}
	a.settled = true
	if a.reservation == nil {
		return nil
	}
	return a.ledger.Release(ctx, a.reservation)
}

// Admit parses a raw proof payload and runs it through the gate.
func (g *Gate) Admit(ctx context.Context, raw json.RawMessage) (*Admission, error) {
	sub, err := zkp.ParseSubmission(raw)
	if err != nil {
		a := &Admission{}
		a.move(StateReceived)
		return nil, g.reject(a, StateRejectedMalformed, err)
	}
	return g.AdmitSubmission(ctx, sub)
}

func (g *Gate) AdmitSubmission(ctx context.Context, sub *zkp.Submission) (*Admission, error) {
	a := &Admission{Submission: sub, Enforced: g.verifier.Enforcing(), ledger: g.ledger}
	a.move(StateReceived)

	if sub == nil {
		return nil, g.reject(a, StateRejectedMalformed, apperror.MalformedProof("La prueba es requerida"))
	}
	if err := sub.Validate(); err != nil {
		return nil, g.reject(a, StateRejectedMalformed, err)
	}

	a.Result = g.verifier.Verify(ctx, sub)
	if !a.Result.IsValid {
		return nil, g.reject(a, StateRejectedInvalidProof, apperror.InvalidProof(a.Result.Error))
	}
	a.move(StateProofChecked)

	if g.verifier.Enforcing() {
		scope, nullifier := a.Scope(), a.Nullifier()
		used, err := g.ledger.IsUsed(ctx, scope, nullifier)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, g.reject(a, StateRejectedReplay, g.replay(ctx, scope, nullifier))
		}
		// IsUsed is advisory; the reservation is the atomic check-and-set
		r, err := g.ledger.Reserve(ctx, scope, nullifier)
		if err != nil {
			if apperror.Is(err, apperror.KindNullifierReused) {
				return nil, g.reject(a, StateRejectedReplay, err)
			}
			return nil, err
		}
		a.reservation = r
	}
	a.move(StateNullifierChecked)
	a.move(StateAdmitted)

	g.log.Fields(map[string]any{
		"nullifier": a.Nullifier(),
		"scope":     a.Scope(),
		"enforced":  g.verifier.Enforcing(),
	}).Debug("Submission admitted")
	return a, nil
}

// replay tells a consumed nullifier apart from one held by a submission still in flight,
// which the client may retry once that submission fails.
func (g *Gate) replay(ctx context.Context, scope, nullifier string) error {
	consumed, err := g.ledger.IsConsumed(ctx, scope, nullifier)
	if err != nil {
		return err
	}
	return apperror.NullifierReused().WithDetail("reason", utilities.Ternary(consumed, "consumed", "in_flight"))
}

func (g *Gate) reject(a *Admission, state State, err error) error {
	a.move(state)
	fields := map[string]any{"state": state, "trail": a.trail}
	if appErr, ok := apperror.As(err); ok {
		fields["code"] = appErr.Code
		if reason, ok := appErr.Details["reason"]; ok {
			fields["reason"] = reason
		}
	}
	g.log.Fields(fields).Info("Submission rejected")
	return err
}
