// Package transition implements the bed state machine: every
// patient/bed lifecycle operation, each applied atomically with a
// structured event emitted after commit.
package transition

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/camanet/camanet/internal/config"
	"github.com/camanet/camanet/internal/domain/compat"
	"github.com/camanet/camanet/internal/domain/patient"
	"github.com/camanet/camanet/internal/domain/registry"
	"github.com/camanet/camanet/internal/domain/waitlist"
	"github.com/camanet/camanet/internal/platform/db"
	"github.com/camanet/camanet/internal/platform/errs"
	"github.com/camanet/camanet/internal/platform/websocket"
)

// Event types emitted after committed transitions.
const (
	EventAssigned           = "bed.assigned"
	EventTransferCompleted  = "transfer.completed"
	EventTransferCancelled  = "transfer.cancelled"
	EventSearchStarted      = "search.started"
	EventSearchCancelled    = "search.cancelled"
	EventReferralRequested  = "referral.requested"
	EventReferralAccepted   = "referral.accepted"
	EventReferralRejected   = "referral.rejected"
	EventReferralEgressed   = "referral.egressed"
	EventReferralCancelled  = "referral.cancelled"
	EventCleaningStarted    = "cleaning.started"
	EventCleaningFinished   = "cleaning.finished"
	EventBedBlocked         = "bed.blocked"
	EventBedUnblocked       = "bed.unblocked"
	EventDischargeStarted   = "discharge.started"
	EventDischargeExecuted  = "discharge.executed"
	EventDischargeCancelled = "discharge.cancelled"
	EventDeceasedMarked     = "deceased.marked"
	EventDeceasedUnmarked   = "deceased.unmarked"
	EventDeceasedEgressed   = "deceased.egressed"
	EventOxygenPaused       = "oxygen.paused"
	EventOxygenResolved     = "oxygen.resolved"
)

// Notifier receives the structured event after a transition commits.
// Implemented by the websocket hub.
type Notifier interface {
	Publish(ctx context.Context, event websocket.Event) error
}

// Service drives every bed-state transition.
type Service struct {
	pool     *pgxpool.Pool
	beds     registry.BedRepository
	registry *registry.Service
	patients patient.Repository
	checker  *compat.Checker
	scorer   patient.Scorer
	queues   *waitlist.Registry
	notifier Notifier
	timers   config.TimerTuning
	// oxygenTiers maps requirement keywords to oxygen-support tiers.
	oxygenTiers map[string]int
	logger      zerolog.Logger
}

func NewService(
	pool *pgxpool.Pool,
	beds registry.BedRepository,
	reg *registry.Service,
	patients patient.Repository,
	checker *compat.Checker,
	scorer patient.Scorer,
	queues *waitlist.Registry,
	notifier Notifier,
	tuning *config.Tuning,
	logger zerolog.Logger,
) *Service {
	return &Service{
		pool:        pool,
		beds:        beds,
		registry:    reg,
		patients:    patients,
		checker:     checker,
		scorer:      scorer,
		queues:      queues,
		notifier:    notifier,
		timers:      tuning.Timers,
		oxygenTiers: tuning.Oxygen.KeywordTiers,
		logger:      logger,
	}
}

// unit is one transition body. It appends the events to emit after
// commit and may register queue mutations that only run on success.
type unit struct {
	events []websocket.Event
	after  []func()
}

func (u *unit) emit(typ string, hospitalID, patientID, bedID uuid.UUID) {
	ev := websocket.Event{
		Type:       typ,
		HospitalID: hospitalID.String(),
		Timestamp:  time.Now().UTC(),
	}
	if patientID != uuid.Nil {
		ev.PatientID = patientID.String()
	}
	if bedID != uuid.Nil {
		ev.BedID = bedID.String()
	}
	u.events = append(u.events, ev)
}

// onCommit defers an in-memory queue mutation until the transaction
// has committed, keeping the queues consistent with persisted rows.
func (u *unit) onCommit(fn func()) {
	u.after = append(u.after, fn)
}

// run executes fn atomically. A nil pool executes fn directly, which is
// how the in-memory tests drive the service.
func (s *Service) run(ctx context.Context, fn func(ctx context.Context, u *unit) error) error {
	u := &unit{}
	body := func(ctx context.Context) error { return fn(ctx, u) }

	var err error
	if s.pool == nil {
		err = body(ctx)
	} else {
		err = db.WithTx(ctx, s.pool, body)
	}
	if err != nil {
		return err
	}
	for _, fn := range u.after {
		fn()
	}
	for _, ev := range u.events {
		if perr := s.notifier.Publish(ctx, ev); perr != nil {
			s.logger.Warn().Err(perr).Str("type", ev.Type).Msg("event publish failed")
		}
	}
	return nil
}

// lockBed loads the bed with a row lock and its room/ward/hospital
// context.
func (s *Service) lockBed(ctx context.Context, id uuid.UUID) (*registry.Bed, *registry.BedContext, error) {
	bed, err := s.beds.GetForUpdate(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	bc, err := s.beds.Context(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return bed, bc, nil
}

func (s *Service) lockPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, err := s.patients.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Retired {
		return nil, errs.Conflict("patient %s is retired", id)
	}
	return p, nil
}

// startCleaning puts the bed into cleaning and stamps the timer.
func startCleaning(bed *registry.Bed, now time.Time) {
	bed.SetState(registry.BedCleaning, now)
	bed.CleaningStartedAt = &now
	bed.DestinationBedID = nil
	bed.ReferredPatientID = nil
}

// leaveQueue clears the persisted waiting fields; callers pair it with
// an onCommit queue removal.
func leaveQueue(p *patient.Patient) {
	p.OnWaitingList = false
	p.QueueState = ""
	p.WaitingSince = nil
	p.Score = 0
}

func incompatibleErr(reasons []string) error {
	return errs.Validation("patient and bed are incompatible: %s", strings.Join(reasons, "; "))
}
