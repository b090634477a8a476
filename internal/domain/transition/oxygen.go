package transition

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/camanet/camanet/internal/domain/patient"
	"github.com/camanet/camanet/internal/domain/registry"
	"github.com/camanet/camanet/internal/platform/errs"
)

// ClinicalChanged re-checks bed fitness after a clinical update. A
// detected drop in oxygen-support tier starts a grace pause during
// which the bed stays occupied; other outcomes apply immediately.
// Implements patient.Reevaluator.
func (s *Service) ClinicalChanged(ctx context.Context, updated *patient.Patient, priorTier int) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, updated.ID)
		if err != nil {
			return err
		}
		if p.CurrentBedID == nil {
			return nil
		}
		bed, bctx, err := s.lockBed(ctx, *p.CurrentBedID)
		if err != nil {
			return err
		}
		switch bed.State {
		case registry.BedOccupied, registry.BedDischargeSuggested, registry.BedAwaitingNewBed:
		default:
			// Beds mid-transfer, mid-referral or mid-discharge are
			// resolved by their own flows.
			return nil
		}

		ok, _ := s.checker.Evaluate(p, bctx)
		requiresNewBed := !ok
		dischargeEligible := p.DischargeEligible()

		if p.OxygenPause.Active {
			// Further updates during the window refresh the pending
			// outcome but never reset the timer.
			p.OxygenPause.RequiresNewBed = requiresNewBed
			p.OxygenPause.DischargeEligible = dischargeEligible
			return s.patients.Update(ctx, p)
		}

		newTier := p.OxygenTier(s.oxygenTiers)
		if newTier < priorTier {
			p.OxygenPause = patient.OxygenPause{
				Active:            true,
				StartAt:           &now,
				PriorTier:         priorTier,
				RequiresNewBed:    requiresNewBed,
				DischargeEligible: dischargeEligible,
			}
			if err := s.patients.Update(ctx, p); err != nil {
				return err
			}
			u.emit(EventOxygenPaused, bctx.Hospital.ID, p.ID, bed.ID)
			return nil
		}

		return s.applyReevaluation(ctx, u, p, bed, bctx, requiresNewBed, dischargeEligible, now)
	})
}

// SkipOxygenPause resolves an active pause right away instead of
// waiting out the grace period.
func (s *Service) SkipOxygenPause(ctx context.Context, patientID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if !p.OxygenPause.Active {
			return errs.Conflict("patient %s has no active oxygen pause", patientID)
		}
		return s.resolvePause(ctx, u, p)
	})
}

// ResolveElapsedPauses ends every oxygen pause whose grace period has
// run out. Called by the periodic sweep.
func (s *Service) ResolveElapsedPauses(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.timers.OxygenPauseDuration())
	due, err := s.patients.PausedSince(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, p := range due {
		pid := p.ID
		err := s.run(ctx, func(ctx context.Context, u *unit) error {
			locked, err := s.lockPatient(ctx, pid)
			if err != nil {
				return err
			}
			if !locked.OxygenPause.Active {
				return nil
			}
			return s.resolvePause(ctx, u, locked)
		})
		if err != nil {
			s.logger.Error().Err(err).Str("patient_id", pid.String()).Msg("failed to resolve oxygen pause")
		}
	}
	return nil
}

// resolvePause applies the outcome recorded during the pause window
// and clears the pause. Caller holds the patient lock.
func (s *Service) resolvePause(ctx context.Context, u *unit, p *patient.Patient) error {
	now := time.Now().UTC()
	requiresNewBed := p.OxygenPause.RequiresNewBed
	dischargeEligible := p.OxygenPause.DischargeEligible
	p.OxygenPause = patient.OxygenPause{}

	if p.CurrentBedID == nil {
		return s.patients.Update(ctx, p)
	}
	bed, bctx, err := s.lockBed(ctx, *p.CurrentBedID)
	if err != nil {
		return err
	}
	if err := s.applyReevaluation(ctx, u, p, bed, bctx, requiresNewBed, dischargeEligible, now); err != nil {
		return err
	}
	u.emit(EventOxygenResolved, bctx.Hospital.ID, p.ID, bed.ID)
	return nil
}

// applyReevaluation moves an occupied-class bed to the state the
// latest clinical picture calls for. Discharge eligibility wins over
// needing a new bed.
func (s *Service) applyReevaluation(ctx context.Context, u *unit, p *patient.Patient, bed *registry.Bed, bctx *registry.BedContext, requiresNewBed, dischargeEligible bool, now time.Time) error {
	switch bed.State {
	case registry.BedOccupied, registry.BedDischargeSuggested, registry.BedAwaitingNewBed:
	default:
		return s.patients.Update(ctx, p)
	}

	target := registry.BedOccupied
	switch {
	case dischargeEligible:
		target = registry.BedDischargeSuggested
	case requiresNewBed:
		target = registry.BedAwaitingNewBed
	}
	if bed.State != target {
		bed.SetState(target, now)
		if err := s.beds.Update(ctx, bed); err != nil {
			return err
		}
	}
	return s.patients.Update(ctx, p)
}
