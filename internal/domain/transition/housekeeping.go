package transition

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/camanet/camanet/internal/domain/registry"
	"github.com/camanet/camanet/internal/platform/errs"
)

// StartCleaning manually sends a free bed to cleaning.
func (s *Service) StartCleaning(ctx context.Context, bedID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		bed, bctx, err := s.lockBed(ctx, bedID)
		if err != nil {
			return err
		}
		if bed.State != registry.BedFree {
			return errs.IllegalState("bed", registry.BedFree, bed.State)
		}
		startCleaning(bed, now)
		if err := s.beds.Update(ctx, bed); err != nil {
			return err
		}
		u.emit(EventCleaningStarted, bctx.Hospital.ID, uuid.Nil, bed.ID)
		return nil
	})
}

// FinishCleaning returns a cleaned bed to the free pool. Called both
// from the API and from the cleaning sweep.
func (s *Service) FinishCleaning(ctx context.Context, bedID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		bed, bctx, err := s.lockBed(ctx, bedID)
		if err != nil {
			return err
		}
		if bed.State != registry.BedCleaning {
			return errs.IllegalState("bed", registry.BedCleaning, bed.State)
		}
		bed.SetState(registry.BedFree, now)
		bed.ReferredPatientID = nil
		if err := s.beds.Update(ctx, bed); err != nil {
			return err
		}
		if err := s.registry.ReevaluateRoomSex(ctx, bed.RoomID); err != nil {
			return err
		}
		u.emit(EventCleaningFinished, bctx.Hospital.ID, uuid.Nil, bed.ID)
		return nil
	})
}

// Block takes a free bed out of service.
func (s *Service) Block(ctx context.Context, bedID uuid.UUID, reason string) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		bed, bctx, err := s.lockBed(ctx, bedID)
		if err != nil {
			return err
		}
		if bed.State != registry.BedFree {
			return errs.IllegalState("bed", registry.BedFree, bed.State)
		}
		bed.SetState(registry.BedBlocked, now)
		bed.StatusMessage = reason
		if err := s.beds.Update(ctx, bed); err != nil {
			return err
		}
		u.emit(EventBedBlocked, bctx.Hospital.ID, uuid.Nil, bed.ID)
		return nil
	})
}

// Unblock returns a blocked bed to service.
func (s *Service) Unblock(ctx context.Context, bedID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		bed, bctx, err := s.lockBed(ctx, bedID)
		if err != nil {
			return err
		}
		if bed.State != registry.BedBlocked {
			return errs.IllegalState("bed", registry.BedBlocked, bed.State)
		}
		bed.SetState(registry.BedFree, now)
		bed.StatusMessage = ""
		if err := s.beds.Update(ctx, bed); err != nil {
			return err
		}
		u.emit(EventBedUnblocked, bctx.Hospital.ID, uuid.Nil, bed.ID)
		return nil
	})
}

// StartDischarge flags a patient for discharge and locks the bed into
// discharge_in_progress until staff confirm the patient has left.
func (s *Service) StartDischarge(ctx context.Context, patientID uuid.UUID, reason string) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.CurrentBedID == nil {
			return errs.Validation("patient %s does not hold a bed", patientID)
		}
		bed, bctx, err := s.lockBed(ctx, *p.CurrentBedID)
		if err != nil {
			return err
		}
		switch bed.State {
		case registry.BedOccupied, registry.BedDischargeSuggested, registry.BedAwaitingNewBed:
		default:
			return errs.IllegalState("bed", registry.BedOccupied, bed.State)
		}
		bed.SetState(registry.BedDischargeInProgress, now)
		if err := s.beds.Update(ctx, bed); err != nil {
			return err
		}

		p.DischargeRequested = true
		p.DischargeReason = reason
		if p.OnWaitingList {
			leaveQueue(p)
		}
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}

		hospitalID, pid := bctx.Hospital.ID, p.ID
		u.onCommit(func() { s.queues.Queue(hospitalID).Remove(pid) })
		u.emit(EventDischargeStarted, hospitalID, p.ID, bed.ID)
		return nil
	})
}

// ExecuteDischarge finalizes a discharge: the patient record is
// retired and the vacated bed goes to cleaning.
func (s *Service) ExecuteDischarge(ctx context.Context, patientID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.CurrentBedID == nil {
			return errs.Validation("patient %s does not hold a bed", patientID)
		}
		bed, bctx, err := s.lockBed(ctx, *p.CurrentBedID)
		if err != nil {
			return err
		}
		if bed.State != registry.BedDischargeInProgress {
			return errs.IllegalState("bed", registry.BedDischargeInProgress, bed.State)
		}
		startCleaning(bed, now)
		if err := s.beds.Update(ctx, bed); err != nil {
			return err
		}
		if err := s.registry.ReevaluateRoomSex(ctx, bed.RoomID); err != nil {
			return err
		}

		p.CurrentBedID = nil
		p.CurrentWardType = nil
		p.Retired = true
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}
		u.emit(EventDischargeExecuted, bctx.Hospital.ID, p.ID, bed.ID)
		return nil
	})
}

// CancelDischarge aborts a discharge in progress and keeps the patient
// in the bed.
func (s *Service) CancelDischarge(ctx context.Context, patientID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.CurrentBedID == nil {
			return errs.Validation("patient %s does not hold a bed", patientID)
		}
		bed, bctx, err := s.lockBed(ctx, *p.CurrentBedID)
		if err != nil {
			return err
		}
		if bed.State != registry.BedDischargeInProgress {
			return errs.IllegalState("bed", registry.BedDischargeInProgress, bed.State)
		}
		bed.SetState(registry.BedOccupied, now)
		if err := s.beds.Update(ctx, bed); err != nil {
			return err
		}

		p.DischargeRequested = false
		p.DischargeReason = ""
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}
		u.emit(EventDischargeCancelled, bctx.Hospital.ID, p.ID, bed.ID)
		return nil
	})
}

// MarkDeceased parks the bed in the deceased state, remembering the
// prior state so a mistaken marking can be undone.
func (s *Service) MarkDeceased(ctx context.Context, patientID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.CurrentBedID == nil {
			return errs.Validation("patient %s does not hold a bed", patientID)
		}
		bed, bctx, err := s.lockBed(ctx, *p.CurrentBedID)
		if err != nil {
			return err
		}
		switch bed.State {
		case registry.BedOccupied, registry.BedDischargeSuggested, registry.BedAwaitingNewBed,
			registry.BedOutgoingTransfer, registry.BedTransferConfirmed, registry.BedAwaitingReferral,
			registry.BedDischargeInProgress:
		default:
			return errs.IllegalState("bed", registry.BedOccupied, bed.State)
		}
		prior := bed.State
		bed.SetState(registry.BedDeceased, now)
		bed.PriorState = &prior
		if err := s.beds.Update(ctx, bed); err != nil {
			return err
		}

		if p.OnWaitingList {
			leaveQueue(p)
			if err := s.patients.Update(ctx, p); err != nil {
				return err
			}
			hospitalID, pid := bctx.Hospital.ID, p.ID
			u.onCommit(func() { s.queues.Queue(hospitalID).Remove(pid) })
		}
		u.emit(EventDeceasedMarked, bctx.Hospital.ID, p.ID, bed.ID)
		return nil
	})
}

// UnmarkDeceased reverses a mistaken deceased marking, restoring the
// bed to whatever state it held before.
func (s *Service) UnmarkDeceased(ctx context.Context, patientID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.CurrentBedID == nil {
			return errs.Validation("patient %s does not hold a bed", patientID)
		}
		bed, bctx, err := s.lockBed(ctx, *p.CurrentBedID)
		if err != nil {
			return err
		}
		if bed.State != registry.BedDeceased {
			return errs.IllegalState("bed", registry.BedDeceased, bed.State)
		}
		prior := registry.BedOccupied
		if bed.PriorState != nil {
			prior = *bed.PriorState
		}
		bed.SetState(prior, now)
		bed.PriorState = nil
		if err := s.beds.Update(ctx, bed); err != nil {
			return err
		}
		u.emit(EventDeceasedUnmarked, bctx.Hospital.ID, p.ID, bed.ID)
		return nil
	})
}

// EgressDeceased releases the bed of a deceased patient to cleaning
// and retires the patient record.
func (s *Service) EgressDeceased(ctx context.Context, patientID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.CurrentBedID == nil {
			return errs.Validation("patient %s does not hold a bed", patientID)
		}
		bed, bctx, err := s.lockBed(ctx, *p.CurrentBedID)
		if err != nil {
			return err
		}
		if bed.State != registry.BedDeceased {
			return errs.IllegalState("bed", registry.BedDeceased, bed.State)
		}
		startCleaning(bed, now)
		bed.PriorState = nil
		if err := s.beds.Update(ctx, bed); err != nil {
			return err
		}
		if err := s.registry.ReevaluateRoomSex(ctx, bed.RoomID); err != nil {
			return err
		}

		p.CurrentBedID = nil
		p.CurrentWardType = nil
		p.Retired = true
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}
		u.emit(EventDeceasedEgressed, bctx.Hospital.ID, p.ID, bed.ID)
		return nil
	})
}
