package transition

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/camanet/camanet/internal/domain/patient"
	"github.com/camanet/camanet/internal/domain/registry"
	"github.com/camanet/camanet/internal/platform/errs"
)

// Assign reserves a free bed for a waiting patient. The bed moves to
// incoming_transfer; a bed the patient already holds moves to
// transfer_confirmed with a forward reference to the new bed.
func (s *Service) Assign(ctx context.Context, patientID, bedID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		bed, bc, err := s.lockBed(ctx, bedID)
		if err != nil {
			return err
		}
		if bed.State != registry.BedFree {
			return errs.IllegalState("bed", registry.BedFree, bed.State)
		}

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if !p.OnWaitingList {
			return errs.Validation("patient %s is not on the waiting list", patientID)
		}
		if p.QueueState == patient.QueueAssigned {
			return errs.Conflict("patient %s already has an assigned bed", patientID)
		}
		if ok, reasons := s.checker.Evaluate(p, bc); !ok {
			return incompatibleErr(reasons)
		}

		bed.SetState(registry.BedIncomingTransfer, now)
		if err := s.beds.Update(ctx, bed); err != nil {
			return err
		}

		// A hospitalized patient keeps their current bed reserved with
		// a forward reference until the transfer completes.
		if p.CurrentBedID != nil {
			prior, err := s.beds.GetForUpdate(ctx, *p.CurrentBedID)
			if err != nil {
				return err
			}
			prior.SetState(registry.BedTransferConfirmed, now)
			prior.DestinationBedID = &bed.ID
			if err := s.beds.Update(ctx, prior); err != nil {
				return err
			}
		}

		// An accepted referral keeps its origin bed in its referral
		// state; only the forward reference and message move on.
		if p.Referral.State == patient.ReferralAccepted && p.Referral.OriginBedID != nil {
			origin, err := s.beds.GetForUpdate(ctx, *p.Referral.OriginBedID)
			if err != nil {
				return err
			}
			origin.DestinationBedID = &bed.ID
			origin.StatusMessage = "referred patient assigned a destination bed"
			if err := s.beds.Update(ctx, origin); err != nil {
				return err
			}
		}

		p.DestinationBedID = &bed.ID
		if p.Referral.State == patient.ReferralAccepted {
			p.Referral.ReservedBedID = &bed.ID
		}
		p.QueueState = patient.QueueAssigned
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}

		if err := s.registry.PinRoomSex(ctx, bc.Room.ID, p.Sex); err != nil {
			return err
		}

		u.emit(EventAssigned, bc.Hospital.ID, p.ID, bed.ID)
		return nil
	})
}

// CompleteTransfer moves the patient into their destination bed,
// re-checking compatibility on arrival. The vacated bed starts
// cleaning.
func (s *Service) CompleteTransfer(ctx context.Context, patientID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.DestinationBedID == nil {
			return errs.Validation("patient %s has no destination bed", patientID)
		}

		dest, destCtx, err := s.lockBed(ctx, *p.DestinationBedID)
		if err != nil {
			return err
		}
		if dest.State != registry.BedIncomingTransfer {
			return errs.IllegalState("destination bed", registry.BedIncomingTransfer, dest.State)
		}

		// Arrival re-check: the patient stays in the bed either way,
		// but an incompatible arrival is flagged for a new search.
		if s.checker.IsCompatible(p, destCtx) {
			dest.SetState(registry.BedOccupied, now)
		} else {
			dest.SetState(registry.BedAwaitingNewBed, now)
			p.OxygenPause.RequiresNewBed = true
		}
		if err := s.beds.Update(ctx, dest); err != nil {
			return err
		}

		if p.CurrentBedID != nil {
			origin, err := s.beds.GetForUpdate(ctx, *p.CurrentBedID)
			if err != nil {
				return err
			}
			startCleaning(origin, now)
			if err := s.beds.Update(ctx, origin); err != nil {
				return err
			}
			if err := s.registry.ReevaluateRoomSex(ctx, origin.RoomID); err != nil {
				return err
			}
		}

		completedReferral := p.Referral.State == patient.ReferralAccepted
		if completedReferral && p.Referral.OriginBedID != nil {
			refOrigin, err := s.beds.GetForUpdate(ctx, *p.Referral.OriginBedID)
			if err != nil {
				return err
			}
			if refOrigin.State != registry.BedCleaning {
				startCleaning(refOrigin, now)
				if err := s.beds.Update(ctx, refOrigin); err != nil {
					return err
				}
				if err := s.registry.ReevaluateRoomSex(ctx, refOrigin.RoomID); err != nil {
					return err
				}
			}
		}

		hospitalID := p.HospitalID
		p.CurrentBedID = &dest.ID
		p.CurrentWardType = &destCtx.Ward.Type
		p.DestinationBedID = nil
		leaveQueue(p)
		if completedReferral {
			p.Referral = patient.Referral{State: patient.ReferralNone}
		}
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}

		pid := p.ID
		u.onCommit(func() { s.queues.Queue(hospitalID).Remove(pid) })
		u.emit(EventTransferCompleted, destCtx.Hospital.ID, p.ID, dest.ID)
		return nil
	})
}

// CancelTransfer abandons a pending assignment before completion. The
// destination bed frees up; a held origin bed returns to occupied, or
// to awaiting_new_bed when the cancellation comes from the origin side.
func (s *Service) CancelTransfer(ctx context.Context, patientID uuid.UUID, fromOrigin bool) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.DestinationBedID == nil {
			return errs.Validation("patient %s has no pending transfer", patientID)
		}

		dest, destCtx, err := s.lockBed(ctx, *p.DestinationBedID)
		if err != nil {
			return err
		}
		if dest.State != registry.BedIncomingTransfer {
			return errs.IllegalState("destination bed", registry.BedIncomingTransfer, dest.State)
		}

		dest.SetState(registry.BedFree, now)
		if err := s.beds.Update(ctx, dest); err != nil {
			return err
		}
		if err := s.registry.ReevaluateRoomSex(ctx, dest.RoomID); err != nil {
			return err
		}

		if p.CurrentBedID != nil {
			origin, err := s.beds.GetForUpdate(ctx, *p.CurrentBedID)
			if err != nil {
				return err
			}
			if fromOrigin {
				origin.SetState(registry.BedAwaitingNewBed, now)
			} else {
				origin.SetState(registry.BedOccupied, now)
			}
			origin.DestinationBedID = nil
			if err := s.beds.Update(ctx, origin); err != nil {
				return err
			}
		}

		hospitalID := p.HospitalID
		p.DestinationBedID = nil
		p.Referral.ReservedBedID = nil
		leaveQueue(p)
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}

		pid := p.ID
		u.onCommit(func() { s.queues.Queue(hospitalID).Remove(pid) })
		u.emit(EventTransferCancelled, destCtx.Hospital.ID, p.ID, dest.ID)
		return nil
	})
}

// CancelConfirmedTransfer is the origin-side cancellation after the
// destination was already reserved: the destination frees up and the
// origin bed is flagged as needing a new search.
func (s *Service) CancelConfirmedTransfer(ctx context.Context, patientID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.CurrentBedID == nil {
			return errs.Validation("patient %s holds no bed", patientID)
		}

		origin, originCtx, err := s.lockBed(ctx, *p.CurrentBedID)
		if err != nil {
			return err
		}
		if origin.State != registry.BedTransferConfirmed {
			return errs.IllegalState("origin bed", registry.BedTransferConfirmed, origin.State)
		}

		if p.DestinationBedID != nil {
			dest, err := s.beds.GetForUpdate(ctx, *p.DestinationBedID)
			if err != nil {
				return err
			}
			dest.SetState(registry.BedFree, now)
			if err := s.beds.Update(ctx, dest); err != nil {
				return err
			}
			if err := s.registry.ReevaluateRoomSex(ctx, dest.RoomID); err != nil {
				return err
			}
		}

		origin.SetState(registry.BedAwaitingNewBed, now)
		origin.DestinationBedID = nil
		if err := s.beds.Update(ctx, origin); err != nil {
			return err
		}

		p.DestinationBedID = nil
		p.OxygenPause.RequiresNewBed = true
		p.QueueState = patient.QueueWaiting
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}

		u.emit(EventTransferCancelled, originCtx.Hospital.ID, p.ID, origin.ID)
		return nil
	})
}

// StartSearch puts a bed holder on the waiting list for a new bed.
func (s *Service) StartSearch(ctx context.Context, patientID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.CurrentBedID == nil {
			return errs.Validation("patient %s holds no bed to search from", patientID)
		}
		if p.OxygenPause.Active {
			return errs.Validation("patient %s is in an oxygen de-escalation pause", patientID)
		}
		if p.OnWaitingList {
			return errs.Conflict("patient %s is already searching", patientID)
		}

		bed, bc, err := s.lockBed(ctx, *p.CurrentBedID)
		if err != nil {
			return err
		}
		switch bed.State {
		case registry.BedOccupied, registry.BedAwaitingNewBed, registry.BedDischargeSuggested:
		default:
			return errs.IllegalState("bed", registry.BedOccupied, bed.State)
		}

		bed.SetState(registry.BedOutgoingTransfer, now)
		if err := s.beds.Update(ctx, bed); err != nil {
			return err
		}

		p.OxygenPause = patient.OxygenPause{}
		p.OnWaitingList = true
		p.QueueState = patient.QueueSearching
		p.WaitingSince = &now
		p.Score = s.scorer.Score(p, now)
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}

		hospitalID := p.HospitalID
		pid, score := p.ID, p.Score
		u.onCommit(func() { s.queues.Queue(hospitalID).Add(pid, score, now) })
		u.emit(EventSearchStarted, bc.Hospital.ID, p.ID, bed.ID)
		return nil
	})
}

// CancelSearch takes a searching patient off the waiting list; the bed
// is left flagged as still needing review.
func (s *Service) CancelSearch(ctx context.Context, patientID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.QueueState != patient.QueueSearching {
			return errs.Validation("patient %s is not searching (queue state %q)", patientID, p.QueueState)
		}
		if p.CurrentBedID == nil {
			return errs.Validation("patient %s holds no bed", patientID)
		}

		bed, bc, err := s.lockBed(ctx, *p.CurrentBedID)
		if err != nil {
			return err
		}
		bed.SetState(registry.BedAwaitingNewBed, now)
		if err := s.beds.Update(ctx, bed); err != nil {
			return err
		}

		hospitalID := p.HospitalID
		leaveQueue(p)
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}

		pid := p.ID
		u.onCommit(func() { s.queues.Queue(hospitalID).Remove(pid) })
		u.emit(EventSearchCancelled, bc.Hospital.ID, p.ID, bed.ID)
		return nil
	})
}
