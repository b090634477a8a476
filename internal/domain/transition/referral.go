package transition

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/camanet/camanet/internal/domain/patient"
	"github.com/camanet/camanet/internal/domain/registry"
	"github.com/camanet/camanet/internal/platform/errs"
)

// RequestReferral opens a referral to another hospital. A held bed is
// parked in awaiting_referral until the destination answers.
func (s *Service) RequestReferral(ctx context.Context, patientID, destHospitalID uuid.UUID, reason string) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.Referral.State == patient.ReferralPending || p.Referral.State == patient.ReferralAccepted {
			return errs.Conflict("patient %s already has an active referral (%s)", patientID, p.Referral.State)
		}
		if destHospitalID == p.HospitalID {
			return errs.Validation("referral destination must be a different hospital")
		}
		if _, err := s.registry.GetHospital(ctx, destHospitalID); err != nil {
			return err
		}
		if reason == "" {
			return errs.Validation("referral reason is required")
		}

		origin := p.HospitalID
		p.Referral = patient.Referral{
			State:            patient.ReferralPending,
			HospitalID:       &destHospitalID,
			OriginHospitalID: &origin,
			Reason:           reason,
			OriginBedID:      p.CurrentBedID,
		}

		if p.CurrentBedID != nil {
			bed, _, err := s.lockBed(ctx, *p.CurrentBedID)
			if err != nil {
				return err
			}
			switch bed.State {
			case registry.BedOccupied, registry.BedAwaitingNewBed, registry.BedDischargeSuggested:
			default:
				return errs.IllegalState("bed", registry.BedOccupied, bed.State)
			}
			bed.SetState(registry.BedAwaitingReferral, now)
			bed.ReferredPatientID = &p.ID
			if err := s.beds.Update(ctx, bed); err != nil {
				return err
			}
		}

		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}
		u.emit(EventReferralRequested, origin, p.ID, deref(p.CurrentBedID))
		return nil
	})
}

// AcceptReferral moves the patient to the destination hospital's
// waiting list with a fresh score. The origin bed stays reserved in
// referral_confirmed until egress is confirmed.
func (s *Service) AcceptReferral(ctx context.Context, patientID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.Referral.State != patient.ReferralPending {
			return errs.IllegalState("referral", patient.ReferralPending, p.Referral.State)
		}

		if p.Referral.OriginBedID != nil {
			bed, _, err := s.lockBed(ctx, *p.Referral.OriginBedID)
			if err != nil {
				return err
			}
			if bed.State != registry.BedAwaitingReferral {
				return errs.IllegalState("origin bed", registry.BedAwaitingReferral, bed.State)
			}
			bed.SetState(registry.BedReferralConfirmed, now)
			if err := s.beds.Update(ctx, bed); err != nil {
				return err
			}
		}

		origin := p.HospitalID
		dest := *p.Referral.HospitalID
		p.HospitalID = dest
		p.Type = patient.TypeReferred
		p.Referral.State = patient.ReferralAccepted
		// In the destination hospital's frame the patient holds no bed
		// yet; the origin bed stays reachable through the referral
		// sub-record.
		p.CurrentBedID = nil
		p.CurrentWardType = nil
		p.OnWaitingList = true
		p.QueueState = patient.QueueWaiting
		p.WaitingSince = &now
		p.Score = s.scorer.Score(p, now)
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}

		pid, score := p.ID, p.Score
		u.onCommit(func() {
			s.queues.Queue(origin).Remove(pid)
			s.queues.Queue(dest).Add(pid, score, now)
		})
		u.emit(EventReferralAccepted, dest, p.ID, deref(p.Referral.OriginBedID))
		return nil
	})
}

// RejectReferral closes a pending referral and restores the origin bed.
func (s *Service) RejectReferral(ctx context.Context, patientID uuid.UUID, reason string) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.Referral.State != patient.ReferralPending {
			return errs.IllegalState("referral", patient.ReferralPending, p.Referral.State)
		}
		if reason == "" {
			return errs.Validation("rejection reason is required")
		}

		if p.Referral.OriginBedID != nil {
			bed, _, err := s.lockBed(ctx, *p.Referral.OriginBedID)
			if err != nil {
				return err
			}
			if bed.State != registry.BedAwaitingReferral {
				return errs.IllegalState("origin bed", registry.BedAwaitingReferral, bed.State)
			}
			bed.SetState(registry.BedOccupied, now)
			bed.ReferredPatientID = nil
			if err := s.beds.Update(ctx, bed); err != nil {
				return err
			}
		}

		p.Referral.State = patient.ReferralRejected
		p.Referral.RejectReason = reason
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}
		u.emit(EventReferralRejected, p.HospitalID, p.ID, deref(p.Referral.OriginBedID))
		return nil
	})
}

// ConfirmReferralEgress records that the patient has physically left
// the origin bed, which starts cleaning. Past this point the referral
// can no longer be cancelled.
func (s *Service) ConfirmReferralEgress(ctx context.Context, patientID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.Referral.State != patient.ReferralAccepted {
			return errs.IllegalState("referral", patient.ReferralAccepted, p.Referral.State)
		}
		if p.Referral.Egressed {
			return errs.Conflict("patient %s has already egressed", patientID)
		}

		if p.Referral.OriginBedID != nil {
			bed, _, err := s.lockBed(ctx, *p.Referral.OriginBedID)
			if err != nil {
				return err
			}
			if bed.State != registry.BedCleaning {
				startCleaning(bed, now)
				bed.ReferredPatientID = &p.ID
				if err := s.beds.Update(ctx, bed); err != nil {
					return err
				}
				if err := s.registry.ReevaluateRoomSex(ctx, bed.RoomID); err != nil {
					return err
				}
			}
		}

		p.Referral.Egressed = true
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}
		u.emit(EventReferralEgressed, deref(p.Referral.OriginHospitalID), p.ID, deref(p.Referral.OriginBedID))
		return nil
	})
}

// CancelReferralFromOrigin fully reverses an accepted referral before
// egress: the patient returns to the origin hospital and bed, and any
// destination reservation frees up.
func (s *Service) CancelReferralFromOrigin(ctx context.Context, patientID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.Referral.State != patient.ReferralAccepted {
			return errs.IllegalState("referral", patient.ReferralAccepted, p.Referral.State)
		}
		if p.Referral.Egressed {
			return errs.Conflict("patient %s has already egressed; the referral cannot be cancelled", patientID)
		}

		destHospital := p.HospitalID

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
			p.DestinationBedID = nil
		}

		originBedID := p.Referral.OriginBedID
		var originHospital uuid.UUID
		if p.Referral.OriginHospitalID != nil {
			originHospital = *p.Referral.OriginHospitalID
		}

		if originBedID != nil {
			origin, originCtx, err := s.lockBed(ctx, *originBedID)
			if err != nil {
				return err
			}
			if origin.State != registry.BedReferralConfirmed {
				return errs.IllegalState("origin bed", registry.BedReferralConfirmed, origin.State)
			}
			origin.SetState(registry.BedOccupied, now)
			origin.ReferredPatientID = nil
			origin.DestinationBedID = nil
			if err := s.beds.Update(ctx, origin); err != nil {
				return err
			}
			originHospital = originCtx.Hospital.ID
			p.CurrentBedID = originBedID
			p.CurrentWardType = &originCtx.Ward.Type
			p.Type = patient.TypeHospitalized
			leaveQueue(p)
		} else {
			// A bedless referral returns to the origin waiting list.
			p.QueueState = patient.QueueWaiting
		}

		p.HospitalID = originHospital
		p.Referral = patient.Referral{State: patient.ReferralNone}
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}

		pid := p.ID
		u.onCommit(func() { s.queues.Queue(destHospital).Remove(pid) })
		if originBedID == nil {
			score, entered := p.Score, now
			if p.WaitingSince != nil {
				entered = *p.WaitingSince
			}
			u.onCommit(func() { s.queues.Queue(originHospital).Add(pid, score, entered) })
		}
		u.emit(EventReferralCancelled, originHospital, p.ID, deref(originBedID))
		return nil
	})
}

// CancelReferralFromWaitingList backs an accepted referral out of the
// destination queue and returns it to pending at the origin.
func (s *Service) CancelReferralFromWaitingList(ctx context.Context, patientID uuid.UUID) error {
	return s.run(ctx, func(ctx context.Context, u *unit) error {
		now := time.Now().UTC()

		p, err := s.lockPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.Referral.State != patient.ReferralAccepted {
			return errs.IllegalState("referral", patient.ReferralAccepted, p.Referral.State)
		}
		if p.Referral.Egressed {
			return errs.Conflict("patient %s has already egressed; the referral cannot be cancelled", patientID)
		}

		destHospital := p.HospitalID

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
			p.DestinationBedID = nil
		}

		var originHospital uuid.UUID
		if p.Referral.OriginHospitalID != nil {
			originHospital = *p.Referral.OriginHospitalID
		}

		if p.Referral.OriginBedID != nil {
			origin, originCtx, err := s.lockBed(ctx, *p.Referral.OriginBedID)
			if err != nil {
				return err
			}
			if origin.State != registry.BedReferralConfirmed {
				return errs.IllegalState("origin bed", registry.BedReferralConfirmed, origin.State)
			}
			origin.SetState(registry.BedAwaitingReferral, now)
			origin.DestinationBedID = nil
			if err := s.beds.Update(ctx, origin); err != nil {
				return err
			}
			originHospital = originCtx.Hospital.ID
			p.CurrentBedID = p.Referral.OriginBedID
			p.CurrentWardType = &originCtx.Ward.Type
			p.Type = patient.TypeHospitalized
		}

		p.HospitalID = originHospital
		p.Referral.State = patient.ReferralPending
		p.Referral.ReservedBedID = nil
		p.Referral.Egressed = false
		leaveQueue(p)
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}

		pid := p.ID
		u.onCommit(func() { s.queues.Queue(destHospital).Remove(pid) })
		u.emit(EventReferralCancelled, originHospital, p.ID, deref(p.Referral.OriginBedID))
		return nil
	})
}

func deref(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
