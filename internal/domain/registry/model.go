// Package registry holds the physical bed model: hospitals, wards,
// rooms, and beds, together with the bed-state enum the transition
// engine drives.
package registry

import (
	"time"

	"github.com/google/uuid"
)

// WardType drives the compatibility rules for every bed in the ward.
type WardType string

const (
	WardICU             WardType = "icu"
	WardStepDown        WardType = "step_down"
	WardGeneralMedicine WardType = "general_medicine"
	WardIsolation       WardType = "isolation"
	WardSurgery         WardType = "surgery"
	WardObstetrics      WardType = "obstetrics"
	WardPediatrics      WardType = "pediatrics"
	WardMedSurg         WardType = "med_surg"
)

func (w WardType) String() string { return string(w) }

// Valid reports whether w is a known ward type.
func (w WardType) Valid() bool {
	switch w {
	case WardICU, WardStepDown, WardGeneralMedicine, WardIsolation,
		WardSurgery, WardObstetrics, WardPediatrics, WardMedSurg:
		return true
	}
	return false
}

// Sex is the patient/room sex marker used for shared-room pinning.
type Sex string

const (
	SexFemale Sex = "female"
	SexMale   Sex = "male"
)

func (s Sex) String() string { return string(s) }

// BedState is the bed state machine's state tag.
type BedState string

const (
	BedFree                BedState = "free"
	BedOccupied            BedState = "occupied"
	BedIncomingTransfer    BedState = "incoming_transfer"
	BedAwaitingNewBed      BedState = "awaiting_new_bed"
	BedOutgoingTransfer    BedState = "outgoing_transfer"
	BedTransferConfirmed   BedState = "transfer_confirmed"
	BedDischargeSuggested  BedState = "discharge_suggested"
	BedDischargeInProgress BedState = "discharge_in_progress"
	BedCleaning            BedState = "cleaning"
	BedBlocked             BedState = "blocked"
	BedAwaitingReferral    BedState = "awaiting_referral"
	BedReferralConfirmed   BedState = "referral_confirmed"
	BedDeceased            BedState = "deceased"
)

func (s BedState) String() string { return string(s) }

// Occupied reports whether a patient currently holds the bed in this
// state. incoming_transfer is excluded: the patient is en route but the
// bed is held through the destination reference, not cama_id.
func (s BedState) Occupied() bool {
	switch s {
	case BedOccupied, BedAwaitingNewBed, BedOutgoingTransfer, BedTransferConfirmed,
		BedDischargeSuggested, BedDischargeInProgress, BedAwaitingReferral,
		BedReferralConfirmed, BedDeceased:
		return true
	}
	return false
}

// Vacant reports whether the bed counts as empty for room-sex
// re-evaluation: only free and cleaning. A blocked bed holds the pin
// until it is unblocked.
func (s BedState) Vacant() bool {
	return s == BedFree || s == BedCleaning
}

// Hospital is one facility in the network.
type Hospital struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	IsCentral bool      `db:"is_central" json:"is_central"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Ward is a hospital department; its type drives compatibility.
type Ward struct {
	ID         uuid.UUID `db:"id" json:"id"`
	HospitalID uuid.UUID `db:"hospital_id" json:"hospital_id"`
	Name       string    `db:"name" json:"name"`
	Code       string    `db:"code" json:"code"`
	Type       WardType  `db:"type" json:"type"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Room is a physical room. A shared room is pinned to the sex of the
// first patient admitted and unpinned when it fully empties.
type Room struct {
	ID           uuid.UUID `db:"id" json:"id"`
	WardID       uuid.UUID `db:"ward_id" json:"ward_id"`
	Number       string    `db:"number" json:"number"`
	IsIndividual bool      `db:"is_individual" json:"is_individual"`
	AssignedSex  *Sex      `db:"assigned_sex" json:"assigned_sex,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Bed is the atomic allocatable unit.
type Bed struct {
	ID     uuid.UUID `db:"id" json:"id"`
	RoomID uuid.UUID `db:"room_id" json:"room_id"`
	Number string    `db:"number" json:"number"`
	// Letter disambiguates beds within a shared room; nil for
	// individual rooms.
	Letter     *string  `db:"letter" json:"letter,omitempty"`
	Identifier string   `db:"identifier" json:"identifier"`
	State      BedState `db:"state" json:"state"`
	// StatusMessage is free text surfaced to the UI alongside the state.
	StatusMessage  string     `db:"status_message" json:"status_message,omitempty"`
	StateChangedAt time.Time  `db:"state_changed_at" json:"state_changed_at"`
	// CleaningStartedAt is set while State is cleaning; the sweep
	// frees the bed once the configured duration elapses.
	CleaningStartedAt *time.Time `db:"cleaning_started_at" json:"cleaning_started_at,omitempty"`
	// DestinationBedID is the forward reference carried by a bed in
	// transfer_confirmed: the bed its occupant is moving to.
	DestinationBedID *uuid.UUID `db:"destination_bed_id" json:"destination_bed_id,omitempty"`
	// ReferredPatientID is set while the bed is reserved around an
	// inter-hospital referral.
	ReferredPatientID *uuid.UUID `db:"referred_patient_id" json:"referred_patient_id,omitempty"`
	// PriorState preserves the state a deceased marking replaced, so
	// an un-marking can restore it.
	PriorState *BedState `db:"prior_state" json:"prior_state,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// SetState records a state change and stamps the transition time.
func (b *Bed) SetState(s BedState, now time.Time) {
	b.State = s
	b.StateChangedAt = now
	if s != BedCleaning {
		b.CleaningStartedAt = nil
	}
}

// BedContext is a bed joined with its room, ward, and hospital — the
// unit the compatibility checker and the assignment scheduler operate on.
type BedContext struct {
	Bed      Bed      `json:"bed"`
	Room     Room     `json:"room"`
	Ward     Ward     `json:"ward"`
	Hospital Hospital `json:"hospital"`
}
