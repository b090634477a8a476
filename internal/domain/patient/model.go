// Package patient holds the patient model: demographics, clinical
// requirement lists, the derived complexity tier, waiting-list fields,
// and the referral and oxygen-pause sub-records the transition engine
// drives.
package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/camanet/camanet/internal/domain/registry"
)

// Type is the patient's intake type. Only emergency and outpatient
// patients are created directly; hospitalized and referred are the
// results of transitions.
type Type string

const (
	TypeEmergency    Type = "emergency"
	TypeOutpatient   Type = "outpatient"
	TypeHospitalized Type = "hospitalized"
	TypeReferred     Type = "referred"
)

func (t Type) String() string { return string(t) }

func (t Type) Valid() bool {
	switch t {
	case TypeEmergency, TypeOutpatient, TypeHospitalized, TypeReferred:
		return true
	}
	return false
}

// AgeCategory buckets patients for ward matching.
type AgeCategory string

const (
	AgePediatric AgeCategory = "pediatric" // under 15
	AgeAdult     AgeCategory = "adult"     // 15-59
	AgeElderly   AgeCategory = "elderly"   // 60 and over
)

// DiseaseType feeds the disease-vs-ward compatibility tables.
type DiseaseType string

const (
	DiseaseRespiratory     DiseaseType = "respiratory"
	DiseaseCardiac         DiseaseType = "cardiac"
	DiseaseNeurological    DiseaseType = "neurological"
	DiseaseDigestive       DiseaseType = "digestive"
	DiseaseRenal           DiseaseType = "renal"
	DiseaseMetabolic       DiseaseType = "metabolic"
	DiseaseInfectious      DiseaseType = "infectious"
	DiseaseOncological     DiseaseType = "oncological"
	DiseaseSurgical        DiseaseType = "surgical"
	DiseaseTraumatological DiseaseType = "traumatological"
	DiseaseObstetric       DiseaseType = "obstetric"
	DiseaseOther           DiseaseType = "other"
)

func (d DiseaseType) String() string { return string(d) }

// IsolationType classifies the isolation precautions a patient needs.
type IsolationType string

const (
	IsolationNone      IsolationType = "none"
	IsolationContact   IsolationType = "contact"
	IsolationDroplet   IsolationType = "droplet"
	IsolationAirborne  IsolationType = "airborne"
	IsolationProtected IsolationType = "protected"
	IsolationSpecial   IsolationType = "special"
)

func (i IsolationType) String() string { return string(i) }

// ComplexityTier is derived from the requirement lists, never stored.
type ComplexityTier string

const (
	ComplexityNone   ComplexityTier = "none"
	ComplexityLow    ComplexityTier = "low"
	ComplexityMedium ComplexityTier = "medium"
	ComplexityHigh   ComplexityTier = "high"
)

func (c ComplexityTier) String() string { return string(c) }

// QueueState is the waiting-list sub-state.
type QueueState string

const (
	QueueWaiting   QueueState = "waiting"
	QueueSearching QueueState = "searching"
	QueueAssigned  QueueState = "assigned"
)

func (q QueueState) String() string { return string(q) }

// ReferralState is the inter-hospital referral sub-state.
type ReferralState string

const (
	ReferralNone     ReferralState = "none"
	ReferralPending  ReferralState = "pending"
	ReferralAccepted ReferralState = "accepted"
	ReferralRejected ReferralState = "rejected"
)

func (r ReferralState) String() string { return string(r) }

// Referral is the inter-hospital referral sub-record.
type Referral struct {
	State      ReferralState `db:"referral_state" json:"state"`
	HospitalID *uuid.UUID    `db:"referral_hospital_id" json:"hospital_id,omitempty"`
	// OriginHospitalID is recorded at request time so cancellation can
	// restore the patient after acceptance moved them.
	OriginHospitalID *uuid.UUID `db:"referral_origin_hospital_id" json:"origin_hospital_id,omitempty"`
	Reason        string        `db:"referral_reason" json:"reason,omitempty"`
	RejectReason  string        `db:"referral_reject_reason" json:"reject_reason,omitempty"`
	OriginBedID   *uuid.UUID    `db:"referral_origin_bed_id" json:"origin_bed_id,omitempty"`
	ReservedBedID *uuid.UUID    `db:"referral_reserved_bed_id" json:"reserved_bed_id,omitempty"`
	// Egressed records that the patient has physically left the origin
	// bed. Cancellation eligibility checks this flag, not the origin
	// bed's state.
	Egressed bool `db:"referral_egressed" json:"egressed"`
}

// OxygenPause is the de-escalation grace-period sub-record.
type OxygenPause struct {
	Active  bool       `db:"oxygen_pause_active" json:"active"`
	StartAt *time.Time `db:"oxygen_pause_start" json:"start_at,omitempty"`
	// PriorTier is the oxygen tier recorded before the drop that
	// started the pause.
	PriorTier int `db:"oxygen_prior_tier" json:"prior_tier"`
	// RequiresNewBed is the pending re-evaluation outcome, applied
	// when the pause elapses or is skipped.
	RequiresNewBed bool `db:"oxygen_requires_new_bed" json:"requires_new_bed"`
	// DischargeEligible is the pending discharge-suggestion outcome.
	DischargeEligible bool `db:"oxygen_discharge_eligible" json:"discharge_eligible"`
}

// Patient is the full patient row.
type Patient struct {
	ID         uuid.UUID    `db:"id" json:"id"`
	HospitalID uuid.UUID    `db:"hospital_id" json:"hospital_id"`
	Name       string       `db:"name" json:"name"`
	NationalID string       `db:"national_id" json:"national_id"`
	Sex        registry.Sex `db:"sex" json:"sex"`
	Age        int          `db:"age" json:"age"`
	Pregnant   bool         `db:"pregnant" json:"pregnant"`

	Diagnosis   string        `db:"diagnosis" json:"diagnosis"`
	DiseaseType DiseaseType   `db:"disease_type" json:"disease_type"`
	Isolation   IsolationType `db:"isolation" json:"isolation"`
	Notes       string        `db:"notes" json:"notes,omitempty"`
	DocumentRef *string       `db:"document_ref" json:"document_ref,omitempty"`

	// The four requirement lists; the complexity tier is always
	// re-derived from them.
	ReqMinimal   []string `db:"req_minimal" json:"req_minimal"`
	ReqLow       []string `db:"req_low" json:"req_low"`
	ReqStepDown  []string `db:"req_step_down" json:"req_step_down"`
	ReqICU       []string `db:"req_icu" json:"req_icu"`
	SpecialCases []string `db:"special_cases" json:"special_cases"`

	Type Type `db:"type" json:"type"`

	CurrentBedID     *uuid.UUID `db:"current_bed_id" json:"current_bed_id,omitempty"`
	DestinationBedID *uuid.UUID `db:"destination_bed_id" json:"destination_bed_id,omitempty"`
	// CurrentWardType mirrors the ward of the current bed. The
	// transition engine maintains it so scoring stays a pure function
	// of the patient row.
	CurrentWardType *registry.WardType `db:"current_ward_type" json:"current_ward_type,omitempty"`

	OnWaitingList bool       `db:"on_waiting_list" json:"on_waiting_list"`
	QueueState    QueueState `db:"queue_state" json:"queue_state,omitempty"`
	Score         float64    `db:"score" json:"score"`
	WaitingSince  *time.Time `db:"waiting_since" json:"waiting_since,omitempty"`

	Referral    Referral    `json:"referral"`
	OxygenPause OxygenPause `json:"oxygen_pause"`

	DischargeRequested bool   `db:"discharge_requested" json:"discharge_requested"`
	DischargeReason    string `db:"discharge_reason" json:"discharge_reason,omitempty"`

	// Retired marks patients logically removed on completed discharge
	// or deceased egress; rows are kept for audit.
	Retired bool `db:"retired" json:"retired"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AgeCategory buckets the patient's age.
func (p *Patient) AgeCategory() AgeCategory {
	switch {
	case p.Age < 15:
		return AgePediatric
	case p.Age < 60:
		return AgeAdult
	default:
		return AgeElderly
	}
}

// ComplexityTier derives the tier as the max over non-empty requirement
// lists: ICU beats step-down beats low; the minimal list never raises
// the tier above none.
func (p *Patient) ComplexityTier() ComplexityTier {
	switch {
	case len(p.ReqICU) > 0:
		return ComplexityHigh
	case len(p.ReqStepDown) > 0:
		return ComplexityMedium
	case len(p.ReqLow) > 0:
		return ComplexityLow
	default:
		return ComplexityNone
	}
}

// EffectiveType is the type used for priority scoring: a patient
// currently holding a bed while searching for another is always scored
// as hospitalized, whatever its stored intake type.
func (p *Patient) EffectiveType() Type {
	if p.CurrentBedID != nil {
		return TypeHospitalized
	}
	return p.Type
}

// AllRequirements returns every requirement across the four lists.
func (p *Patient) AllRequirements() []string {
	out := make([]string, 0, len(p.ReqMinimal)+len(p.ReqLow)+len(p.ReqStepDown)+len(p.ReqICU))
	out = append(out, p.ReqMinimal...)
	out = append(out, p.ReqLow...)
	out = append(out, p.ReqStepDown...)
	out = append(out, p.ReqICU...)
	return out
}

// HasRequirementKeyword reports whether any requirement contains any of
// the keywords, case-insensitive.
func (p *Patient) HasRequirementKeyword(keywords []string) bool {
	for _, req := range p.AllRequirements() {
		lower := strings.ToLower(req)
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}

// OxygenTier derives the patient's current oxygen-support tier as the
// max tier of any configured keyword present in the requirement lists.
func (p *Patient) OxygenTier(keywordTiers map[string]int) int {
	tier := 0
	for _, req := range p.AllRequirements() {
		lower := strings.ToLower(req)
		for kw, t := range keywordTiers {
			if strings.Contains(lower, strings.ToLower(kw)) && t > tier {
				tier = t
			}
		}
	}
	return tier
}

// DischargeEligible reports whether the patient has no remaining
// requirements, no special cases, and no airborne isolation — the
// oxygen-pause resolution's discharge criterion.
func (p *Patient) DischargeEligible() bool {
	return len(p.ReqLow) == 0 && len(p.ReqStepDown) == 0 && len(p.ReqICU) == 0 &&
		len(p.SpecialCases) == 0 && p.Isolation != IsolationAirborne
}

// WaitedHours returns the hours the patient has spent on the waiting
// list at the given instant; zero when not waiting.
func (p *Patient) WaitedHours(now time.Time) float64 {
	if !p.OnWaitingList || p.WaitingSince == nil {
		return 0
	}
	return now.Sub(*p.WaitingSince).Hours()
}
