package patient

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/camanet/camanet/internal/domain/registry"
	"github.com/camanet/camanet/internal/platform/errs"
)

// Scorer computes a waiting-list priority score for a patient.
// Implemented by the priority engine.
type Scorer interface {
	Score(p *Patient, now time.Time) float64
}

// Reevaluator is notified after a clinical update so bed fitness can be
// re-checked. priorTier is the oxygen tier before the update.
// Implemented by the transition engine; wired after construction.
type Reevaluator interface {
	ClinicalChanged(ctx context.Context, p *Patient, priorTier int) error
}

// Waitlist is the in-memory side of the waiting list. Every persisted
// write of the waiting fields must be paired with an Enqueue so the
// queue never falls behind the rows. Implemented by the waitlist
// registry.
type Waitlist interface {
	Enqueue(hospitalID, patientID uuid.UUID, score float64, enteredAt time.Time)
}

type Service struct {
	repo   Repository
	scorer Scorer
	queues Waitlist
	reeval Reevaluator
	// oxygenTiers maps requirement keywords to support tiers.
	oxygenTiers map[string]int
}

func NewService(repo Repository, scorer Scorer, oxygenTiers map[string]int, queues Waitlist) *Service {
	return &Service{repo: repo, scorer: scorer, oxygenTiers: oxygenTiers, queues: queues}
}

// SetReevaluator wires the transition engine in after both services
// exist.
func (s *Service) SetReevaluator(r Reevaluator) { s.reeval = r }

// Intake carries the fields accepted at patient creation.
type Intake struct {
	HospitalID   uuid.UUID     `json:"hospital_id"`
	Name         string        `json:"name"`
	NationalID   string        `json:"national_id"`
	Sex          string        `json:"sex"`
	Age          int           `json:"age"`
	Pregnant     bool          `json:"pregnant"`
	Diagnosis    string        `json:"diagnosis"`
	DiseaseType  DiseaseType   `json:"disease_type"`
	Isolation    IsolationType `json:"isolation"`
	Notes        string        `json:"notes"`
	DocumentRef  *string       `json:"document_ref"`
	ReqMinimal   []string      `json:"req_minimal"`
	ReqLow       []string      `json:"req_low"`
	ReqStepDown  []string      `json:"req_step_down"`
	ReqICU       []string      `json:"req_icu"`
	SpecialCases []string      `json:"special_cases"`
	Type         Type          `json:"type"`
}

// Create registers a new patient and places them on the waiting list
// immediately. Only emergency and outpatient intakes are accepted;
// hospitalized and referred patients come into existence through
// transitions, never through intake.
func (s *Service) Create(ctx context.Context, in Intake) (*Patient, error) {
	if in.Name == "" {
		return nil, errs.Validation("name is required")
	}
	if in.HospitalID == uuid.Nil {
		return nil, errs.Validation("hospital_id is required")
	}
	if in.Age < 0 {
		return nil, errs.Validation("age must not be negative")
	}
	switch in.Type {
	case TypeEmergency, TypeOutpatient:
	case TypeHospitalized, TypeReferred:
		return nil, errs.Validation("patients of type %s cannot be created directly", in.Type)
	default:
		return nil, errs.Validation("unknown patient type %q", in.Type)
	}
	sex := registrySex(in.Sex)
	if sex == "" {
		return nil, errs.Validation("sex must be female or male")
	}
	if in.Isolation == "" {
		in.Isolation = IsolationNone
	}
	if in.DiseaseType == "" {
		in.DiseaseType = DiseaseOther
	}

	now := time.Now().UTC()
	p := &Patient{
		HospitalID:   in.HospitalID,
		Name:         in.Name,
		NationalID:   in.NationalID,
		Sex:          sex,
		Age:          in.Age,
		Pregnant:     in.Pregnant,
		Diagnosis:    in.Diagnosis,
		DiseaseType:  in.DiseaseType,
		Isolation:    in.Isolation,
		Notes:        in.Notes,
		DocumentRef:  in.DocumentRef,
		ReqMinimal:   in.ReqMinimal,
		ReqLow:       in.ReqLow,
		ReqStepDown:  in.ReqStepDown,
		ReqICU:       in.ReqICU,
		SpecialCases: in.SpecialCases,
		Type:         in.Type,
		OnWaitingList: true,
		QueueState:    QueueWaiting,
		WaitingSince:  &now,
		Referral:      Referral{State: ReferralNone},
	}
	p.Score = s.scorer.Score(p, now)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.queues.Enqueue(p.HospitalID, p.ID, p.Score, now)
	return p, nil
}

// ClinicalUpdate carries the mutable clinical fields. Nil slices leave
// the corresponding list unchanged; pass an empty slice to clear one.
type ClinicalUpdate struct {
	Diagnosis    *string        `json:"diagnosis"`
	DiseaseType  *DiseaseType   `json:"disease_type"`
	Isolation    *IsolationType `json:"isolation"`
	Notes        *string        `json:"notes"`
	Pregnant     *bool          `json:"pregnant"`
	ReqMinimal   []string       `json:"req_minimal"`
	ReqLow       []string       `json:"req_low"`
	ReqStepDown  []string       `json:"req_step_down"`
	ReqICU       []string       `json:"req_icu"`
	SpecialCases []string       `json:"special_cases"`
}

// UpdateClinical applies a clinical update, refreshes the stored score
// for waiting patients, and hands the result to the reevaluator so bed
// fitness and oxygen de-escalation can be checked.
func (s *Service) UpdateClinical(ctx context.Context, id uuid.UUID, up ClinicalUpdate) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Retired {
		return nil, errs.Conflict("patient %s is retired", id)
	}
	priorTier := p.OxygenTier(s.oxygenTiers)

	if up.Diagnosis != nil {
		p.Diagnosis = *up.Diagnosis
	}
	if up.DiseaseType != nil {
		p.DiseaseType = *up.DiseaseType
	}
	if up.Isolation != nil {
		p.Isolation = *up.Isolation
	}
	if up.Notes != nil {
		p.Notes = *up.Notes
	}
	if up.Pregnant != nil {
		p.Pregnant = *up.Pregnant
	}
	if up.ReqMinimal != nil {
		p.ReqMinimal = up.ReqMinimal
	}
	if up.ReqLow != nil {
		p.ReqLow = up.ReqLow
	}
	if up.ReqStepDown != nil {
		p.ReqStepDown = up.ReqStepDown
	}
	if up.ReqICU != nil {
		p.ReqICU = up.ReqICU
	}
	if up.SpecialCases != nil {
		p.SpecialCases = up.SpecialCases
	}

	now := time.Now().UTC()
	if p.OnWaitingList {
		p.Score = s.scorer.Score(p, now)
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	if p.OnWaitingList {
		entered := now
		if p.WaitingSince != nil {
			entered = *p.WaitingSince
		}
		s.queues.Enqueue(p.HospitalID, p.ID, p.Score, entered)
	}
	if s.reeval != nil {
		if err := s.reeval.ClinicalChanged(ctx, p, priorTier); err != nil {
			return nil, err
		}
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, hospitalID uuid.UUID, includeRetired bool, limit, offset int) ([]*Patient, int, error) {
	if hospitalID == uuid.Nil {
		return nil, 0, errs.Validation("hospital_id is required")
	}
	return s.repo.List(ctx, hospitalID, includeRetired, limit, offset)
}

func (s *Service) Waiting(ctx context.Context, hospitalID uuid.UUID) ([]*Patient, error) {
	return s.repo.Waiting(ctx, hospitalID)
}

// registrySex normalizes the wire value; empty means invalid.
func registrySex(v string) registry.Sex {
	switch registry.Sex(v) {
	case registry.SexFemale, registry.SexMale:
		return registry.Sex(v)
	}
	return ""
}
