package assign

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/camanet/camanet/internal/domain/compat"
	"github.com/camanet/camanet/internal/domain/patient"
	"github.com/camanet/camanet/internal/domain/registry"
	"github.com/camanet/camanet/internal/domain/transition"
	"github.com/camanet/camanet/internal/domain/waitlist"
	"github.com/camanet/camanet/internal/platform/errs"
)

// Service picks the best free bed for the highest-priority compatible
// patient, and offers referral candidates across the network.
type Service struct {
	beds        registry.BedRepository
	hospitals   registry.HospitalRepository
	patients    patient.Repository
	checker     *compat.Checker
	scorer      patient.Scorer
	queues      *waitlist.Registry
	transitions *transition.Service
	logger      zerolog.Logger
}

func NewService(
	beds registry.BedRepository,
	hospitals registry.HospitalRepository,
	patients patient.Repository,
	checker *compat.Checker,
	scorer patient.Scorer,
	queues *waitlist.Registry,
	transitions *transition.Service,
	logger zerolog.Logger,
) *Service {
	return &Service{
		beds:        beds,
		hospitals:   hospitals,
		patients:    patients,
		checker:     checker,
		scorer:      scorer,
		queues:      queues,
		transitions: transitions,
		logger:      logger,
	}
}

// Candidate is a rankable free bed.
type Candidate struct {
	Bed        registry.BedContext `json:"bed"`
	Preference float64             `json:"preference"`
}

// Result records one attempted automatic assignment.
type Result struct {
	PatientID uuid.UUID  `json:"patient_id"`
	BedID     *uuid.UUID `json:"bed_id,omitempty"`
	Assigned  bool       `json:"assigned"`
	Detail    string     `json:"detail,omitempty"`
}

// preference ranks a free bed for a patient. Ranking only decides
// which compatible bed is offered first; acceptance stays with the
// compatibility checker.
func (s *Service) preference(p *patient.Patient, bc *registry.BedContext) float64 {
	var score float64

	switch p.ComplexityTier() {
	case patient.ComplexityHigh:
		if bc.Ward.Type == registry.WardICU {
			score += 40
		}
	case patient.ComplexityMedium:
		if bc.Ward.Type == registry.WardStepDown {
			score += 40
		}
	case patient.ComplexityLow:
		switch bc.Ward.Type {
		case registry.WardGeneralMedicine, registry.WardSurgery:
			score += 30
		case registry.WardMedSurg:
			score += 20
		}
	default:
		switch bc.Ward.Type {
		case registry.WardGeneralMedicine, registry.WardSurgery, registry.WardMedSurg:
			score += 20
		case registry.WardObstetrics, registry.WardPediatrics:
			score += 10
		}
	}

	switch p.DiseaseType {
	case patient.DiseaseSurgical, patient.DiseaseTraumatological:
		if bc.Ward.Type == registry.WardSurgery {
			score += 15
		}
	case patient.DiseaseObstetric:
		if bc.Ward.Type == registry.WardObstetrics {
			score += 15
		}
	}
	if p.AgeCategory() == patient.AgePediatric && bc.Ward.Type == registry.WardPediatrics {
		score += 15
	}

	if bc.Room.AssignedSex != nil && *bc.Room.AssignedSex == p.Sex {
		score += 10
	} else if bc.Room.AssignedSex == nil {
		score += 5
	}

	if p.Isolation != patient.IsolationNone && bc.Room.IsIndividual {
		score += 12
	}
	// Keep isolation beds free for the patients who need them.
	if p.Isolation == patient.IsolationNone && bc.Ward.Type == registry.WardIsolation {
		score -= 20
	}

	return score
}

// rank returns the hospital's free beds ordered by descending
// preference, with the bed identifier as a deterministic tie-break.
func (s *Service) rank(ctx context.Context, p *patient.Patient, hospitalID uuid.UUID) ([]Candidate, error) {
	free, err := s.beds.FreeBeds(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(free))
	for _, bc := range free {
		candidates = append(candidates, Candidate{Bed: *bc, Preference: s.preference(p, bc)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Preference != candidates[j].Preference {
			return candidates[i].Preference > candidates[j].Preference
		}
		return candidates[i].Bed.Bed.Identifier < candidates[j].Bed.Bed.Identifier
	})
	return candidates, nil
}

// FindBedFor returns the best compatible free bed in the hospital, or
// nil when none qualifies.
func (s *Service) FindBedFor(ctx context.Context, p *patient.Patient, hospitalID uuid.UUID) (*registry.BedContext, error) {
	candidates, err := s.rank(ctx, p, hospitalID)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		bc := candidates[i].Bed
		if s.checker.IsCompatible(p, &bc) {
			return &bc, nil
		}
	}
	return nil, nil
}

// FindBedForPatient is the by-id convenience used by the handler.
func (s *Service) FindBedForPatient(ctx context.Context, patientID uuid.UUID) (*registry.BedContext, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if p.Retired {
		return nil, errs.Conflict("patient %s is retired", patientID)
	}
	return s.FindBedFor(ctx, p, p.HospitalID)
}

// RunAutomaticAssignment walks the hospital's full queue in priority
// order and assigns every patient a compatible free bed exists for.
// Stored scores are refreshed first so the time bonus stays current.
func (s *Service) RunAutomaticAssignment(ctx context.Context, hospitalID uuid.UUID) ([]Result, error) {
	now := time.Now().UTC()
	queue := s.queues.Queue(hospitalID)

	waiting, err := s.patients.Waiting(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	for _, p := range waiting {
		fresh := s.scorer.Score(p, now)
		if fresh != p.Score {
			p.Score = fresh
			if err := s.patients.Update(ctx, p); err != nil {
				return nil, err
			}
		}
		// Always re-assert the queue entry: an unchanged score still
		// means the row and the queue must agree.
		entered := now
		if p.WaitingSince != nil {
			entered = *p.WaitingSince
		}
		queue.Add(p.ID, fresh, entered)
	}

	var results []Result
	for _, pos := range queue.Ordered() {
		p, err := s.patients.GetByID(ctx, pos.PatientID)
		if err != nil {
			s.logger.Warn().Err(err).Str("patient_id", pos.PatientID.String()).Msg("queued patient missing, skipping")
			continue
		}
		if p.QueueState == patient.QueueAssigned || p.OxygenPause.Active {
			continue
		}

		bc, err := s.FindBedFor(ctx, p, hospitalID)
		if err != nil {
			return results, err
		}
		if bc == nil {
			results = append(results, Result{PatientID: p.ID, Detail: "no compatible free bed"})
			continue
		}
		if err := s.transitions.Assign(ctx, p.ID, bc.Bed.ID); err != nil {
			s.logger.Warn().Err(err).
				Str("patient_id", p.ID.String()).
				Str("bed_id", bc.Bed.ID.String()).
				Msg("automatic assignment failed")
			results = append(results, Result{PatientID: p.ID, Detail: err.Error()})
			continue
		}
		bedID := bc.Bed.ID
		results = append(results, Result{PatientID: p.ID, BedID: &bedID, Assigned: true, Detail: bc.Bed.Identifier})
	}
	return results, nil
}

// NetworkCandidate annotates a candidate bed with its hospital.
type NetworkCandidate struct {
	Hospital   registry.Hospital   `json:"hospital"`
	Bed        registry.BedContext `json:"bed"`
	Preference float64             `json:"preference"`
}

// SearchNetwork scans every other hospital for compatible free beds,
// ranked the same way as the local search. It only reports candidates;
// moving the patient is the referral flow's job.
func (s *Service) SearchNetwork(ctx context.Context, patientID uuid.UUID) ([]NetworkCandidate, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	hospitals, err := s.hospitals.List(ctx)
	if err != nil {
		return nil, err
	}

	var found []NetworkCandidate
	for _, h := range hospitals {
		if h.ID == p.HospitalID {
			continue
		}
		candidates, err := s.rank(ctx, p, h.ID)
		if err != nil {
			return nil, err
		}
		for i := range candidates {
			bc := candidates[i].Bed
			if s.checker.IsCompatible(p, &bc) {
				found = append(found, NetworkCandidate{Hospital: *h, Bed: bc, Preference: candidates[i].Preference})
			}
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].Preference != found[j].Preference {
			return found[i].Preference > found[j].Preference
		}
		return found[i].Bed.Bed.Identifier < found[j].Bed.Bed.Identifier
	})
	return found, nil
}
