package patient

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/camanet/camanet/internal/platform/errs"
)

type mockRepo struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, errs.NotFound("patient not found")
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[p.ID]; !ok {
		return errs.NotFound("patient not found")
	}
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) List(_ context.Context, hospitalID uuid.UUID, includeRetired bool, limit, offset int) ([]*Patient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Patient
	for _, p := range m.patients {
		if p.HospitalID != hospitalID {
			continue
		}
		if p.Retired && !includeRetired {
			continue
		}
		cp := *p
		all = append(all, &cp)
	}
	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (m *mockRepo) Waiting(_ context.Context, hospitalID uuid.UUID) ([]*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Patient
	for _, p := range m.patients {
		if p.HospitalID == hospitalID && p.OnWaitingList && !p.Retired {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) AllWaiting(_ context.Context) ([]*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Patient
	for _, p := range m.patients {
		if p.OnWaitingList && !p.Retired {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) PausedSince(_ context.Context, cutoff time.Time) ([]*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Patient
	for _, p := range m.patients {
		if p.OxygenPause.Active && p.OxygenPause.StartAt != nil && !p.OxygenPause.StartAt.After(cutoff) && !p.Retired {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) ByCurrentBed(_ context.Context, bedID uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.CurrentBedID != nil && *p.CurrentBedID == bedID && !p.Retired {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errs.NotFound("patient not found")
}

func (m *mockRepo) ByDestinationBed(_ context.Context, bedID uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.DestinationBedID != nil && *p.DestinationBedID == bedID && !p.Retired {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errs.NotFound("patient not found")
}

// fixedScorer returns a constant score.
type fixedScorer struct{ score float64 }

func (f fixedScorer) Score(*Patient, time.Time) float64 { return f.score }

// recordingReevaluator captures the last clinical-change callback.
type recordingReevaluator struct {
	called    bool
	priorTier int
	patientID uuid.UUID
}

func (r *recordingReevaluator) ClinicalChanged(_ context.Context, p *Patient, priorTier int) error {
	r.called = true
	r.priorTier = priorTier
	r.patientID = p.ID
	return nil
}

// mockWaitlist records queue pairings in call order.
type mockWaitlist struct {
	calls []enqueueCall
}

type enqueueCall struct {
	hospitalID uuid.UUID
	patientID  uuid.UUID
	score      float64
	enteredAt  time.Time
}

func (m *mockWaitlist) Enqueue(hospitalID, patientID uuid.UUID, score float64, enteredAt time.Time) {
	m.calls = append(m.calls, enqueueCall{hospitalID, patientID, score, enteredAt})
}

func (m *mockWaitlist) last() (enqueueCall, bool) {
	if len(m.calls) == 0 {
		return enqueueCall{}, false
	}
	return m.calls[len(m.calls)-1], true
}
