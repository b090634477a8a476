package waitlist

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/camanet/camanet/internal/domain/patient"
)

// Registry holds one queue per hospital, created lazily on first use.
type Registry struct {
	mu     sync.Mutex
	queues map[uuid.UUID]*Queue
	repo   patient.Repository
	scorer patient.Scorer
	logger zerolog.Logger
}

func NewRegistry(repo patient.Repository, scorer patient.Scorer, logger zerolog.Logger) *Registry {
	return &Registry{
		queues: make(map[uuid.UUID]*Queue),
		repo:   repo,
		scorer: scorer,
		logger: logger,
	}
}

// Queue returns the hospital's queue, creating it on first access.
func (r *Registry) Queue(hospitalID uuid.UUID) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[hospitalID]
	if !ok {
		q = NewQueue()
		r.queues[hospitalID] = q
	}
	return q
}

// Enqueue adds or re-scores one patient on the hospital's queue. This
// is the pairing half of a persisted waiting-field write: intake and
// clinical updates call it right after the row is saved.
func (r *Registry) Enqueue(hospitalID, patientID uuid.UUID, score float64, enteredAt time.Time) {
	r.Queue(hospitalID).Add(patientID, score, enteredAt)
}

// Rebuild repopulates every queue from persisted waiting patients.
// Called once at startup; ordering is re-derived from fresh scores, not
// from scan order.
func (r *Registry) Rebuild(ctx context.Context) error {
	waiting, err := r.repo.AllWaiting(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	r.mu.Lock()
	r.queues = make(map[uuid.UUID]*Queue)
	r.mu.Unlock()

	for _, p := range waiting {
		entered := now
		if p.WaitingSince != nil {
			entered = *p.WaitingSince
		}
		r.Queue(p.HospitalID).Add(p.ID, r.scorer.Score(p, now), entered)
	}
	r.logger.Info().Int("patients", len(waiting)).Msg("waiting queues rebuilt")
	return nil
}
