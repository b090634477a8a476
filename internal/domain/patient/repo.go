package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository abstracts patient persistence.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// GetForUpdate loads the row with a row lock inside the ambient
	// transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, hospitalID uuid.UUID, includeRetired bool, limit, offset int) ([]*Patient, int, error)

	// Waiting returns active waiting-list members of one hospital.
	Waiting(ctx context.Context, hospitalID uuid.UUID) ([]*Patient, error)
	// AllWaiting returns active waiting-list members across hospitals.
	AllWaiting(ctx context.Context) ([]*Patient, error)
	// PausedSince returns patients whose oxygen pause started at or
	// before the cutoff and is still active.
	PausedSince(ctx context.Context, cutoff time.Time) ([]*Patient, error)

	ByCurrentBed(ctx context.Context, bedID uuid.UUID) (*Patient, error)
	ByDestinationBed(ctx context.Context, bedID uuid.UUID) (*Patient, error)
}
