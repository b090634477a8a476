package registry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type HospitalRepository interface {
	Create(ctx context.Context, h *Hospital) error
	GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error)
	GetByCode(ctx context.Context, code string) (*Hospital, error)
	List(ctx context.Context) ([]*Hospital, error)
}

type WardRepository interface {
	Create(ctx context.Context, w *Ward) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ward, error)
	ListByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*Ward, error)
}

type RoomRepository interface {
	Create(ctx context.Context, r *Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*Room, error)
	Update(ctx context.Context, r *Room) error
	ListByWard(ctx context.Context, wardID uuid.UUID) ([]*Room, error)
}

type BedRepository interface {
	Create(ctx context.Context, b *Bed) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bed, error)
	// GetForUpdate loads a bed under a row lock; transitions use it so
	// no two transitions touching the same bed apply concurrently.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Bed, error)
	Update(ctx context.Context, b *Bed) error
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*Bed, error)
	// Context joins the bed with its room, ward, and hospital.
	Context(ctx context.Context, id uuid.UUID) (*BedContext, error)
	// FreeBeds returns every free bed in the hospital with its context.
	FreeBeds(ctx context.Context, hospitalID uuid.UUID) ([]*BedContext, error)
	// InState returns every bed of the hospital in the given state.
	InState(ctx context.Context, hospitalID uuid.UUID, state BedState) ([]*Bed, error)
	// CleaningSince returns beds network-wide that entered cleaning
	// before the cutoff, for the timer-expiry sweep.
	CleaningSince(ctx context.Context, cutoff time.Time) ([]*Bed, error)
}
