package registry

import (
	"context"

	"github.com/google/uuid"

	"github.com/camanet/camanet/internal/platform/errs"
)

type Service struct {
	hospitals HospitalRepository
	wards     WardRepository
	rooms     RoomRepository
	beds      BedRepository
}

func NewService(hospitals HospitalRepository, wards WardRepository, rooms RoomRepository, beds BedRepository) *Service {
	return &Service{hospitals: hospitals, wards: wards, rooms: rooms, beds: beds}
}

func (s *Service) CreateHospital(ctx context.Context, h *Hospital) error {
	if h.Name == "" {
		return errs.Validation("name is required")
	}
	if h.Code == "" {
		return errs.Validation("code is required")
	}
	return s.hospitals.Create(ctx, h)
}

func (s *Service) GetHospital(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return s.hospitals.GetByID(ctx, id)
}

func (s *Service) ListHospitals(ctx context.Context) ([]*Hospital, error) {
	return s.hospitals.List(ctx)
}

func (s *Service) CreateWard(ctx context.Context, w *Ward) error {
	if w.HospitalID == uuid.Nil {
		return errs.Validation("hospital_id is required")
	}
	if !w.Type.Valid() {
		return errs.Validation("unknown ward type %q", w.Type)
	}
	if w.Name == "" {
		return errs.Validation("name is required")
	}
	if _, err := s.hospitals.GetByID(ctx, w.HospitalID); err != nil {
		return err
	}
	return s.wards.Create(ctx, w)
}

func (s *Service) ListWards(ctx context.Context, hospitalID uuid.UUID) ([]*Ward, error) {
	return s.wards.ListByHospital(ctx, hospitalID)
}

func (s *Service) CreateRoom(ctx context.Context, r *Room) error {
	if r.WardID == uuid.Nil {
		return errs.Validation("ward_id is required")
	}
	if r.Number == "" {
		return errs.Validation("number is required")
	}
	if _, err := s.wards.GetByID(ctx, r.WardID); err != nil {
		return err
	}
	return s.rooms.Create(ctx, r)
}

func (s *Service) ListRooms(ctx context.Context, wardID uuid.UUID) ([]*Room, error) {
	return s.rooms.ListByWard(ctx, wardID)
}

func (s *Service) CreateBed(ctx context.Context, b *Bed) error {
	if b.RoomID == uuid.Nil {
		return errs.Validation("room_id is required")
	}
	if b.Number == "" {
		return errs.Validation("number is required")
	}
	room, err := s.rooms.GetByID(ctx, b.RoomID)
	if err != nil {
		return err
	}
	if !room.IsIndividual && (b.Letter == nil || *b.Letter == "") {
		return errs.Validation("letter is required for beds in shared rooms")
	}
	return s.beds.Create(ctx, b)
}

func (s *Service) GetBed(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return s.beds.GetByID(ctx, id)
}

func (s *Service) GetBedContext(ctx context.Context, id uuid.UUID) (*BedContext, error) {
	return s.beds.Context(ctx, id)
}

func (s *Service) ListBeds(ctx context.Context, roomID uuid.UUID) ([]*Bed, error) {
	return s.beds.ListByRoom(ctx, roomID)
}

func (s *Service) FreeBeds(ctx context.Context, hospitalID uuid.UUID) ([]*BedContext, error) {
	return s.beds.FreeBeds(ctx, hospitalID)
}

// PinRoomSex pins a shared room to the given sex if it is not pinned
// yet. Individual rooms are never pinned.
func (s *Service) PinRoomSex(ctx context.Context, roomID uuid.UUID, sex Sex) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.IsIndividual || room.AssignedSex != nil {
		return nil
	}
	room.AssignedSex = &sex
	return s.rooms.Update(ctx, room)
}

// ReevaluateRoomSex clears a shared room's sex pin once every bed in
// the room is vacant again.
func (s *Service) ReevaluateRoomSex(ctx context.Context, roomID uuid.UUID) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.AssignedSex == nil {
		return nil
	}
	beds, err := s.beds.ListByRoom(ctx, roomID)
	if err != nil {
		return err
	}
	for _, b := range beds {
		// incoming_transfer is not vacant: a patient is en route and
		// the pin must hold.
		if !b.State.Vacant() {
			return nil
		}
	}
	room.AssignedSex = nil
	return s.rooms.Update(ctx, room)
}
