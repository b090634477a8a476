package registry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/camanet/camanet/internal/platform/errs"
)

// -- Mock Repositories --

type mockHospitalRepo struct {
	hospitals map[uuid.UUID]*Hospital
}

func newMockHospitalRepo() *mockHospitalRepo {
	return &mockHospitalRepo{hospitals: make(map[uuid.UUID]*Hospital)}
}

func (m *mockHospitalRepo) Create(_ context.Context, h *Hospital) error {
	h.ID = uuid.New()
	h.CreatedAt = time.Now()
	m.hospitals[h.ID] = h
	return nil
}

func (m *mockHospitalRepo) GetByID(_ context.Context, id uuid.UUID) (*Hospital, error) {
	h, ok := m.hospitals[id]
	if !ok {
		return nil, errs.NotFound("hospital not found")
	}
	return h, nil
}

func (m *mockHospitalRepo) GetByCode(_ context.Context, code string) (*Hospital, error) {
	for _, h := range m.hospitals {
		if h.Code == code {
			return h, nil
		}
	}
	return nil, errs.NotFound("hospital not found")
}

func (m *mockHospitalRepo) List(_ context.Context) ([]*Hospital, error) {
	var result []*Hospital
	for _, h := range m.hospitals {
		result = append(result, h)
	}
	return result, nil
}

type mockWardRepo struct {
	wards map[uuid.UUID]*Ward
}

func newMockWardRepo() *mockWardRepo {
	return &mockWardRepo{wards: make(map[uuid.UUID]*Ward)}
}

func (m *mockWardRepo) Create(_ context.Context, w *Ward) error {
	w.ID = uuid.New()
	m.wards[w.ID] = w
	return nil
}

func (m *mockWardRepo) GetByID(_ context.Context, id uuid.UUID) (*Ward, error) {
	w, ok := m.wards[id]
	if !ok {
		return nil, errs.NotFound("ward not found")
	}
	return w, nil
}

func (m *mockWardRepo) ListByHospital(_ context.Context, hospitalID uuid.UUID) ([]*Ward, error) {
	var result []*Ward
	for _, w := range m.wards {
		if w.HospitalID == hospitalID {
			result = append(result, w)
		}
	}
	return result, nil
}

type mockRoomRepo struct {
	rooms map[uuid.UUID]*Room
}

func newMockRoomRepo() *mockRoomRepo {
	return &mockRoomRepo{rooms: make(map[uuid.UUID]*Room)}
}

func (m *mockRoomRepo) Create(_ context.Context, r *Room) error {
	r.ID = uuid.New()
	m.rooms[r.ID] = r
	return nil
}

func (m *mockRoomRepo) GetByID(_ context.Context, id uuid.UUID) (*Room, error) {
	r, ok := m.rooms[id]
	if !ok {
		return nil, errs.NotFound("room not found")
	}
	return r, nil
}

func (m *mockRoomRepo) Update(_ context.Context, r *Room) error {
	m.rooms[r.ID] = r
	return nil
}

func (m *mockRoomRepo) ListByWard(_ context.Context, wardID uuid.UUID) ([]*Room, error) {
	var result []*Room
	for _, r := range m.rooms {
		if r.WardID == wardID {
			result = append(result, r)
		}
	}
	return result, nil
}

type mockBedRepo struct {
	beds  map[uuid.UUID]*Bed
	rooms *mockRoomRepo
	wards *mockWardRepo
	hosps *mockHospitalRepo
}

func newMockBedRepo(rooms *mockRoomRepo, wards *mockWardRepo, hosps *mockHospitalRepo) *mockBedRepo {
	return &mockBedRepo{beds: make(map[uuid.UUID]*Bed), rooms: rooms, wards: wards, hosps: hosps}
}

func (m *mockBedRepo) Create(_ context.Context, b *Bed) error {
	b.ID = uuid.New()
	if b.State == "" {
		b.State = BedFree
	}
	b.StateChangedAt = time.Now()
	m.beds[b.ID] = b
	return nil
}

func (m *mockBedRepo) GetByID(_ context.Context, id uuid.UUID) (*Bed, error) {
	b, ok := m.beds[id]
	if !ok {
		return nil, errs.NotFound("bed not found")
	}
	return b, nil
}

func (m *mockBedRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return m.GetByID(ctx, id)
}

func (m *mockBedRepo) Update(_ context.Context, b *Bed) error {
	m.beds[b.ID] = b
	return nil
}

func (m *mockBedRepo) ListByRoom(_ context.Context, roomID uuid.UUID) ([]*Bed, error) {
	var result []*Bed
	for _, b := range m.beds {
		if b.RoomID == roomID {
			result = append(result, b)
		}
	}
	return result, nil
}

func (m *mockBedRepo) Context(ctx context.Context, id uuid.UUID) (*BedContext, error) {
	b, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	room, err := m.rooms.GetByID(ctx, b.RoomID)
	if err != nil {
		return nil, err
	}
	ward, err := m.wards.GetByID(ctx, room.WardID)
	if err != nil {
		return nil, err
	}
	hosp, err := m.hosps.GetByID(ctx, ward.HospitalID)
	if err != nil {
		return nil, err
	}
	return &BedContext{Bed: *b, Room: *room, Ward: *ward, Hospital: *hosp}, nil
}

func (m *mockBedRepo) FreeBeds(ctx context.Context, hospitalID uuid.UUID) ([]*BedContext, error) {
	var result []*BedContext
	for id, b := range m.beds {
		if b.State != BedFree {
			continue
		}
		bc, err := m.Context(ctx, id)
		if err != nil {
			continue
		}
		if bc.Hospital.ID == hospitalID {
			result = append(result, bc)
		}
	}
	return result, nil
}

func (m *mockBedRepo) InState(ctx context.Context, hospitalID uuid.UUID, state BedState) ([]*Bed, error) {
	var result []*Bed
	for id, b := range m.beds {
		if b.State != state {
			continue
		}
		bc, err := m.Context(ctx, id)
		if err != nil {
			continue
		}
		if bc.Hospital.ID == hospitalID {
			result = append(result, b)
		}
	}
	return result, nil
}

func (m *mockBedRepo) CleaningSince(_ context.Context, cutoff time.Time) ([]*Bed, error) {
	var result []*Bed
	for _, b := range m.beds {
		if b.State == BedCleaning && b.CleaningStartedAt != nil && !b.CleaningStartedAt.After(cutoff) {
			result = append(result, b)
		}
	}
	return result, nil
}
