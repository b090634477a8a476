package sweep

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/camanet/camanet/internal/domain/patient"
	"github.com/camanet/camanet/internal/domain/registry"
	"github.com/camanet/camanet/internal/platform/errs"
	"github.com/camanet/camanet/internal/platform/websocket"
)

// -- Mock repositories --

type memHospitalRepo struct{ hospitals map[uuid.UUID]*registry.Hospital }

func (m *memHospitalRepo) Create(_ context.Context, h *registry.Hospital) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	m.hospitals[h.ID] = h
	return nil
}

func (m *memHospitalRepo) GetByID(_ context.Context, id uuid.UUID) (*registry.Hospital, error) {
	h, ok := m.hospitals[id]
	if !ok {
		return nil, errs.NotFound("hospital not found")
	}
	return h, nil
}

func (m *memHospitalRepo) GetByCode(_ context.Context, code string) (*registry.Hospital, error) {
	for _, h := range m.hospitals {
		if h.Code == code {
			return h, nil
		}
	}
	return nil, errs.NotFound("hospital not found")
}

func (m *memHospitalRepo) List(_ context.Context) ([]*registry.Hospital, error) {
	var result []*registry.Hospital
	for _, h := range m.hospitals {
		result = append(result, h)
	}
	return result, nil
}

type memWardRepo struct{ wards map[uuid.UUID]*registry.Ward }

func (m *memWardRepo) Create(_ context.Context, w *registry.Ward) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	m.wards[w.ID] = w
	return nil
}

func (m *memWardRepo) GetByID(_ context.Context, id uuid.UUID) (*registry.Ward, error) {
	w, ok := m.wards[id]
	if !ok {
		return nil, errs.NotFound("ward not found")
	}
	return w, nil
}

func (m *memWardRepo) ListByHospital(_ context.Context, hospitalID uuid.UUID) ([]*registry.Ward, error) {
	var result []*registry.Ward
	for _, w := range m.wards {
		if w.HospitalID == hospitalID {
			result = append(result, w)
		}
	}
	return result, nil
}

type memRoomRepo struct{ rooms map[uuid.UUID]*registry.Room }

func (m *memRoomRepo) Create(_ context.Context, r *registry.Room) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.rooms[r.ID] = r
	return nil
}

func (m *memRoomRepo) GetByID(_ context.Context, id uuid.UUID) (*registry.Room, error) {
	r, ok := m.rooms[id]
	if !ok {
		return nil, errs.NotFound("room not found")
	}
	return r, nil
}

func (m *memRoomRepo) Update(_ context.Context, r *registry.Room) error {
	m.rooms[r.ID] = r
	return nil
}

func (m *memRoomRepo) ListByWard(_ context.Context, wardID uuid.UUID) ([]*registry.Room, error) {
	var result []*registry.Room
	for _, r := range m.rooms {
		if r.WardID == wardID {
			result = append(result, r)
		}
	}
	return result, nil
}

type memBedRepo struct {
	beds  map[uuid.UUID]*registry.Bed
	rooms *memRoomRepo
	wards *memWardRepo
	hosps *memHospitalRepo
}

func (m *memBedRepo) Create(_ context.Context, b *registry.Bed) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.State == "" {
		b.State = registry.BedFree
	}
	m.beds[b.ID] = b
	return nil
}

func (m *memBedRepo) GetByID(_ context.Context, id uuid.UUID) (*registry.Bed, error) {
	b, ok := m.beds[id]
	if !ok {
		return nil, errs.NotFound("bed not found")
	}
	return b, nil
}

func (m *memBedRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*registry.Bed, error) {
	return m.GetByID(ctx, id)
}

func (m *memBedRepo) Update(_ context.Context, b *registry.Bed) error {
	m.beds[b.ID] = b
	return nil
}

func (m *memBedRepo) ListByRoom(_ context.Context, roomID uuid.UUID) ([]*registry.Bed, error) {
	var result []*registry.Bed
	for _, b := range m.beds {
		if b.RoomID == roomID {
			result = append(result, b)
		}
	}
	return result, nil
}

func (m *memBedRepo) Context(ctx context.Context, id uuid.UUID) (*registry.BedContext, error) {
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
	return &registry.BedContext{Bed: *b, Room: *room, Ward: *ward, Hospital: *hosp}, nil
}

func (m *memBedRepo) FreeBeds(ctx context.Context, hospitalID uuid.UUID) ([]*registry.BedContext, error) {
	var result []*registry.BedContext
	for id, b := range m.beds {
		if b.State != registry.BedFree {
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

func (m *memBedRepo) InState(ctx context.Context, hospitalID uuid.UUID, state registry.BedState) ([]*registry.Bed, error) {
	var result []*registry.Bed
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

func (m *memBedRepo) CleaningSince(_ context.Context, cutoff time.Time) ([]*registry.Bed, error) {
	var result []*registry.Bed
	for _, b := range m.beds {
		if b.State == registry.BedCleaning && b.CleaningStartedAt != nil && !b.CleaningStartedAt.After(cutoff) {
			result = append(result, b)
		}
	}
	return result, nil
}

type memPatientRepo struct{ patients map[uuid.UUID]*patient.Patient }

func (m *memPatientRepo) Create(_ context.Context, p *patient.Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.patients[p.ID] = p
	return nil
}

func (m *memPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, errs.NotFound("patient not found")
	}
	return p, nil
}

func (m *memPatientRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	return m.GetByID(ctx, id)
}

func (m *memPatientRepo) Update(_ context.Context, p *patient.Patient) error {
	m.patients[p.ID] = p
	return nil
}

func (m *memPatientRepo) List(_ context.Context, hospitalID uuid.UUID, includeRetired bool, limit, offset int) ([]*patient.Patient, int, error) {
	var result []*patient.Patient
	for _, p := range m.patients {
		if p.HospitalID == hospitalID && (includeRetired || !p.Retired) {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

func (m *memPatientRepo) Waiting(_ context.Context, hospitalID uuid.UUID) ([]*patient.Patient, error) {
	var result []*patient.Patient
	for _, p := range m.patients {
		if p.HospitalID == hospitalID && p.OnWaitingList && !p.Retired {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *memPatientRepo) AllWaiting(_ context.Context) ([]*patient.Patient, error) {
	var result []*patient.Patient
	for _, p := range m.patients {
		if p.OnWaitingList && !p.Retired {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *memPatientRepo) PausedSince(_ context.Context, cutoff time.Time) ([]*patient.Patient, error) {
	var result []*patient.Patient
	for _, p := range m.patients {
		if p.OxygenPause.Active && p.OxygenPause.StartAt != nil && !p.OxygenPause.StartAt.After(cutoff) {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *memPatientRepo) ByCurrentBed(_ context.Context, bedID uuid.UUID) (*patient.Patient, error) {
	for _, p := range m.patients {
		if p.CurrentBedID != nil && *p.CurrentBedID == bedID {
			return p, nil
		}
	}
	return nil, errs.NotFound("no patient on bed")
}

func (m *memPatientRepo) ByDestinationBed(_ context.Context, bedID uuid.UUID) (*patient.Patient, error) {
	for _, p := range m.patients {
		if p.DestinationBedID != nil && *p.DestinationBedID == bedID {
			return p, nil
		}
	}
	return nil, errs.NotFound("no patient bound for bed")
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, websocket.Event) error { return nil }
