package registry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/camanet/camanet/internal/platform/db"
	"github.com/camanet/camanet/internal/platform/errs"
)

// =========== Hospital Repository ===========

type hospitalRepoPG struct{ pool *pgxpool.Pool }

func NewHospitalRepoPG(pool *pgxpool.Pool) HospitalRepository { return &hospitalRepoPG{pool: pool} }

func (r *hospitalRepoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const hospitalCols = `id, name, code, is_central, created_at`

func scanHospital(row pgx.Row) (*Hospital, error) {
	var h Hospital
	err := row.Scan(&h.ID, &h.Name, &h.Code, &h.IsCentral, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("hospital not found")
	}
	return &h, err
}

func (r *hospitalRepoPG) Create(ctx context.Context, h *Hospital) error {
	h.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO hospital (id, name, code, is_central)
		VALUES ($1,$2,$3,$4)`,
		h.ID, h.Name, h.Code, h.IsCentral)
	return err
}

func (r *hospitalRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return scanHospital(r.conn(ctx).QueryRow(ctx, `SELECT `+hospitalCols+` FROM hospital WHERE id = $1`, id))
}

func (r *hospitalRepoPG) GetByCode(ctx context.Context, code string) (*Hospital, error) {
	return scanHospital(r.conn(ctx).QueryRow(ctx, `SELECT `+hospitalCols+` FROM hospital WHERE code = $1`, code))
}

func (r *hospitalRepoPG) List(ctx context.Context) ([]*Hospital, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+hospitalCols+` FROM hospital ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Hospital
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	return items, rows.Err()
}

// =========== Ward Repository ===========

type wardRepoPG struct{ pool *pgxpool.Pool }

func NewWardRepoPG(pool *pgxpool.Pool) WardRepository { return &wardRepoPG{pool: pool} }

func (r *wardRepoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const wardCols = `id, hospital_id, name, code, type, created_at`

func scanWard(row pgx.Row) (*Ward, error) {
	var w Ward
	err := row.Scan(&w.ID, &w.HospitalID, &w.Name, &w.Code, &w.Type, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("ward not found")
	}
	return &w, err
}

func (r *wardRepoPG) Create(ctx context.Context, w *Ward) error {
	w.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO ward (id, hospital_id, name, code, type)
		VALUES ($1,$2,$3,$4,$5)`,
		w.ID, w.HospitalID, w.Name, w.Code, w.Type)
	return err
}

func (r *wardRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Ward, error) {
	return scanWard(r.conn(ctx).QueryRow(ctx, `SELECT `+wardCols+` FROM ward WHERE id = $1`, id))
}

func (r *wardRepoPG) ListByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*Ward, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+wardCols+` FROM ward WHERE hospital_id = $1 ORDER BY name`, hospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Ward
	for rows.Next() {
		w, err := scanWard(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

// =========== Room Repository ===========

type roomRepoPG struct{ pool *pgxpool.Pool }

func NewRoomRepoPG(pool *pgxpool.Pool) RoomRepository { return &roomRepoPG{pool: pool} }

func (r *roomRepoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const roomCols = `id, ward_id, number, is_individual, assigned_sex, created_at`

func scanRoom(row pgx.Row) (*Room, error) {
	var rm Room
	err := row.Scan(&rm.ID, &rm.WardID, &rm.Number, &rm.IsIndividual, &rm.AssignedSex, &rm.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("room not found")
	}
	return &rm, err
}

func (r *roomRepoPG) Create(ctx context.Context, rm *Room) error {
	rm.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO room (id, ward_id, number, is_individual, assigned_sex)
		VALUES ($1,$2,$3,$4,$5)`,
		rm.ID, rm.WardID, rm.Number, rm.IsIndividual, rm.AssignedSex)
	return err
}

func (r *roomRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	return scanRoom(r.conn(ctx).QueryRow(ctx, `SELECT `+roomCols+` FROM room WHERE id = $1`, id))
}

func (r *roomRepoPG) Update(ctx context.Context, rm *Room) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE room SET number=$2, is_individual=$3, assigned_sex=$4 WHERE id = $1`,
		rm.ID, rm.Number, rm.IsIndividual, rm.AssignedSex)
	return err
}

func (r *roomRepoPG) ListByWard(ctx context.Context, wardID uuid.UUID) ([]*Room, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+roomCols+` FROM room WHERE ward_id = $1 ORDER BY number`, wardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rm)
	}
	return items, rows.Err()
}

// =========== Bed Repository ===========

type bedRepoPG struct{ pool *pgxpool.Pool }

func NewBedRepoPG(pool *pgxpool.Pool) BedRepository { return &bedRepoPG{pool: pool} }

func (r *bedRepoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const bedCols = `id, room_id, number, letter, identifier, state, status_message,
	state_changed_at, cleaning_started_at, destination_bed_id, referred_patient_id,
	prior_state, created_at, updated_at`

func scanBed(row pgx.Row) (*Bed, error) {
	var b Bed
	err := row.Scan(&b.ID, &b.RoomID, &b.Number, &b.Letter, &b.Identifier, &b.State, &b.StatusMessage,
		&b.StateChangedAt, &b.CleaningStartedAt, &b.DestinationBedID, &b.ReferredPatientID,
		&b.PriorState, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("bed not found")
	}
	return &b, err
}

func (r *bedRepoPG) Create(ctx context.Context, b *Bed) error {
	b.ID = uuid.New()
	if b.State == "" {
		b.State = BedFree
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO bed (id, room_id, number, letter, identifier, state, status_message, state_changed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`,
		b.ID, b.RoomID, b.Number, b.Letter, b.Identifier, b.State, b.StatusMessage)
	return err
}

func (r *bedRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return scanBed(r.conn(ctx).QueryRow(ctx, `SELECT `+bedCols+` FROM bed WHERE id = $1`, id))
}

func (r *bedRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return scanBed(r.conn(ctx).QueryRow(ctx, `SELECT `+bedCols+` FROM bed WHERE id = $1 FOR UPDATE`, id))
}

func (r *bedRepoPG) Update(ctx context.Context, b *Bed) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE bed SET state=$2, status_message=$3, state_changed_at=$4, cleaning_started_at=$5,
			destination_bed_id=$6, referred_patient_id=$7, prior_state=$8, updated_at=NOW()
		WHERE id = $1`,
		b.ID, b.State, b.StatusMessage, b.StateChangedAt, b.CleaningStartedAt,
		b.DestinationBedID, b.ReferredPatientID, b.PriorState)
	return err
}

func (r *bedRepoPG) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*Bed, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+bedCols+` FROM bed WHERE room_id = $1 ORDER BY number, letter`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Bed
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

const bedContextQuery = `
	SELECT b.id, b.room_id, b.number, b.letter, b.identifier, b.state, b.status_message,
		b.state_changed_at, b.cleaning_started_at, b.destination_bed_id, b.referred_patient_id,
		b.prior_state, b.created_at, b.updated_at,
		r.id, r.ward_id, r.number, r.is_individual, r.assigned_sex, r.created_at,
		w.id, w.hospital_id, w.name, w.code, w.type, w.created_at,
		h.id, h.name, h.code, h.is_central, h.created_at
	FROM bed b
	JOIN room r ON r.id = b.room_id
	JOIN ward w ON w.id = r.ward_id
	JOIN hospital h ON h.id = w.hospital_id`

func scanBedContext(row pgx.Row) (*BedContext, error) {
	var bc BedContext
	err := row.Scan(
		&bc.Bed.ID, &bc.Bed.RoomID, &bc.Bed.Number, &bc.Bed.Letter, &bc.Bed.Identifier,
		&bc.Bed.State, &bc.Bed.StatusMessage, &bc.Bed.StateChangedAt, &bc.Bed.CleaningStartedAt,
		&bc.Bed.DestinationBedID, &bc.Bed.ReferredPatientID, &bc.Bed.PriorState,
		&bc.Bed.CreatedAt, &bc.Bed.UpdatedAt,
		&bc.Room.ID, &bc.Room.WardID, &bc.Room.Number, &bc.Room.IsIndividual, &bc.Room.AssignedSex, &bc.Room.CreatedAt,
		&bc.Ward.ID, &bc.Ward.HospitalID, &bc.Ward.Name, &bc.Ward.Code, &bc.Ward.Type, &bc.Ward.CreatedAt,
		&bc.Hospital.ID, &bc.Hospital.Name, &bc.Hospital.Code, &bc.Hospital.IsCentral, &bc.Hospital.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("bed not found")
	}
	return &bc, err
}

func (r *bedRepoPG) Context(ctx context.Context, id uuid.UUID) (*BedContext, error) {
	return scanBedContext(r.conn(ctx).QueryRow(ctx, bedContextQuery+` WHERE b.id = $1`, id))
}

func (r *bedRepoPG) FreeBeds(ctx context.Context, hospitalID uuid.UUID) ([]*BedContext, error) {
	rows, err := r.conn(ctx).Query(ctx,
		bedContextQuery+` WHERE h.id = $1 AND b.state = $2 ORDER BY b.identifier`,
		hospitalID, BedFree)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*BedContext
	for rows.Next() {
		bc, err := scanBedContext(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, bc)
	}
	return items, rows.Err()
}

func (r *bedRepoPG) InState(ctx context.Context, hospitalID uuid.UUID, state BedState) ([]*Bed, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+bedCols+` FROM bed b
		WHERE b.state = $2 AND b.room_id IN (
			SELECT r.id FROM room r JOIN ward w ON w.id = r.ward_id WHERE w.hospital_id = $1
		) ORDER BY b.identifier`, hospitalID, state)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Bed
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *bedRepoPG) CleaningSince(ctx context.Context, cutoff time.Time) ([]*Bed, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+bedCols+` FROM bed
		WHERE state = $1 AND cleaning_started_at IS NOT NULL AND cleaning_started_at <= $2`,
		BedCleaning, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Bed
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}
