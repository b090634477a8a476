package patient

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, hospital_id, name, national_id, sex, age, pregnant,
	diagnosis, disease_type, isolation, notes, document_ref,
	req_minimal, req_low, req_step_down, req_icu, special_cases, type,
	current_bed_id, destination_bed_id, current_ward_type,
	on_waiting_list, queue_state, score, waiting_since,
	referral_state, referral_hospital_id, referral_origin_hospital_id, referral_reason, referral_reject_reason,
	referral_origin_bed_id, referral_reserved_bed_id, referral_egressed,
	oxygen_pause_active, oxygen_pause_start, oxygen_prior_tier,
	oxygen_requires_new_bed, oxygen_discharge_eligible,
	discharge_requested, discharge_reason, retired, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.HospitalID, &p.Name, &p.NationalID, &p.Sex, &p.Age, &p.Pregnant,
		&p.Diagnosis, &p.DiseaseType, &p.Isolation, &p.Notes, &p.DocumentRef,
		&p.ReqMinimal, &p.ReqLow, &p.ReqStepDown, &p.ReqICU, &p.SpecialCases, &p.Type,
		&p.CurrentBedID, &p.DestinationBedID, &p.CurrentWardType,
		&p.OnWaitingList, &p.QueueState, &p.Score, &p.WaitingSince,
		&p.Referral.State, &p.Referral.HospitalID, &p.Referral.OriginHospitalID, &p.Referral.Reason, &p.Referral.RejectReason,
		&p.Referral.OriginBedID, &p.Referral.ReservedBedID, &p.Referral.Egressed,
		&p.OxygenPause.Active, &p.OxygenPause.StartAt, &p.OxygenPause.PriorTier,
		&p.OxygenPause.RequiresNewBed, &p.OxygenPause.DischargeEligible,
		&p.DischargeRequested, &p.DischargeReason, &p.Retired, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("patient not found")
	}
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, hospital_id, name, national_id, sex, age, pregnant,
			diagnosis, disease_type, isolation, notes, document_ref,
			req_minimal, req_low, req_step_down, req_icu, special_cases, type,
			on_waiting_list, queue_state, score, waiting_since, referral_state)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		p.ID, p.HospitalID, p.Name, p.NationalID, p.Sex, p.Age, p.Pregnant,
		p.Diagnosis, p.DiseaseType, p.Isolation, p.Notes, p.DocumentRef,
		p.ReqMinimal, p.ReqLow, p.ReqStepDown, p.ReqICU, p.SpecialCases, p.Type,
		p.OnWaitingList, p.QueueState, p.Score, p.WaitingSince, p.Referral.State)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET
			name=$2, national_id=$3, sex=$4, age=$5, pregnant=$6,
			diagnosis=$7, disease_type=$8, isolation=$9, notes=$10, document_ref=$11,
			req_minimal=$12, req_low=$13, req_step_down=$14, req_icu=$15, special_cases=$16, type=$17,
			current_bed_id=$18, destination_bed_id=$19, current_ward_type=$20,
			on_waiting_list=$21, queue_state=$22, score=$23, waiting_since=$24,
			referral_state=$25, referral_hospital_id=$26, referral_origin_hospital_id=$27, referral_reason=$28,
			referral_reject_reason=$29, referral_origin_bed_id=$30, referral_reserved_bed_id=$31, referral_egressed=$32,
			oxygen_pause_active=$33, oxygen_pause_start=$34, oxygen_prior_tier=$35,
			oxygen_requires_new_bed=$36, oxygen_discharge_eligible=$37,
			discharge_requested=$38, discharge_reason=$39, retired=$40, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.NationalID, p.Sex, p.Age, p.Pregnant,
		p.Diagnosis, p.DiseaseType, p.Isolation, p.Notes, p.DocumentRef,
		p.ReqMinimal, p.ReqLow, p.ReqStepDown, p.ReqICU, p.SpecialCases, p.Type,
		p.CurrentBedID, p.DestinationBedID, p.CurrentWardType,
		p.OnWaitingList, p.QueueState, p.Score, p.WaitingSince,
		p.Referral.State, p.Referral.HospitalID, p.Referral.OriginHospitalID, p.Referral.Reason,
		p.Referral.RejectReason, p.Referral.OriginBedID, p.Referral.ReservedBedID, p.Referral.Egressed,
		p.OxygenPause.Active, p.OxygenPause.StartAt, p.OxygenPause.PriorTier,
		p.OxygenPause.RequiresNewBed, p.OxygenPause.DischargeEligible,
		p.DischargeRequested, p.DischargeReason, p.Retired)
	return err
}

func (r *repoPG) List(ctx context.Context, hospitalID uuid.UUID, includeRetired bool, limit, offset int) ([]*Patient, int, error) {
	where := `WHERE hospital_id = $1`
	if !includeRetired {
		where += ` AND retired = false`
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient `+where, hospitalID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patient `+where+` ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		hospitalID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collect(rows)
	return items, total, err
}

func collect(rows pgx.Rows) ([]*Patient, error) {
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) Waiting(ctx context.Context, hospitalID uuid.UUID) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+` FROM patient
		WHERE hospital_id = $1 AND on_waiting_list = true AND retired = false
		ORDER BY score DESC, waiting_since`, hospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *repoPG) AllWaiting(ctx context.Context) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+` FROM patient
		WHERE on_waiting_list = true AND retired = false
		ORDER BY score DESC, waiting_since`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *repoPG) PausedSince(ctx context.Context, cutoff time.Time) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+` FROM patient
		WHERE oxygen_pause_active = true AND oxygen_pause_start IS NOT NULL
			AND oxygen_pause_start <= $1 AND retired = false`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *repoPG) ByCurrentBed(ctx context.Context, bedID uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE current_bed_id = $1 AND retired = false`, bedID))
}

func (r *repoPG) ByDestinationBed(ctx context.Context, bedID uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE destination_bed_id = $1 AND retired = false`, bedID))
}
