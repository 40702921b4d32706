package treatment

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/curakidney/api/internal/platform/db"
)

type treatmentRepoPG struct{ conn db.DBTX }

func NewRepoPG(conn db.DBTX) Repository {
	return &treatmentRepoPG{conn: conn}
}

const treatmentCols = `id, treatment_code, patient_name, patient_email, treatment_type,
	status, payment_status, amount::float8, scheduled_at, created_at, updated_at`

func scanTreatment(row pgx.Row) (*PatientTreatment, error) {
	var t PatientTreatment
	err := row.Scan(&t.ID, &t.TreatmentCode, &t.PatientName, &t.PatientEmail, &t.TreatmentType,
		&t.Status, &t.PaymentStatus, &t.Amount, &t.ScheduledAt, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *treatmentRepoPG) List(ctx context.Context) ([]*PatientTreatment, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+treatmentCols+` FROM patient_treatments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list patient treatments: %w", err)
	}
	return collect(rows)
}

func (r *treatmentRepoPG) GetByID(ctx context.Context, id int) (*PatientTreatment, error) {
	t, err := scanTreatment(r.conn.QueryRow(ctx, `SELECT `+treatmentCols+` FROM patient_treatments WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get patient treatment %d: %w", id, err)
	}
	return t, nil
}

func (r *treatmentRepoPG) GetByCodes(ctx context.Context, codes []string) ([]*PatientTreatment, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+treatmentCols+` FROM patient_treatments WHERE treatment_code = ANY($1) ORDER BY id`, codes)
	if err != nil {
		return nil, fmt.Errorf("get patient treatments by code: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*PatientTreatment, error) {
	defer rows.Close()
	out := make([]*PatientTreatment, 0)
	for rows.Next() {
		t, err := scanTreatment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient treatment: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patient treatments: %w", err)
	}
	return out, nil
}
