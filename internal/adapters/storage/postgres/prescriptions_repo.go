package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"receta-veterinaria/internal/domain/prescriptions"
)

// PrescriptionsRepo persiste el agregado receta+items. Cada escritura es
// una transacción: nunca queda un parent sin sus items ni items sueltos.
type PrescriptionsRepo struct {
	pool *pgxpool.Pool
}

func NewPrescriptionsRepo(pool *pgxpool.Pool) *PrescriptionsRepo {
	return &PrescriptionsRepo{pool: pool}
}

const prescriptionColumns = `
	id, patient_name, owner_name, prescription_date,
	veterinarian_name, veterinarian_license, notes,
	created_at, updated_at`

func (r *PrescriptionsRepo) Create(ctx context.Context, p prescriptions.Prescription) error {
	date, err := parseDate(p.PrescriptionDate)
	if err != nil {
		return fmt.Errorf("%w: %v", prescriptions.ErrWriteFailed, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", prescriptions.ErrWriteFailed, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO prescriptions (
			id, patient_name, owner_name, prescription_date,
			veterinarian_name, veterinarian_license, notes,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		p.ID,
		p.PatientName,
		p.OwnerName,
		date,
		p.VeterinarianName,
		p.VeterinarianLicense,
		p.Notes,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert prescription: %v", prescriptions.ErrWriteFailed, err)
	}

	if err := insertItems(ctx, tx, p.ID, p.Medications, p.CreatedAt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", prescriptions.ErrWriteFailed, err)
	}
	return nil
}

func (r *PrescriptionsRepo) GetByID(ctx context.Context, id string) (prescriptions.Prescription, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return prescriptions.Prescription{}, prescriptions.ErrNotFound
	}

	row := r.pool.QueryRow(ctx, `
		SELECT`+prescriptionColumns+`
		FROM prescriptions
		WHERE id = $1
	`, id)

	p, err := scanPrescription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return prescriptions.Prescription{}, prescriptions.ErrNotFound
		}
		return prescriptions.Prescription{}, err
	}

	p.Medications, err = r.loadItems(ctx, id)
	if err != nil {
		return prescriptions.Prescription{}, err
	}
	return p, nil
}

func (r *PrescriptionsRepo) List(ctx context.Context, limit, offset int) ([]prescriptions.Prescription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+prescriptionColumns+`
		FROM prescriptions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows)
}

func (r *PrescriptionsRepo) Search(ctx context.Context, term string, limit int) ([]prescriptions.Prescription, error) {
	pattern := "%" + strings.TrimSpace(term) + "%"

	rows, err := r.pool.Query(ctx, `
		SELECT`+prescriptionColumns+`
		FROM prescriptions
		WHERE patient_name ILIKE $1
		   OR owner_name ILIKE $1
		   OR notes ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows)
}

// Update reemplaza escalares y la secuencia completa de items en una
// transacción. El chequeo de existencia va primero: si el id no está,
// sale con ErrNotFound sin tocar ningún item.
func (r *PrescriptionsRepo) Update(ctx context.Context, p prescriptions.Prescription) error {
	date, err := parseDate(p.PrescriptionDate)
	if err != nil {
		return fmt.Errorf("%w: %v", prescriptions.ErrWriteFailed, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", prescriptions.ErrWriteFailed, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE prescriptions
		SET patient_name = $2,
		    owner_name = $3,
		    prescription_date = $4,
		    veterinarian_name = $5,
		    veterinarian_license = $6,
		    notes = $7,
		    updated_at = $8
		WHERE id = $1
	`,
		p.ID,
		p.PatientName,
		p.OwnerName,
		date,
		p.VeterinarianName,
		p.VeterinarianLicense,
		p.Notes,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: update prescription: %v", prescriptions.ErrWriteFailed, err)
	}
	if tag.RowsAffected() == 0 {
		return prescriptions.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM prescription_items WHERE prescription_id = $1
	`, p.ID); err != nil {
		return fmt.Errorf("%w: delete items: %v", prescriptions.ErrWriteFailed, err)
	}

	if err := insertItems(ctx, tx, p.ID, p.Medications, p.UpdatedAt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", prescriptions.ErrWriteFailed, err)
	}
	return nil
}

func (r *PrescriptionsRepo) Delete(ctx context.Context, id string) (bool, error) {
	// El FK con ON DELETE CASCADE arrastra los items.
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM prescriptions WHERE id = $1
	`, strings.TrimSpace(id))
	if err != nil {
		return false, fmt.Errorf("%w: delete prescription: %v", prescriptions.ErrWriteFailed, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PrescriptionsRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM prescriptions`).Scan(&n)
	return n, err
}

func (r *PrescriptionsRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM prescriptions WHERE created_at >= $1
	`, since).Scan(&n)
	return n, err
}

// insertItems inserta la secuencia en orden. position fija el orden de
// lectura: dos items creados en el mismo microsegundo no pueden
// intercambiarse.
func insertItems(ctx context.Context, tx pgx.Tx, prescriptionID string, items []prescriptions.MedicationItem, createdAt time.Time) error {
	for i, m := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO prescription_items (
				id, prescription_id, position,
				medication_name, dosage_instructions, created_at
			) VALUES ($1,$2,$3,$4,$5,$6)
		`,
			uuid.NewString(),
			prescriptionID,
			i,
			m.Name,
			m.Instructions,
			createdAt,
		)
		if err != nil {
			return fmt.Errorf("%w: insert item %d: %v", prescriptions.ErrWriteFailed, i, err)
		}
	}
	return nil
}

func (r *PrescriptionsRepo) loadItems(ctx context.Context, prescriptionID string) ([]prescriptions.MedicationItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT medication_name, dosage_instructions
		FROM prescription_items
		WHERE prescription_id = $1
		ORDER BY position
	`, prescriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]prescriptions.MedicationItem, 0)
	for rows.Next() {
		var m prescriptions.MedicationItem
		if err := rows.Scan(&m.Name, &m.Instructions); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PrescriptionsRepo) collect(ctx context.Context, rows pgx.Rows) ([]prescriptions.Prescription, error) {
	defer rows.Close()

	out := make([]prescriptions.Prescription, 0)
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		items, err := r.loadItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Medications = items
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func scanPrescription(row pgx.Row) (prescriptions.Prescription, error) {
	var (
		p    prescriptions.Prescription
		date time.Time
	)
	err := row.Scan(
		&p.ID,
		&p.PatientName,
		&p.OwnerName,
		&date,
		&p.VeterinarianName,
		&p.VeterinarianLicense,
		&p.Notes,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return prescriptions.Prescription{}, err
	}
	p.PrescriptionDate = date.Format("2006-01-02")
	return p, nil
}
