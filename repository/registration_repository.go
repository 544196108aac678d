package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	apperrors "exam-portal/errors"
	"exam-portal/models"
)

const registrationColumns = `id, student_name, email, phone, school_name, class,
	COALESCE(gender, ''), fees, COALESCE(payment_status, ''), is_paid,
	COALESCE(razorpay_order_id, ''), COALESCE(razorpay_payment_id, ''), COALESCE(razorpay_signature, ''),
	paid_at, created_at`

// RegistrationRepository handles registration reads and payment-column writes.
type RegistrationRepository struct {
	db *sql.DB
}

// NewRegistrationRepository creates a new registration repository instance
func NewRegistrationRepository(db *sql.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRegistration(row rowScanner) (*models.Registration, error) {
	var (
		reg    models.Registration
		status string
		fees   sql.NullInt64
		paidAt sql.NullTime
	)
	err := row.Scan(
		&reg.ID, &reg.StudentName, &reg.Email, &reg.Phone, &reg.SchoolName, &reg.Class,
		&reg.Gender, &fees, &status, &reg.IsPaid,
		&reg.RazorpayOrderID, &reg.RazorpayPaymentID, &reg.RazorpaySignature,
		&paidAt, &reg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	reg.PaymentStatus = models.PaymentStatus(status)
	if fees.Valid {
		reg.Fees = &fees.Int64
	}
	if paidAt.Valid {
		reg.PaidAt = &paidAt.Time
	}
	return &reg, nil
}

// GetRegistration loads a registration by id.
func (r *RegistrationRepository) GetRegistration(ctx context.Context, id string) (*models.Registration, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+registrationColumns+" FROM registrations WHERE id = $1", id)
	reg, err := scanRegistration(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("registration %s not found", id))
	}
	if err != nil {
		return nil, apperrors.E(apperrors.Persistence, "error loading registration", err)
	}
	return reg, nil
}

// FindByOrderID loads the registration that owns a gateway order.
func (r *RegistrationRepository) FindByOrderID(ctx context.Context, orderID string) (*models.Registration, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+registrationColumns+" FROM registrations WHERE razorpay_order_id = $1 LIMIT 1", orderID)
	reg, err := scanRegistration(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no registration for order %s", orderID))
	}
	if err != nil {
		return nil, apperrors.E(apperrors.Persistence, "error loading registration by order", err)
	}
	return reg, nil
}

// UpdatePayment applies one payment transition as a single-row update. Only
// payment columns are ever named in the statement. It returns false without
// error when UnlessPaid suppressed the write for an already paid registration.
func (r *RegistrationRepository) UpdatePayment(ctx context.Context, id string, u models.PaymentUpdate) (bool, error) {
	args := []interface{}{id, string(u.Status)}
	sets := []string{"payment_status = $2"}
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.IsPaid != nil {
		set("is_paid", *u.IsPaid)
	}
	if u.PaidAt != nil {
		set("paid_at", *u.PaidAt)
	}
	if u.RazorpayOrderID != nil {
		set("razorpay_order_id", *u.RazorpayOrderID)
	}
	if u.RazorpayPaymentID != nil {
		set("razorpay_payment_id", *u.RazorpayPaymentID)
	}
	if u.RazorpaySignature != nil {
		set("razorpay_signature", *u.RazorpaySignature)
	}

	query := "UPDATE registrations SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	if u.UnlessPaid {
		query += " AND payment_status IS DISTINCT FROM 'paid'"
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.E(apperrors.Persistence, "error updating registration payment", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.E(apperrors.Persistence, "error checking registration update", err)
	}
	if rows > 0 {
		return true, nil
	}

	if u.UnlessPaid {
		var exists bool
		err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM registrations WHERE id = $1)", id).Scan(&exists)
		if err != nil {
			return false, apperrors.E(apperrors.Persistence, "error checking registration", err)
		}
		if exists {
			return false, nil
		}
	}

	return false, apperrors.NewNotFoundError(fmt.Sprintf("registration %s not found", id))
}

// ListRegistrations returns registrations matching the filter, oldest first.
func (r *RegistrationRepository) ListRegistrations(ctx context.Context, f models.RegistrationFilter) ([]models.Registration, error) {
	var (
		where []string
		args  []interface{}
	)
	cond := func(clause string, value interface{}) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.Status != models.PaymentStatusNone {
		cond("payment_status = $%d", string(f.Status))
	}
	if f.CreatedAfter != nil {
		cond("created_at >= $%d", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		cond("created_at <= $%d", *f.CreatedBefore)
	}

	query := "SELECT " + registrationColumns + " FROM registrations"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.E(apperrors.Persistence, "error listing registrations", err)
	}
	defer rows.Close()

	var out []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, apperrors.E(apperrors.Persistence, "error scanning registration", err)
		}
		out = append(out, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.E(apperrors.Persistence, "error iterating registrations", err)
	}
	return out, nil
}

// Ping reports whether the database answers.
func (r *RegistrationRepository) Ping(ctx context.Context) bool {
	return r.db.PingContext(ctx) == nil
}
