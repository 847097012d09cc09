package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/fuchiball-booking/internal/model"
	"github.com/iliyamo/fuchiball-booking/internal/reservation"
)

// PendingBookingRepo manages pending_bookings, the Yape payment claims.
type PendingBookingRepo struct {
	db *sql.DB
}

func NewPendingBookingRepo(db *sql.DB) *PendingBookingRepo { return &PendingBookingRepo{db: db} }

const bookingColumns = `b.id, b.match_id, b.user_id, b.yape_phone, b.yape_name, b.yape_code,
	b.payment_proof_url, b.status, b.reviewed_by, b.reviewed_at, b.created_at`

func scanBooking(s rowScanner, extra ...any) (model.PendingBooking, error) {
	var (
		b          model.PendingBooking
		proof      sql.NullString
		reviewedBy sql.NullInt64
		reviewedAt sql.NullTime
	)
	dest := append([]any{&b.ID, &b.MatchID, &b.UserID, &b.YapePhone, &b.YapeName, &b.YapeCode,
		&proof, &b.Status, &reviewedBy, &reviewedAt, &b.CreatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return b, err
	}
	if proof.Valid {
		v := proof.String
		b.PaymentProofURL = &v
	}
	if reviewedBy.Valid {
		v := uint64(reviewedBy.Int64)
		b.ReviewedBy = &v
	}
	if reviewedAt.Valid {
		v := reviewedAt.Time
		b.ReviewedAt = &v
	}
	return b, nil
}

// PendingForUserTx returns the pending claim of userID for matchID, or nil.
func (r *PendingBookingRepo) PendingForUserTx(ctx context.Context, tx *sql.Tx, matchID string, userID uint64) (*model.PendingBooking, error) {
	b, err := scanBooking(tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+` FROM pending_bookings b
		 WHERE b.match_id = ? AND b.user_id = ? AND b.status = 'pending'
		 ORDER BY b.created_at LIMIT 1 FOR UPDATE`, matchID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PendingBookingRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.PendingBooking) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO pending_bookings (id, match_id, user_id, yape_phone, yape_name, yape_code, payment_proof_url, status, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		b.ID, b.MatchID, b.UserID, b.YapePhone, b.YapeName, b.YapeCode, b.PaymentProofURL, b.Status, b.CreatedAt)
	return err
}

// LockTx reads a booking and holds its row lock.
func (r *PendingBookingRepo) LockTx(ctx context.Context, tx *sql.Tx, id string) (model.PendingBooking, error) {
	b, err := scanBooking(tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM pending_bookings b WHERE b.id = ? FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return b, reservation.ErrBookingNotFound
	}
	return b, err
}

// UpdateStatusTx records a review decision on a still pending booking.
func (r *PendingBookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id, status string, reviewedBy uint64, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE pending_bookings SET status=?, reviewed_by=?, reviewed_at=? WHERE id=? AND status='pending'",
		status, reviewedBy, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return reservation.ErrBookingAlreadyReviewed
	}
	return nil
}

// ListPending is the admin verification queue, newest first, with the
// match and the payer's profile name.
func (r *PendingBookingRepo) ListPending(ctx context.Context) ([]model.PendingBookingDetail, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+bookingColumns+`,
			m.title, DATE_FORMAT(m.match_date, '%Y-%m-%d'), TIME_FORMAT(m.match_time, '%H:%i'), m.price,
			COALESCE(pr.full_name, '')
		 FROM pending_bookings b
		 JOIN matches m ON m.id = b.match_id
		 LEFT JOIN profiles pr ON pr.user_id = b.user_id
		 WHERE b.status = 'pending'
		 ORDER BY b.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.PendingBookingDetail{}
	for rows.Next() {
		var d model.PendingBookingDetail
		b, err := scanBooking(rows, &d.MatchTitle, &d.MatchDate, &d.MatchTime, &d.MatchPrice, &d.FullName)
		if err != nil {
			return nil, err
		}
		d.PendingBooking = b
		out = append(out, d)
	}
	return out, rows.Err()
}
