package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/fuchiball-booking/internal/model"
	"github.com/iliyamo/fuchiball-booking/internal/reservation"
)

// ParticipantRepo manages match_participants.
type ParticipantRepo struct {
	db *sql.DB
}

func NewParticipantRepo(db *sql.DB) *ParticipantRepo { return &ParticipantRepo{db: db} }

const participantColumns = "p.id, p.match_id, p.user_id, p.code, p.status, p.joined_at, p.cancelled_at, p.finished_at"

func scanParticipation(s rowScanner, extra ...any) (model.Participation, error) {
	var (
		p         model.Participation
		cancelled sql.NullTime
		finished  sql.NullTime
	)
	dest := append([]any{&p.ID, &p.MatchID, &p.UserID, &p.Code, &p.Status, &p.JoinedAt, &cancelled, &finished}, extra...)
	if err := s.Scan(dest...); err != nil {
		return p, err
	}
	if cancelled.Valid {
		t := cancelled.Time
		p.CancelledAt = &t
	}
	if finished.Valid {
		t := finished.Time
		p.FinishedAt = &t
	}
	return p, nil
}

// ActiveForUserTx returns the confirmed participation of userID in
// matchID, or nil.
func (r *ParticipantRepo) ActiveForUserTx(ctx context.Context, tx *sql.Tx, matchID string, userID uint64) (*model.Participation, error) {
	p, err := scanParticipation(tx.QueryRowContext(ctx,
		"SELECT "+participantColumns+` FROM match_participants p
		 WHERE p.match_id = ? AND p.user_id = ? AND p.status = 'confirmed'
		 ORDER BY p.joined_at LIMIT 1 FOR UPDATE`, matchID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CodeTakenTx reports whether any participation already uses code.
func (r *ParticipantRepo) CodeTakenTx(ctx context.Context, tx *sql.Tx, code string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM match_participants WHERE code = ?", code).Scan(&n)
	return n > 0, err
}

// InsertTx stores p.  A clash on the unique code index is reported as
// reservation.ErrCodeTaken; other duplicates are returned as they are.
func (r *ParticipantRepo) InsertTx(ctx context.Context, tx *sql.Tx, p *model.Participation) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO match_participants (id, match_id, user_id, code, status, joined_at)
		 VALUES (?,?,?,?,?,?)`,
		p.ID, p.MatchID, p.UserID, p.Code, p.Status, p.JoinedAt)
	if isDuplicateKey(err, "uq_participants_code") {
		return reservation.ErrCodeTaken
	}
	return err
}

// LockTx reads a participation and holds its row lock.
func (r *ParticipantRepo) LockTx(ctx context.Context, tx *sql.Tx, id string) (model.Participation, error) {
	p, err := scanParticipation(tx.QueryRowContext(ctx,
		"SELECT "+participantColumns+" FROM match_participants p WHERE p.id = ? FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, reservation.ErrParticipationNotFound
	}
	return p, err
}

// MarkCancelledTx moves a confirmed participation to cancelled.
func (r *ParticipantRepo) MarkCancelledTx(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE match_participants SET status='cancelled', cancelled_at=? WHERE id=? AND status='confirmed'", at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return reservation.ErrNotCancellable
	}
	return nil
}

// MarkFinishedTx moves the listed participations that are still confirmed
// to finished.
func (r *ParticipantRepo) MarkFinishedTx(ctx context.Context, tx *sql.Tx, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, at)
	for _, id := range ids {
		args = append(args, id)
	}
	q := "UPDATE match_participants SET status='finished', finished_at=? WHERE status='confirmed' AND id IN (" +
		strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")"
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

const participantDetailSelect = "SELECT " + participantColumns + `,
		m.title, m.location, DATE_FORMAT(m.match_date, '%Y-%m-%d'), TIME_FORMAT(m.match_time, '%H:%i'),
		m.price, m.is_last_minute, m.discount_percentage, m.status
	FROM match_participants p
	JOIN matches m ON m.id = p.match_id`

func (r *ParticipantRepo) listDetails(ctx context.Context, q string, args ...any) ([]model.ParticipationDetail, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ParticipationDetail{}
	for rows.Next() {
		var (
			m        model.Match
			price    decimal.Decimal
			discount sql.NullInt64
		)
		p, err := scanParticipation(rows, &m.Title, &m.Location, &m.Date, &m.Time,
			&price, &m.IsLastMinute, &discount, &m.Status)
		if err != nil {
			return nil, err
		}
		m.Price = price
		m.DiscountPercentage = int(discount.Int64)
		out = append(out, model.ParticipationDetail{Participation: p, Match: m.Summary()})
	}
	return out, rows.Err()
}

// ListByUser returns every participation of userID with its match, most
// recent match first.
func (r *ParticipantRepo) ListByUser(ctx context.Context, userID uint64) ([]model.ParticipationDetail, error) {
	return r.listDetails(ctx,
		participantDetailSelect+" WHERE p.user_id = ? ORDER BY m.match_date DESC, m.match_time DESC", userID)
}

// ListConfirmedUpTo returns confirmed participations in matches dated on
// or before date.
func (r *ParticipantRepo) ListConfirmedUpTo(ctx context.Context, date string) ([]model.ParticipationDetail, error) {
	return r.listDetails(ctx,
		participantDetailSelect+" WHERE p.status = 'confirmed' AND m.match_date <= ?", date)
}

// ListByMatch returns the participations of a match for the admin view.
func (r *ParticipantRepo) ListByMatch(ctx context.Context, matchID string) ([]model.Participation, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+participantColumns+" FROM match_participants p WHERE p.match_id = ? ORDER BY p.joined_at", matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Participation{}
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
