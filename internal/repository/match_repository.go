package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/fuchiball-booking/internal/model"
	"github.com/iliyamo/fuchiball-booking/internal/reservation"
)

// ErrSpotsBelowTaken is returned when an update would shrink a match below
// the number of spots already taken.
var ErrSpotsBelowTaken = fmt.Errorf("%w: total_spots below spots already taken", ErrConflict)

// matchSelect reads a match with its date and time already rendered in
// the wire layouts (YYYY-MM-DD, HH:MM).
const matchSelect = `SELECT m.id, m.title, m.location,
		DATE_FORMAT(m.match_date, '%Y-%m-%d'), TIME_FORMAT(m.match_time, '%H:%i'),
		m.total_spots, m.available_spots, m.price, m.level, m.status,
		m.is_last_minute, m.discount_percentage, m.duration, m.format,
		m.includes, m.description, m.created_by, m.created_at, m.updated_at
	FROM matches m`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(s rowScanner) (model.Match, error) {
	var (
		m         model.Match
		discount  sql.NullInt64
		includes  sql.NullString
		desc      sql.NullString
		createdBy sql.NullInt64
	)
	err := s.Scan(&m.ID, &m.Title, &m.Location, &m.Date, &m.Time,
		&m.TotalSpots, &m.AvailableSpots, &m.Price, &m.Level, &m.Status,
		&m.IsLastMinute, &discount, &m.Duration, &m.Format,
		&includes, &desc, &createdBy, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return m, err
	}
	m.DiscountPercentage = int(discount.Int64)
	m.Includes = includes.String
	m.Description = desc.String
	m.CreatedBy = uint64(createdBy.Int64)
	return m, nil
}

// MatchFilter narrows the public catalog.  From and To are inclusive
// calendar dates; empty means unbounded.
type MatchFilter struct {
	Status     string
	From       string
	To         string
	LastMinute *bool
	Level      string
	Limit      int
	Offset     int
}

// MatchInput carries the admin-editable fields of a match.
type MatchInput struct {
	Title       string          `json:"title"`
	Location    string          `json:"location"`
	Date        string          `json:"date"`
	Time        string          `json:"time"`
	TotalSpots  int             `json:"total_spots"`
	Price       decimal.Decimal `json:"price"`
	Level       string          `json:"level"`
	Duration    int             `json:"duration"`
	Format      int             `json:"format"`
	Includes    string          `json:"includes"`
	Description string          `json:"description"`
}

// MatchRepo manages the matches table.
type MatchRepo struct {
	db *sql.DB
}

func NewMatchRepo(db *sql.DB) *MatchRepo { return &MatchRepo{db: db} }

// List returns one page of matches ordered by schedule and the total
// number of matches that satisfy f.
func (r *MatchRepo) List(ctx context.Context, f MatchFilter) ([]model.Match, int64, error) {
	where := []string{}
	args := []any{}

	if f.Status != "" {
		where = append(where, "m.status = ?")
		args = append(args, f.Status)
	}
	if f.From != "" {
		where = append(where, "m.match_date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		where = append(where, "m.match_date <= ?")
		args = append(args, f.To)
	}
	if f.LastMinute != nil {
		where = append(where, "m.is_last_minute = ?")
		args = append(args, *f.LastMinute)
	}
	if f.Level != "" {
		where = append(where, "m.level = ?")
		args = append(args, f.Level)
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM matches m WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := matchSelect + " WHERE " + cond + " ORDER BY m.match_date ASC, m.match_time ASC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, append(append([]any{}, args...), f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Match, 0, f.Limit)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

// ListAll is the admin view: every match, newest first.
func (r *MatchRepo) ListAll(ctx context.Context, limit, offset int) ([]model.Match, error) {
	rows, err := r.db.QueryContext(ctx, matchSelect+" ORDER BY m.created_at DESC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetByID returns reservation.ErrMatchNotFound when id is unknown.
func (r *MatchRepo) GetByID(ctx context.Context, id string) (model.Match, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx, matchSelect+" WHERE m.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return m, reservation.ErrMatchNotFound
	}
	return m, err
}

// Create inserts an active match whose spots are all available.
func (r *MatchRepo) Create(ctx context.Context, in MatchInput, createdBy uint64) (model.Match, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO matches (id, title, location, match_date, match_time, total_spots, available_spots,
			price, level, status, duration, format, includes, description, created_by)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		id, in.Title, in.Location, in.Date, in.Time, in.TotalSpots, in.TotalSpots,
		in.Price.StringFixed(2), in.Level, model.MatchActive, in.Duration, in.Format,
		in.Includes, in.Description, createdBy)
	if err != nil {
		return model.Match{}, err
	}
	return r.GetByID(ctx, id)
}

// Update rewrites the editable fields.  Available spots move with the
// total so the number of taken spots is preserved.
func (r *MatchRepo) Update(ctx context.Context, id string, in MatchInput) (model.Match, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Match{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var cur model.Match
	err = tx.QueryRowContext(ctx,
		"SELECT total_spots, available_spots FROM matches WHERE id = ? FOR UPDATE", id).
		Scan(&cur.TotalSpots, &cur.AvailableSpots)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Match{}, reservation.ErrMatchNotFound
	}
	if err != nil {
		return model.Match{}, err
	}
	taken := cur.TakenSpots()
	if in.TotalSpots < taken {
		return model.Match{}, ErrSpotsBelowTaken
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE matches SET title=?, location=?, match_date=?, match_time=?, total_spots=?, available_spots=?,
			price=?, level=?, duration=?, format=?, includes=?, description=?
		 WHERE id=?`,
		in.Title, in.Location, in.Date, in.Time, in.TotalSpots, in.TotalSpots-taken,
		in.Price.StringFixed(2), in.Level, in.Duration, in.Format, in.Includes, in.Description, id)
	if err != nil {
		return model.Match{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Match{}, err
	}
	committed = true
	return r.GetByID(ctx, id)
}

// SetLastMinute flags or unflags a match.  Unflagging clears the discount.
func (r *MatchRepo) SetLastMinute(ctx context.Context, id string, on bool, discount int) error {
	var d any
	if on {
		d = discount
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE matches SET is_last_minute=?, discount_percentage=? WHERE id=?", on, d, id)
	if err != nil {
		return err
	}
	return r.checkFound(ctx, res, id)
}

// SetStatus activates or deactivates a match.
func (r *MatchRepo) SetStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE matches SET status=? WHERE id=?", status, id)
	if err != nil {
		return err
	}
	return r.checkFound(ctx, res, id)
}

// checkFound tells an unknown id apart from an update that changed nothing.
func (r *MatchRepo) checkFound(ctx context.Context, res sql.Result, id string) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM matches WHERE id=?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return reservation.ErrMatchNotFound
	}
	return err
}

// Delete removes a match nobody references.  Matches with participants or
// payment claims are refused with ErrConflict; cancel them instead.
func (r *MatchRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var one int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM matches WHERE id=? FOR UPDATE", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return reservation.ErrMatchNotFound
	}
	if err != nil {
		return err
	}
	var refs int
	err = tx.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM match_participants WHERE match_id=?) +
		        (SELECT COUNT(*) FROM pending_bookings WHERE match_id=?)`, id, id).Scan(&refs)
	if err != nil {
		return err
	}
	if refs > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM matches WHERE id=?", id); err != nil {
		if isReferenced(err) {
			return ErrConflict
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// LockTx reads the match and holds its row lock until tx ends.
func (r *MatchRepo) LockTx(ctx context.Context, tx *sql.Tx, id string) (model.Match, error) {
	m, err := scanMatch(tx.QueryRowContext(ctx, matchSelect+" WHERE m.id = ? FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return m, reservation.ErrMatchNotFound
	}
	return m, err
}

// DecrementSpotsTx takes one spot.  It reports false, changing nothing,
// when no spot is left.
func (r *MatchRepo) DecrementSpotsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE matches SET available_spots = available_spots - 1 WHERE id = ? AND available_spots > 0", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// IncrementSpotsTx gives one spot back.  It reports false, changing
// nothing, when the match is already empty.
func (r *MatchRepo) IncrementSpotsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE matches SET available_spots = available_spots + 1 WHERE id = ? AND available_spots < total_spots", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
