package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/fuchiball-booking/internal/model"
)

// ProfileRepo stores player profiles, one row per user.
type ProfileRepo struct{ db *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{db: db} }

// Get returns the profile of userID.  A user without a row gets an empty
// profile rather than an error.
func (r *ProfileRepo) Get(ctx context.Context, userID uint64) (model.Profile, error) {
	p := model.Profile{UserID: userID}
	var level sql.NullString
	err := r.db.QueryRowContext(ctx,
		"SELECT full_name, phone, level, updated_at FROM profiles WHERE user_id=?", userID).
		Scan(&p.FullName, &p.Phone, &level, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return p, err
	}
	p.Level = level.String
	return p, nil
}

// Upsert writes the profile, creating the row on first use.
func (r *ProfileRepo) Upsert(ctx context.Context, p model.Profile) error {
	var level any
	if p.Level != "" {
		level = p.Level
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, full_name, phone, level) VALUES (?,?,?,?)
		 ON DUPLICATE KEY UPDATE full_name=VALUES(full_name), phone=VALUES(phone), level=VALUES(level)`,
		p.UserID, p.FullName, p.Phone, level)
	return err
}
