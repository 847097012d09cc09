package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Match statuses.  Inactive covers both a paused listing and a match the
// admin cancelled.
const (
	MatchActive   = "active"
	MatchInactive = "inactive"
)

// Skill levels a match is advertised for.
const (
	LevelBasic        = "Básico"
	LevelIntermediate = "Intermedio"
	LevelAdvanced     = "Avanzado"
)

// DateLayout and ClockLayout are the wire formats of Match.Date and Match.Time.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Match is one bookable pichanga.  AvailableSpots is the capacity
// counter; it is only ever changed through the clamped increment and
// decrement statements of the repository, so it stays within
// [0, TotalSpots].
//
// Fields:
//
//	ID                 – opaque identifier (UUID).
//	Date, Time         – local calendar date and wall-clock time at the venue.
//	TotalSpots         – fixed capacity, positive.
//	AvailableSpots     – spots not yet taken by confirmed participations.
//	Price              – price per player before any last-minute discount.
//	DiscountPercentage – 0–100, meaningful only when IsLastMinute.
//	Duration           – minutes.
//	Format             – players per side.
type Match struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Location           string          `json:"location"`
	Date               string          `json:"date"`
	Time               string          `json:"time"`
	TotalSpots         int             `json:"total_spots"`
	AvailableSpots     int             `json:"available_spots"`
	Price              decimal.Decimal `json:"price"`
	Level              string          `json:"level"`
	Status             string          `json:"status"`
	IsLastMinute       bool            `json:"is_last_minute"`
	DiscountPercentage int             `json:"discount_percentage"`
	Duration           int             `json:"duration"`
	Format             int             `json:"format"`
	Includes           string          `json:"includes"`
	Description        string          `json:"description"`
	CreatedBy          uint64          `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// FinalPrice is the price a player pays: the list price minus the
// last-minute discount when the match is flagged, rounded to cents.
func (m Match) FinalPrice() decimal.Decimal {
	if !m.IsLastMinute || m.DiscountPercentage <= 0 {
		return m.Price.Round(2)
	}
	off := m.Price.Mul(decimal.NewFromInt(int64(m.DiscountPercentage))).Div(decimal.NewFromInt(100))
	return m.Price.Sub(off).Round(2)
}

// StartsAt interprets the match's date and time as a wall-clock instant
// in loc.
func (m Match) StartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, m.Date+" "+m.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("match %s: bad schedule %q %q: %w", m.ID, m.Date, m.Time, err)
	}
	return t, nil
}

// TakenSpots is the number of spots held by confirmed participations.
func (m Match) TakenSpots() int { return m.TotalSpots - m.AvailableSpots }

// ValidLevel reports whether s is one of the advertised skill levels.
func ValidLevel(s string) bool {
	switch s {
	case LevelBasic, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}
