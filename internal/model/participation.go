package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Participation statuses.  Confirmed is the only initial state; finished
// and cancelled are terminal.
const (
	ParticipationConfirmed = "confirmed"
	ParticipationCancelled = "cancelled"
	ParticipationFinished  = "finished"
)

// Participation records one user's spot in one match (a row of
// match_participants).  Code is the confirmation code shown to the
// player, e.g. FBC-4821.
type Participation struct {
	ID          string     `json:"id"`
	MatchID     string     `json:"match_id"`
	UserID      uint64     `json:"user_id"`
	Code        string     `json:"code"`
	Status      string     `json:"status"`
	JoinedAt    time.Time  `json:"joined_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// MatchSummary is the slice of a match shown next to a participation.
type MatchSummary struct {
	Title      string          `json:"title"`
	Location   string          `json:"location"`
	Date       string          `json:"date"`
	Time       string          `json:"time"`
	FinalPrice decimal.Decimal `json:"final_price"`
	Status     string          `json:"status"`
}

// StartsAt interprets the summarised schedule in loc.
func (s MatchSummary) StartsAt(loc *time.Location) (time.Time, error) {
	return Match{Date: s.Date, Time: s.Time}.StartsAt(loc)
}

// ParticipationDetail is a participation joined with its match, as listed
// on the "my matches" screen.
type ParticipationDetail struct {
	Participation
	Match MatchSummary `json:"match"`
}

// Summary projects a match onto a MatchSummary.
func (m Match) Summary() MatchSummary {
	return MatchSummary{
		Title:      m.Title,
		Location:   m.Location,
		Date:       m.Date,
		Time:       m.Time,
		FinalPrice: m.FinalPrice(),
		Status:     m.Status,
	}
}
