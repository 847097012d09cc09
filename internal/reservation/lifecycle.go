package reservation

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/fuchiball-booking/internal/identity"
	"github.com/iliyamo/fuchiball-booking/internal/model"
	"github.com/iliyamo/fuchiball-booking/internal/queue"
)

// Schedule is anything with a local start time: a match or its summary.
type Schedule interface {
	StartsAt(loc *time.Location) (time.Time, error)
}

// DeriveStatus is the status p should have at now.  A confirmed
// participation whose match started strictly before now is finished;
// every other status is returned unchanged.  The match schedule is read
// in now's location, so now must carry the venue timezone.
func DeriveStatus(p model.Participation, m Schedule, now time.Time) string {
	if p.Status != model.ParticipationConfirmed {
		return p.Status
	}
	start, err := m.StartsAt(now.Location())
	if err != nil {
		return p.Status
	}
	if start.Before(now) {
		return model.ParticipationFinished
	}
	return p.Status
}

// RefreshStatus applies DeriveStatus to p, stamping finished_at on the
// transition.  It reports whether p changed.
func RefreshStatus(p *model.Participation, m Schedule, now time.Time) bool {
	next := DeriveStatus(*p, m, now)
	if next == p.Status {
		return false
	}
	at := now.UTC()
	p.Status = next
	p.FinishedAt = &at
	return true
}

// Scope filters the "my matches" listing.
type Scope string

const (
	ScopeAll      Scope = ""
	ScopeUpcoming Scope = "upcoming"
	ScopeHistory  Scope = "history"
)

// ParseScope accepts "", "all", "upcoming" and "history".
func ParseScope(s string) (Scope, bool) {
	switch Scope(s) {
	case ScopeAll, "all":
		return ScopeAll, true
	case ScopeUpcoming, ScopeHistory:
		return Scope(s), true
	}
	return ScopeAll, false
}

func (sc Scope) includes(status string) bool {
	switch sc {
	case ScopeUpcoming:
		return status == model.ParticipationConfirmed
	case ScopeHistory:
		return status != model.ParticipationConfirmed
	}
	return true
}

// ListMyMatches returns p's participations with their match, bringing
// each status up to date first.  Participations that turned finished are
// persisted before returning.
func (s *Service) ListMyMatches(ctx context.Context, p identity.Principal, scope Scope) ([]model.ParticipationDetail, error) {
	if !p.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	rows, err := s.store.ListParticipationsByUser(ctx, p.UserID)
	if err != nil {
		return nil, fail("list participations", err)
	}
	now := s.clock()
	var finished []string
	for i := range rows {
		if RefreshStatus(&rows[i].Participation, rows[i].Match, now) {
			finished = append(finished, rows[i].ID)
		}
	}
	if len(finished) > 0 {
		err := s.store.WithinTx(ctx, func(tx Tx) error {
			return tx.MarkFinished(ctx, finished, now.UTC())
		})
		if err != nil {
			return nil, fail("finish participations", err)
		}
	}
	out := rows[:0]
	for _, r := range rows {
		if scope.includes(r.Status) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Cancel gives back the spot held by participationID.  Only the owner may
// cancel, only while confirmed, and only before the match starts.  The
// status change and the capacity increment commit together.
func (s *Service) Cancel(ctx context.Context, p identity.Principal, participationID string) (*model.Participation, error) {
	if !p.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	now := s.clock()
	var (
		part  model.Participation
		match model.Match
	)
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		if part, err = tx.LockParticipation(ctx, participationID); err != nil {
			return err
		}
		if part.UserID != p.UserID {
			return ErrNotAuthorized
		}
		if part.Status != model.ParticipationConfirmed {
			return ErrNotCancellable
		}
		if match, err = tx.LockMatch(ctx, part.MatchID); err != nil {
			return err
		}
		start, err := match.StartsAt(s.cfg.Location)
		if err != nil {
			return err
		}
		if !now.Before(start) {
			return ErrMatchStarted
		}
		if err := tx.MarkCancelled(ctx, part.ID, now.UTC()); err != nil {
			return err
		}
		ok, err := tx.IncrementSpots(ctx, part.MatchID)
		if err != nil {
			return err
		}
		if ok {
			match.AvailableSpots++
		} else {
			log.WithField("match_id", part.MatchID).Warn("capacity already at total on cancel")
		}
		at := now.UTC()
		part.Status, part.CancelledAt = model.ParticipationCancelled, &at
		return nil
	})
	if err != nil {
		return nil, fail("cancel participation", err)
	}
	s.invalidateCatalog(ctx)
	s.publish(ctx, queue.KeyParticipationCancelled, participationEvent(&part, match, ""))
	log.WithFields(log.Fields{"participation_id": part.ID, "user_id": p.UserID}).Info("participation cancelled")
	return &part, nil
}
