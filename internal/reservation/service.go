// Package reservation implements the booking workflow of a pichanga: joining
// a match directly or through a Yape payment claim, the admin review of
// those claims, and the life of a participation until it is cancelled or
// the match is played.
//
// Every operation that touches the capacity counter runs inside a single
// store transaction with the match row locked, so the existence check, the
// insert and the counter update commit or roll back together.
package reservation

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/fuchiball-booking/internal/identity"
	"github.com/iliyamo/fuchiball-booking/internal/model"
)

// Mode selects how RequestJoin turns a join request into a spot.
type Mode string

const (
	// ModeClaim files a pending booking that an admin approves.
	ModeClaim Mode = "claim"
	// ModeDirect confirms the spot immediately.
	ModeDirect Mode = "direct"
)

// Config tunes the workflow.
type Config struct {
	Mode          Mode
	Location      *time.Location // venue timezone; match schedules are local to it
	MaxProofBytes int64
}

// Deps are the collaborators of a Service.  Store and Policy are
// required; the others may be nil.
type Deps struct {
	Store   Store
	Policy  Authorizer
	Objects ObjectStore
	Events  Publisher
	Cache   CacheInvalidator
}

// Service runs the reservation workflow and the participation lifecycle.
type Service struct {
	cfg     Config
	store   Store
	policy  Authorizer
	objects ObjectStore
	events  Publisher
	cache   CacheInvalidator

	now   func() time.Time
	codes func(digits int) string
}

// New builds a Service.  It panics when a required dependency is missing.
func New(cfg Config, d Deps) *Service {
	if d.Store == nil || d.Policy == nil {
		panic("reservation: nil store or policy passed to New")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeClaim
	}
	if cfg.MaxProofBytes <= 0 {
		cfg.MaxProofBytes = 5 << 20
	}
	return &Service{
		cfg:     cfg,
		store:   d.Store,
		policy:  d.Policy,
		objects: d.Objects,
		events:  d.Events,
		cache:   d.Cache,
		now:     time.Now,
		codes:   randomCode,
	}
}

// Mode reports the configured join policy.
func (s *Service) Mode() Mode { return s.cfg.Mode }

// clock is the current instant in the venue timezone.
func (s *Service) clock() time.Time { return s.now().In(s.cfg.Location) }

func (s *Service) requireAdmin(ctx context.Context, p identity.Principal) error {
	if !p.Authenticated() {
		return ErrNotAuthenticated
	}
	ok, err := s.policy.IsAdmin(ctx, p)
	if err != nil {
		return fail("authorize", err)
	}
	if !ok {
		return ErrNotAuthorized
	}
	return nil
}

// checkBookable applies the join preconditions in order: the match must be
// active, not started, and have a free spot.
func (s *Service) checkBookable(m model.Match, now time.Time) error {
	if m.Status != model.MatchActive {
		return ErrMatchNotBookable
	}
	start, err := m.StartsAt(s.cfg.Location)
	if err != nil {
		return fail("read schedule", err)
	}
	if !now.Before(start) {
		return ErrMatchStarted
	}
	if m.AvailableSpots < 1 {
		return ErrCapacityExhausted
	}
	return nil
}

func (s *Service) publish(ctx context.Context, key string, ev any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, key, ev); err != nil {
		log.WithError(err).WithField("key", key).Warn("event publish failed")
	}
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		log.WithError(err).Warn("catalog cache invalidation failed")
	}
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }
