package reservation

import (
	"context"
	"io"
	"time"

	"github.com/iliyamo/fuchiball-booking/internal/identity"
	"github.com/iliyamo/fuchiball-booking/internal/model"
)

// Store is the transactional data store behind the workflow.  Lookups
// return ErrMatchNotFound, ErrBookingNotFound or ErrParticipationNotFound
// for missing rows.
type Store interface {
	// WithinTx runs fn in one database transaction, committing when fn
	// returns nil and rolling back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	ListParticipationsByUser(ctx context.Context, userID uint64) ([]model.ParticipationDetail, error)
	ListPendingBookings(ctx context.Context) ([]model.PendingBookingDetail, error)
	// ListConfirmedUpTo returns confirmed participations whose match date
	// is on or before date (YYYY-MM-DD).
	ListConfirmedUpTo(ctx context.Context, date string) ([]model.ParticipationDetail, error)
}

// Tx is the set of writes and locking reads available inside WithinTx.
type Tx interface {
	// LockMatch reads the match row and holds its lock until the
	// transaction ends, serialising every capacity decision on it.
	LockMatch(ctx context.Context, id string) (model.Match, error)
	// ActiveParticipation returns the confirmed participation of userID in
	// matchID, or nil when there is none.
	ActiveParticipation(ctx context.Context, matchID string, userID uint64) (*model.Participation, error)
	CodeTaken(ctx context.Context, code string) (bool, error)
	InsertParticipation(ctx context.Context, p *model.Participation) error
	// DecrementSpots and IncrementSpots report false when the clamp
	// (0 <= available_spots <= total_spots) refused the change.
	DecrementSpots(ctx context.Context, matchID string) (bool, error)
	IncrementSpots(ctx context.Context, matchID string) (bool, error)

	// PendingBookingFor returns the pending booking of userID for matchID,
	// or nil.
	PendingBookingFor(ctx context.Context, matchID string, userID uint64) (*model.PendingBooking, error)
	InsertPendingBooking(ctx context.Context, b *model.PendingBooking) error
	LockPendingBooking(ctx context.Context, id string) (model.PendingBooking, error)
	UpdatePendingBookingStatus(ctx context.Context, id, status string, reviewedBy uint64, at time.Time) error

	LockParticipation(ctx context.Context, id string) (model.Participation, error)
	MarkCancelled(ctx context.Context, id string, at time.Time) error
	// MarkFinished moves the listed participations that are still
	// confirmed to finished.
	MarkFinished(ctx context.Context, ids []string, at time.Time) error
}

// Authorizer decides whether a principal may perform admin operations.
type Authorizer interface {
	IsAdmin(ctx context.Context, p identity.Principal) (bool, error)
}

// ProofDir is the object-store directory every payment proof is kept
// under.  An ObjectStore's PublicURL for a stored proof must resolve to
// the proof download route.
const ProofDir = "proofs/"

// ObjectStore keeps uploaded payment proofs.
type ObjectStore interface {
	Upload(ctx context.Context, path, contentType string, r io.Reader) (string, error)
	PublicURL(storedPath string) string
}

// Publisher emits domain events after a transaction commits.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// CacheInvalidator drops cached catalog responses after a capacity change.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}
