package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/fuchiball-booking/internal/model"
	"github.com/iliyamo/fuchiball-booking/internal/reservation"
)

// ReservationStore is the MySQL reservation.Store.  It groups the match,
// participant and pending booking repositories under one transaction.
type ReservationStore struct {
	db           *sql.DB
	Matches      *MatchRepo
	Participants *ParticipantRepo
	Bookings     *PendingBookingRepo
}

func NewReservationStore(db *sql.DB) *ReservationStore {
	return &ReservationStore{
		db:           db,
		Matches:      NewMatchRepo(db),
		Participants: NewParticipantRepo(db),
		Bookings:     NewPendingBookingRepo(db),
	}
}

// WithinTx runs fn inside a READ COMMITTED transaction.  Row locks taken
// by the Tx methods serialise concurrent workflows on the same match.
func (s *ReservationStore) WithinTx(ctx context.Context, fn func(tx reservation.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&storeTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *ReservationStore) ListParticipationsByUser(ctx context.Context, userID uint64) ([]model.ParticipationDetail, error) {
	return s.Participants.ListByUser(ctx, userID)
}

func (s *ReservationStore) ListPendingBookings(ctx context.Context) ([]model.PendingBookingDetail, error) {
	return s.Bookings.ListPending(ctx)
}

func (s *ReservationStore) ListConfirmedUpTo(ctx context.Context, date string) ([]model.ParticipationDetail, error) {
	return s.Participants.ListConfirmedUpTo(ctx, date)
}

type storeTx struct {
	s  *ReservationStore
	tx *sql.Tx
}

func (t *storeTx) LockMatch(ctx context.Context, id string) (model.Match, error) {
	return t.s.Matches.LockTx(ctx, t.tx, id)
}

func (t *storeTx) ActiveParticipation(ctx context.Context, matchID string, userID uint64) (*model.Participation, error) {
	return t.s.Participants.ActiveForUserTx(ctx, t.tx, matchID, userID)
}

func (t *storeTx) CodeTaken(ctx context.Context, code string) (bool, error) {
	return t.s.Participants.CodeTakenTx(ctx, t.tx, code)
}

func (t *storeTx) InsertParticipation(ctx context.Context, p *model.Participation) error {
	return t.s.Participants.InsertTx(ctx, t.tx, p)
}

func (t *storeTx) DecrementSpots(ctx context.Context, matchID string) (bool, error) {
	return t.s.Matches.DecrementSpotsTx(ctx, t.tx, matchID)
}

func (t *storeTx) IncrementSpots(ctx context.Context, matchID string) (bool, error) {
	return t.s.Matches.IncrementSpotsTx(ctx, t.tx, matchID)
}

func (t *storeTx) PendingBookingFor(ctx context.Context, matchID string, userID uint64) (*model.PendingBooking, error) {
	return t.s.Bookings.PendingForUserTx(ctx, t.tx, matchID, userID)
}

func (t *storeTx) InsertPendingBooking(ctx context.Context, b *model.PendingBooking) error {
	return t.s.Bookings.InsertTx(ctx, t.tx, b)
}

func (t *storeTx) LockPendingBooking(ctx context.Context, id string) (model.PendingBooking, error) {
	return t.s.Bookings.LockTx(ctx, t.tx, id)
}

func (t *storeTx) UpdatePendingBookingStatus(ctx context.Context, id, status string, reviewedBy uint64, at time.Time) error {
	return t.s.Bookings.UpdateStatusTx(ctx, t.tx, id, status, reviewedBy, at)
}

func (t *storeTx) LockParticipation(ctx context.Context, id string) (model.Participation, error) {
	return t.s.Participants.LockTx(ctx, t.tx, id)
}

func (t *storeTx) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	return t.s.Participants.MarkCancelledTx(ctx, t.tx, id, at)
}

func (t *storeTx) MarkFinished(ctx context.Context, ids []string, at time.Time) error {
	return t.s.Participants.MarkFinishedTx(ctx, t.tx, ids, at)
}

var _ reservation.Store = (*ReservationStore)(nil)
