package reservation

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/fuchiball-booking/internal/identity"
	"github.com/iliyamo/fuchiball-booking/internal/model"
	"github.com/iliyamo/fuchiball-booking/internal/queue"
)

// Decision is an admin verdict on a payment claim.
type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

// ReviewResult carries the reviewed booking and, for an approval, the
// participation that now holds the spot.
type ReviewResult struct {
	Booking       model.PendingBooking `json:"booking"`
	Participation *model.Participation `json:"participation,omitempty"`
}

// ReviewPendingBooking applies an admin decision to a pending booking.
// Approving re-checks capacity under the match lock; on a full match it
// fails with ErrCapacityExhausted and the booking stays pending.  If the
// player already holds a spot in the match that participation is reused
// and no capacity is taken.
func (s *Service) ReviewPendingBooking(ctx context.Context, p identity.Principal, bookingID string, d Decision) (*ReviewResult, error) {
	if err := s.requireAdmin(ctx, p); err != nil {
		return nil, err
	}
	if d != Approve && d != Reject {
		return nil, ErrInvalidDecision
	}
	now := s.clock()

	var (
		res     ReviewResult
		match   model.Match
		created bool
	)
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		b, err := tx.LockPendingBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != model.BookingPending {
			return ErrBookingAlreadyReviewed
		}
		status := model.BookingRejected
		if d == Approve {
			status = model.BookingVerified
			m, err := tx.LockMatch(ctx, b.MatchID)
			if err != nil {
				return err
			}
			part, err := tx.ActiveParticipation(ctx, b.MatchID, b.UserID)
			if err != nil {
				return err
			}
			if part == nil {
				if m.AvailableSpots < 1 {
					return ErrCapacityExhausted
				}
				if part, err = s.newParticipation(ctx, tx, b.MatchID, b.UserID, now); err != nil {
					return err
				}
				ok, err := tx.DecrementSpots(ctx, b.MatchID)
				if err != nil {
					return err
				}
				if !ok {
					return ErrCapacityExhausted
				}
				m.AvailableSpots--
				created = true
			}
			res.Participation = part
			match = m
		}
		if err := tx.UpdatePendingBookingStatus(ctx, b.ID, status, p.UserID, now.UTC()); err != nil {
			return err
		}
		at, reviewer := now.UTC(), p.UserID
		b.Status, b.ReviewedAt, b.ReviewedBy = status, &at, &reviewer
		res.Booking = b
		return nil
	})
	if err != nil {
		return nil, fail("review pending booking", err)
	}

	ev := queue.BookingReviewedEvent{
		BookingID:  res.Booking.ID,
		MatchID:    res.Booking.MatchID,
		UserID:     res.Booking.UserID,
		Decision:   string(d),
		Status:     res.Booking.Status,
		ReviewedBy: p.UserID,
		ReviewedAt: stamp(now),
	}
	if res.Participation != nil {
		ev.ParticipationID = res.Participation.ID
		ev.Code = res.Participation.Code
	}
	s.publish(ctx, queue.KeyBookingReviewed, ev)
	if created {
		s.invalidateCatalog(ctx)
		s.publish(ctx, queue.KeyParticipationConfirmed, participationEvent(res.Participation, match, "approval"))
	}
	log.WithFields(log.Fields{
		"booking_id": bookingID,
		"decision":   d,
		"admin_id":   p.UserID,
	}).Info("pending booking reviewed")
	return &res, nil
}

// ListPendingBookings is the admin verification queue, newest first.
func (s *Service) ListPendingBookings(ctx context.Context, p identity.Principal) ([]model.PendingBookingDetail, error) {
	if err := s.requireAdmin(ctx, p); err != nil {
		return nil, err
	}
	items, err := s.store.ListPendingBookings(ctx)
	if err != nil {
		return nil, fail("list pending bookings", err)
	}
	if s.objects != nil {
		for i := range items {
			if u := items[i].PaymentProofURL; u != nil && *u != "" {
				items[i].ProofLink = s.objects.PublicURL(*u)
			}
		}
	}
	return items, nil
}
