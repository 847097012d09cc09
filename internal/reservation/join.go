package reservation

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/fuchiball-booking/internal/identity"
	"github.com/iliyamo/fuchiball-booking/internal/model"
	"github.com/iliyamo/fuchiball-booking/internal/queue"
)

// PaymentClaim is what a player submits after paying through Yape.
type PaymentClaim struct {
	Phone string
	Name  string
	Code  string // transaction reference shown by the Yape app
	Proof *Proof
}

// Proof is an optional screenshot of the payment.
type Proof struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

var proofTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// normalizePhone reduces a Peruvian mobile number to its nine digits.
// Spaces and dashes are dropped and a +51 or 51 country prefix is
// stripped.  It reports false unless the result is nine digits starting
// with 9.
func normalizePhone(raw string) (string, bool) {
	phone := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, raw)
	phone = strings.TrimPrefix(phone, "+")
	if len(phone) == 11 && strings.HasPrefix(phone, "51") {
		phone = phone[2:]
	}
	if len(phone) != 9 || phone[0] != '9' || strings.IndexFunc(phone, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return phone, false
	}
	return phone, true
}

// normalize trims the claim and checks it.
func (c *PaymentClaim) normalize(maxProof int64) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Code = strings.TrimSpace(c.Code)
	phone, ok := normalizePhone(c.Phone)
	c.Phone = phone
	if !ok {
		return fmt.Errorf("%w: yape_phone must be a 9 digit mobile number", ErrInvalidClaim)
	}
	if c.Name == "" || len(c.Name) > 255 {
		return fmt.Errorf("%w: yape_name is required", ErrInvalidClaim)
	}
	if c.Code == "" || len(c.Code) > 64 {
		return fmt.Errorf("%w: yape_code is required", ErrInvalidClaim)
	}
	if c.Proof != nil {
		ct, _, err := mime.ParseMediaType(c.Proof.ContentType)
		if err != nil {
			return fmt.Errorf("%w: proof content type: %v", ErrInvalidClaim, err)
		}
		if _, ok := proofTypes[ct]; !ok {
			return fmt.Errorf("%w: proof must be an image or pdf", ErrInvalidClaim)
		}
		c.Proof.ContentType = ct
		if c.Proof.Size > maxProof {
			return fmt.Errorf("%w: proof larger than %d bytes", ErrInvalidClaim, maxProof)
		}
		if c.Proof.Body == nil {
			return fmt.Errorf("%w: empty proof", ErrInvalidClaim)
		}
	}
	return nil
}

// JoinResult is the outcome of RequestJoin: a confirmed participation or a
// pending booking awaiting review.  Created is false when an existing
// record was returned.
type JoinResult struct {
	Participation *model.Participation  `json:"participation,omitempty"`
	Booking       *model.PendingBooking `json:"booking,omitempty"`
	Created       bool                  `json:"created"`
}

// AwaitingReview reports whether the caller holds a pending booking
// rather than a spot.
func (r *JoinResult) AwaitingReview() bool {
	return r.Participation == nil && r.Booking != nil
}

// RequestJoin moves p towards a spot in matchID.  An existing confirmed
// participation (or, in claim mode, pending booking) is returned as is.
// In direct mode claim is ignored; in claim mode it is required.
func (s *Service) RequestJoin(ctx context.Context, p identity.Principal, matchID string, claim *PaymentClaim) (*JoinResult, error) {
	if !p.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	if s.cfg.Mode == ModeDirect {
		return s.joinDirect(ctx, p, matchID)
	}
	return s.submitClaim(ctx, p, matchID, claim)
}

// existing looks for a participation or, when withBookings is set, a
// pending booking the user already holds for matchID.
func existing(ctx context.Context, tx Tx, matchID string, userID uint64, withBookings bool) (*JoinResult, error) {
	part, err := tx.ActiveParticipation(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}
	if part != nil {
		return &JoinResult{Participation: part}, nil
	}
	if !withBookings {
		return nil, nil
	}
	b, err := tx.PendingBookingFor(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}
	if b != nil {
		return &JoinResult{Booking: b}, nil
	}
	return nil, nil
}

func (s *Service) joinDirect(ctx context.Context, p identity.Principal, matchID string) (*JoinResult, error) {
	now := s.clock()
	var (
		res   *JoinResult
		match model.Match
	)
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		m, err := tx.LockMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if res, err = existing(ctx, tx, matchID, p.UserID, false); err != nil || res != nil {
			return err
		}
		if err := s.checkBookable(m, now); err != nil {
			return err
		}
		part, err := s.newParticipation(ctx, tx, matchID, p.UserID, now)
		if err != nil {
			return err
		}
		ok, err := tx.DecrementSpots(ctx, matchID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCapacityExhausted
		}
		m.AvailableSpots--
		match = m
		res = &JoinResult{Participation: part, Created: true}
		return nil
	})
	if err != nil {
		return nil, fail("join match", err)
	}
	if res.Created {
		s.invalidateCatalog(ctx)
		s.publish(ctx, queue.KeyParticipationConfirmed, participationEvent(res.Participation, match, "direct"))
		log.WithFields(log.Fields{"match_id": matchID, "user_id": p.UserID, "code": res.Participation.Code}).Info("participation confirmed")
	}
	return res, nil
}

func (s *Service) submitClaim(ctx context.Context, p identity.Principal, matchID string, claim *PaymentClaim) (*JoinResult, error) {
	if claim == nil {
		return nil, fmt.Errorf("%w: payment details are required", ErrInvalidClaim)
	}
	if err := claim.normalize(s.cfg.MaxProofBytes); err != nil {
		return nil, err
	}
	now := s.clock()

	// Answer repeats and refusals before anything is uploaded.
	var res *JoinResult
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		m, err := tx.LockMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if res, err = existing(ctx, tx, matchID, p.UserID, true); err != nil || res != nil {
			return err
		}
		return s.checkBookable(m, now)
	})
	if err != nil {
		return nil, fail("submit payment claim", err)
	}
	if res != nil {
		return res, nil
	}

	var proofPath *string
	if claim.Proof != nil {
		stored, err := s.uploadProof(ctx, matchID, claim.Proof)
		if err != nil {
			return nil, err
		}
		proofPath = &stored
	}

	var match model.Match
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		m, err := tx.LockMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if res, err = existing(ctx, tx, matchID, p.UserID, true); err != nil || res != nil {
			return err
		}
		if err := s.checkBookable(m, now); err != nil {
			return err
		}
		b := &model.PendingBooking{
			ID:              uuid.NewString(),
			MatchID:         matchID,
			UserID:          p.UserID,
			YapePhone:       claim.Phone,
			YapeName:        claim.Name,
			YapeCode:        claim.Code,
			PaymentProofURL: proofPath,
			Status:          model.BookingPending,
			CreatedAt:       now.UTC(),
		}
		if err := tx.InsertPendingBooking(ctx, b); err != nil {
			return err
		}
		match = m
		res = &JoinResult{Booking: b, Created: true}
		return nil
	})
	if err != nil {
		return nil, fail("submit payment claim", err)
	}
	if !res.Created {
		if proofPath != nil {
			log.WithField("path", *proofPath).Warn("payment proof orphaned by a concurrent submission")
		}
		return res, nil
	}
	s.publish(ctx, queue.KeyBookingSubmitted, queue.BookingSubmittedEvent{
		BookingID:   res.Booking.ID,
		MatchID:     matchID,
		MatchTitle:  match.Title,
		UserID:      p.UserID,
		YapeName:    claim.Name,
		YapeCode:    claim.Code,
		HasProof:    proofPath != nil,
		SubmittedAt: stamp(now),
	})
	log.WithFields(log.Fields{"match_id": matchID, "user_id": p.UserID, "booking_id": res.Booking.ID}).Info("payment claim submitted")
	return res, nil
}

func (s *Service) uploadProof(ctx context.Context, matchID string, pr *Proof) (string, error) {
	if s.objects == nil {
		return "", fmt.Errorf("%w: no object storage configured", ErrUploadFailed)
	}
	ext := strings.ToLower(path.Ext(pr.Filename))
	if ext == "" || len(ext) > 5 {
		ext = proofTypes[pr.ContentType]
	}
	name := fmt.Sprintf("%s%s/%s%s", ProofDir, matchID, uuid.NewString(), ext)
	stored, err := s.objects.Upload(ctx, name, pr.ContentType, io.LimitReader(pr.Body, s.cfg.MaxProofBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	return stored, nil
}

func participationEvent(p *model.Participation, m model.Match, source string) queue.ParticipationEvent {
	at := p.JoinedAt
	switch {
	case p.CancelledAt != nil:
		at = *p.CancelledAt
	case p.FinishedAt != nil:
		at = *p.FinishedAt
	}
	return queue.ParticipationEvent{
		ParticipationID: p.ID,
		MatchID:         p.MatchID,
		MatchTitle:      m.Title,
		StartsAt:        m.Date + "T" + m.Time,
		UserID:          p.UserID,
		Code:            p.Code,
		Status:          p.Status,
		Source:          source,
		AvailableSpots:  m.AvailableSpots,
		At:              stamp(at),
	}
}
