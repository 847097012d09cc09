package reservation

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/fuchiball-booking/internal/model"
)

const (
	codePrefix      = "FBC-"
	codeDigits      = 4
	widenAfter      = 5 // collisions tolerated before adding a digit
	maxCodeAttempts = 20
)

// randomCode draws a confirmation code with the given number of digits
// and no leading zero.
func randomCode(digits int) string {
	lo := 1
	for i := 1; i < digits; i++ {
		lo *= 10
	}
	return codePrefix + strconv.Itoa(lo+rand.IntN(9*lo))
}

// newParticipation inserts a confirmed participation for userID in
// matchID under a code no other participation holds.
func (s *Service) newParticipation(ctx context.Context, tx Tx, matchID string, userID uint64, now time.Time) (*model.Participation, error) {
	for collisions := 0; collisions < maxCodeAttempts; collisions++ {
		code := s.codes(codeDigits + collisions/widenAfter)
		taken, err := tx.CodeTaken(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}
		p := &model.Participation{
			ID:       uuid.NewString(),
			MatchID:  matchID,
			UserID:   userID,
			Code:     code,
			Status:   model.ParticipationConfirmed,
			JoinedAt: now.UTC(),
		}
		err = tx.InsertParticipation(ctx, p)
		if errors.Is(err, ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, ErrCodeSpaceExhausted
}
