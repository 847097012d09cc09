package reservation

import (
	"errors"
	"fmt"
)

// Errors returned by the workflow.  Handlers translate them to HTTP status
// codes with errors.Is; anything else is wrapped in ErrPersistenceFailed.
var (
	ErrNotAuthenticated       = errors.New("not authenticated")
	ErrNotAuthorized          = errors.New("not authorized")
	ErrCapacityExhausted      = errors.New("no spots left for this match")
	ErrUploadFailed           = errors.New("payment proof upload failed")
	ErrPersistenceFailed      = errors.New("persistence failed")
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchNotBookable       = errors.New("match is not open for booking")
	ErrMatchStarted           = errors.New("match already started")
	ErrBookingNotFound        = errors.New("pending booking not found")
	ErrBookingAlreadyReviewed = errors.New("pending booking already reviewed")
	ErrParticipationNotFound  = errors.New("participation not found")
	ErrNotCancellable         = errors.New("participation is not cancellable")
	ErrInvalidClaim           = errors.New("invalid payment claim")
	ErrInvalidDecision        = errors.New("decision must be approve or reject")
	ErrCodeSpaceExhausted     = errors.New("could not allocate a unique confirmation code")
)

// ErrCodeTaken is returned by Tx.InsertParticipation when the code is
// already used by another participation.
var ErrCodeTaken = errors.New("confirmation code taken")

var domainErrors = []error{
	ErrNotAuthenticated, ErrNotAuthorized, ErrCapacityExhausted,
	ErrUploadFailed, ErrPersistenceFailed, ErrMatchNotFound,
	ErrMatchNotBookable, ErrMatchStarted, ErrBookingNotFound,
	ErrBookingAlreadyReviewed, ErrParticipationNotFound, ErrNotCancellable,
	ErrInvalidClaim, ErrInvalidDecision, ErrCodeSpaceExhausted,
}

// fail passes domain errors through and wraps store failures so callers
// can still reach the cause.
func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistenceFailed, err)
}
