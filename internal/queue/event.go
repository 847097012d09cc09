// Package queue defines the domain events exchanged over the message broker
// and the audit consumer that records them.
package queue

// Exchange is the durable topic exchange every event is published to.
const Exchange = "fuchiball.events"

// Routing keys.  On NATS the same keys are used as subject suffixes.
const (
	KeyParticipationConfirmed = "participation.confirmed"
	KeyParticipationCancelled = "participation.cancelled"
	KeyBookingSubmitted       = "booking.submitted"
	KeyBookingReviewed        = "booking.reviewed"
)

// ParticipationEvent is published when a spot is taken or given back.
// Source tells how a confirmed participation came to be: "direct" or
// "approval".
type ParticipationEvent struct {
	ParticipationID string `json:"participation_id"`
	MatchID         string `json:"match_id"`
	MatchTitle      string `json:"match_title"`
	StartsAt        string `json:"starts_at"`
	UserID          uint64 `json:"user_id"`
	Code            string `json:"code"`
	Status          string `json:"status"`
	Source          string `json:"source,omitempty"`
	AvailableSpots  int    `json:"available_spots"`
	At              string `json:"at"`
}

// BookingSubmittedEvent is published when a player files a payment claim.
type BookingSubmittedEvent struct {
	BookingID   string `json:"booking_id"`
	MatchID     string `json:"match_id"`
	MatchTitle  string `json:"match_title"`
	UserID      uint64 `json:"user_id"`
	YapeName    string `json:"yape_name"`
	YapeCode    string `json:"yape_code"`
	HasProof    bool   `json:"has_proof"`
	SubmittedAt string `json:"submitted_at"`
}

// BookingReviewedEvent is published once an admin decides on a claim.
// ParticipationID and Code are set only for approvals.
type BookingReviewedEvent struct {
	BookingID       string `json:"booking_id"`
	MatchID         string `json:"match_id"`
	UserID          uint64 `json:"user_id"`
	Decision        string `json:"decision"`
	Status          string `json:"status"`
	ReviewedBy      uint64 `json:"reviewed_by"`
	ParticipationID string `json:"participation_id,omitempty"`
	Code            string `json:"code,omitempty"`
	ReviewedAt      string `json:"reviewed_at"`
}
