package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pending booking statuses.
const (
	BookingPending  = "pending"
	BookingVerified = "verified"
	BookingRejected = "rejected"
)

// PendingBooking is a Yape payment claim waiting for an admin to check it
// against the wallet.  YapeCode is whatever transaction reference the
// player typed; nothing verifies it automatically.  PaymentProofURL holds
// the object-storage path of the uploaded screenshot, if any.
type PendingBooking struct {
	ID              string     `json:"id"`
	MatchID         string     `json:"match_id"`
	UserID          uint64     `json:"user_id"`
	YapePhone       string     `json:"yape_phone"`
	YapeName        string     `json:"yape_name"`
	YapeCode        string     `json:"yape_code"`
	PaymentProofURL *string    `json:"payment_proof_url,omitempty"`
	Status          string     `json:"status"`
	ReviewedBy      *uint64    `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// PendingBookingDetail is a row of the admin verification queue.
type PendingBookingDetail struct {
	PendingBooking
	MatchTitle string          `json:"match_title"`
	MatchDate  string          `json:"match_date"`
	MatchTime  string          `json:"match_time"`
	MatchPrice decimal.Decimal `json:"match_price"`
	FullName   string          `json:"full_name"`
	ProofLink  string          `json:"proof_link,omitempty"`
}
