package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLineParticipation(t *testing.T) {
	body, _ := json.Marshal(ParticipationEvent{
		ParticipationID: "p-1",
		MatchID:         "m-1",
		MatchTitle:      "Pichanga Miraflores",
		StartsAt:        "2026-10-20T20:00:00-05:00",
		UserID:          7,
		Code:            "123456",
		Status:          "confirmed",
		Source:          "direct",
		AvailableSpots:  9,
		At:              "2026-10-16T12:00:00Z",
	})

	line, err := FormatLine(KeyParticipationConfirmed, body)
	require.NoError(t, err)
	assert.Equal(t,
		`[2026-10-16T12:00:00Z] Participation confirmed | participation_id=p-1 | match_id=m-1 | match="Pichanga Miraflores" | starts_at=2026-10-20T20:00:00-05:00 | user_id=7 | code=123456 | source=direct | available_spots=9`+"\n",
		line)

	line, err = FormatLine(KeyParticipationCancelled, body)
	require.NoError(t, err)
	assert.Contains(t, line, "Participation cancelled")
}

func TestFormatLineReview(t *testing.T) {
	approved, _ := json.Marshal(BookingReviewedEvent{
		BookingID: "b-1", MatchID: "m-1", UserID: 7, Status: "verified",
		ReviewedBy: 1, ParticipationID: "p-9", Code: "654321", ReviewedAt: "now",
	})
	line, err := FormatLine(KeyBookingReviewed, approved)
	require.NoError(t, err)
	assert.Contains(t, line, "Payment claim verified")
	assert.Contains(t, line, "code=654321")

	rejected, _ := json.Marshal(BookingReviewedEvent{BookingID: "b-2", Status: "rejected", ReviewedAt: "now"})
	line, err = FormatLine(KeyBookingReviewed, rejected)
	require.NoError(t, err)
	assert.NotContains(t, line, "participation_id")
}

func TestFormatLineSubmitted(t *testing.T) {
	body, _ := json.Marshal(BookingSubmittedEvent{BookingID: "b-1", YapeName: "Ana", YapeCode: "777", HasProof: true, SubmittedAt: "now"})
	line, err := FormatLine(KeyBookingSubmitted, body)
	require.NoError(t, err)
	assert.Contains(t, line, `yape_name="Ana"`)
	assert.Contains(t, line, "proof=true")
}

func TestFormatLineRejectsBadInput(t *testing.T) {
	_, err := FormatLine("match.renamed", []byte(`{}`))
	assert.Error(t, err)

	_, err = FormatLine(KeyBookingSubmitted, []byte(`not json`))
	assert.Error(t, err)
}

func TestAppendLine(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	body, _ := json.Marshal(BookingSubmittedEvent{BookingID: "b-1", SubmittedAt: "t1"})

	require.NoError(t, appendLine(dir, KeyBookingSubmitted, body))
	require.NoError(t, appendLine(dir, KeyBookingSubmitted, body))

	raw, err := os.ReadFile(filepath.Join(dir, "booking.log"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(raw), "\n"))
}
