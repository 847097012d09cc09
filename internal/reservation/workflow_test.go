package reservation_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/fuchiball-booking/internal/identity"
	"github.com/iliyamo/fuchiball-booking/internal/model"
	"github.com/iliyamo/fuchiball-booking/internal/queue"
	"github.com/iliyamo/fuchiball-booking/internal/reservation"
	"github.com/iliyamo/fuchiball-booking/internal/reservation/reservationtest"
)

var (
	lima, _ = time.LoadLocation("America/Lima")
	codeRE  = regexp.MustCompile(`^FBC-\d{4}$`)

	playerA = identity.Principal{UserID: 1, Email: "a@example.com", Role: identity.RolePlayer}
	playerB = identity.Principal{UserID: 2, Email: "b@example.com", Role: identity.RolePlayer}
	admin   = identity.Principal{UserID: 99, Email: "admin@example.com", Role: identity.RoleAdmin}
)

type fixture struct {
	svc     *reservation.Service
	store   *reservationtest.Store
	events  *reservationtest.Events
	objects *reservationtest.Objects
	cache   *reservationtest.Cache
	now     time.Time
}

func newFixture(t *testing.T, mode reservation.Mode) *fixture {
	t.Helper()
	require.NotNil(t, lima)
	f := &fixture{
		store:   reservationtest.New(),
		events:  &reservationtest.Events{},
		objects: reservationtest.NewObjects(),
		cache:   &reservationtest.Cache{},
		now:     time.Date(2026, 3, 10, 12, 0, 0, 0, lima),
	}
	roles := identity.StaticRoles{playerA.UserID: identity.RolePlayer, playerB.UserID: identity.RolePlayer, admin.UserID: identity.RoleAdmin}
	f.svc = reservation.New(
		reservation.Config{Mode: mode, Location: lima, MaxProofBytes: 1 << 20},
		reservation.Deps{
			Store:   f.store,
			Policy:  identity.NewPolicy(roles),
			Objects: f.objects,
			Events:  f.events,
			Cache:   f.cache,
		},
	)
	reservation.SetClock(f.svc, func() time.Time { return f.now })
	return f
}

func (f *fixture) addMatch(id string, total, available int) {
	f.store.AddMatch(model.Match{
		ID:             id,
		Title:          "Pichanga " + id,
		Location:       "La Molina, Lima",
		Date:           "2026-03-12",
		Time:           "19:00",
		TotalSpots:     total,
		AvailableSpots: available,
		Price:          decimal.NewFromInt(15),
		Level:          model.LevelIntermediate,
		Status:         model.MatchActive,
		Duration:       60,
		Format:         5,
	})
}

func validClaim() *reservation.PaymentClaim {
	return &reservation.PaymentClaim{Phone: "987 654 321", Name: "Carla Ruiz", Code: "YP-778812"}
}

func TestDirectJoinThenCancelRestoresCapacity(t *testing.T) {
	f := newFixture(t, reservation.ModeDirect)
	f.addMatch("m1", 10, 10)
	ctx := context.Background()

	res, err := f.svc.RequestJoin(ctx, playerA, "m1", nil)
	require.NoError(t, err)
	require.True(t, res.Created)
	require.NotNil(t, res.Participation)
	assert.Equal(t, model.ParticipationConfirmed, res.Participation.Status)
	assert.Regexp(t, codeRE, res.Participation.Code)
	assert.Equal(t, 9, f.store.Match("m1").AvailableSpots)

	cancelled, err := f.svc.Cancel(ctx, playerA, res.Participation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ParticipationCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 10, f.store.Match("m1").AvailableSpots)

	_, err = f.svc.Cancel(ctx, playerA, res.Participation.ID)
	assert.ErrorIs(t, err, reservation.ErrNotCancellable)
	assert.Equal(t, 10, f.store.Match("m1").AvailableSpots)

	assert.Equal(t, []string{queue.KeyParticipationConfirmed, queue.KeyParticipationCancelled}, f.events.Keys())
	assert.Equal(t, 2, f.cache.Count())
}

func TestDirectJoinIsIdempotent(t *testing.T) {
	f := newFixture(t, reservation.ModeDirect)
	f.addMatch("m1", 10, 10)
	ctx := context.Background()

	first, err := f.svc.RequestJoin(ctx, playerA, "m1", nil)
	require.NoError(t, err)
	second, err := f.svc.RequestJoin(ctx, playerA, "m1", nil)
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Participation.ID, second.Participation.ID)
	assert.Len(t, f.store.ParticipationsOf("m1", playerA.UserID), 1)
	assert.Equal(t, 9, f.store.Match("m1").AvailableSpots)
}

func TestJoinRefusals(t *testing.T) {
	ctx := context.Background()

	t.Run("full match", func(t *testing.T) {
		f := newFixture(t, reservation.ModeDirect)
		f.addMatch("m1", 10, 0)
		_, err := f.svc.RequestJoin(ctx, playerB, "m1", nil)
		assert.ErrorIs(t, err, reservation.ErrCapacityExhausted)
		assert.Empty(t, f.store.ParticipationsOf("m1", playerB.UserID))
		assert.Equal(t, 0, f.store.Match("m1").AvailableSpots)
		assert.Empty(t, f.events.Keys())
	})

	t.Run("unknown match", func(t *testing.T) {
		f := newFixture(t, reservation.ModeDirect)
		_, err := f.svc.RequestJoin(ctx, playerA, "nope", nil)
		assert.ErrorIs(t, err, reservation.ErrMatchNotFound)
	})

	t.Run("inactive match", func(t *testing.T) {
		f := newFixture(t, reservation.ModeDirect)
		f.addMatch("m1", 10, 10)
		f.store.Matches["m1"].Status = model.MatchInactive
		_, err := f.svc.RequestJoin(ctx, playerA, "m1", nil)
		assert.ErrorIs(t, err, reservation.ErrMatchNotBookable)
	})

	t.Run("started match", func(t *testing.T) {
		f := newFixture(t, reservation.ModeDirect)
		f.addMatch("m1", 10, 10)
		f.now = time.Date(2026, 3, 12, 19, 0, 0, 0, lima)
		_, err := f.svc.RequestJoin(ctx, playerA, "m1", nil)
		assert.ErrorIs(t, err, reservation.ErrMatchStarted)
	})

	t.Run("anonymous", func(t *testing.T) {
		f := newFixture(t, reservation.ModeDirect)
		f.addMatch("m1", 10, 10)
		_, err := f.svc.RequestJoin(ctx, identity.Principal{}, "m1", nil)
		assert.ErrorIs(t, err, reservation.ErrNotAuthenticated)
	})
}

func TestStoreFailureRollsBackJoin(t *testing.T) {
	f := newFixture(t, reservation.ModeDirect)
	f.addMatch("m1", 10, 10)
	boom := errors.New("connection reset")
	f.store.Fail = func(method string) error {
		if method == "DecrementSpots" {
			return boom
		}
		return nil
	}

	_, err := f.svc.RequestJoin(context.Background(), playerA, "m1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, reservation.ErrPersistenceFailed)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, f.store.ParticipationsOf("m1", playerA.UserID))
	assert.Equal(t, 10, f.store.Match("m1").AvailableSpots)
}

func TestCodeCollisionsWidenThenGiveUp(t *testing.T) {
	ctx := context.Background()

	t.Run("widens after repeated collisions", func(t *testing.T) {
		f := newFixture(t, reservation.ModeDirect)
		f.addMatch("m1", 10, 9)
		f.store.Participations["p0"] = &model.Participation{ID: "p0", MatchID: "m1", UserID: playerB.UserID, Code: "FBC-1111", Status: model.ParticipationConfirmed}
		var asked []int
		reservation.SetCodeSource(f.svc, func(d int) string {
			asked = append(asked, d)
			if d == 4 {
				return "FBC-1111"
			}
			return "FBC-" + strings.Repeat("2", d)
		})

		res, err := f.svc.RequestJoin(ctx, playerA, "m1", nil)
		require.NoError(t, err)
		assert.Equal(t, "FBC-22222", res.Participation.Code)
		assert.Equal(t, []int{4, 4, 4, 4, 4, 5}, asked)
	})

	t.Run("exhausted", func(t *testing.T) {
		f := newFixture(t, reservation.ModeDirect)
		f.addMatch("m1", 10, 9)
		f.store.Participations["p0"] = &model.Participation{ID: "p0", MatchID: "m1", UserID: playerB.UserID, Code: "FBC-1111", Status: model.ParticipationConfirmed}
		reservation.SetCodeSource(f.svc, func(int) string { return "FBC-1111" })

		_, err := f.svc.RequestJoin(ctx, playerA, "m1", nil)
		assert.ErrorIs(t, err, reservation.ErrCodeSpaceExhausted)
		assert.Equal(t, 9, f.store.Match("m1").AvailableSpots)
	})
}

func TestRandomCodeShape(t *testing.T) {
	for i := 0; i < 200; i++ {
		assert.Regexp(t, codeRE, reservation.RandomCode(4))
	}
	assert.Regexp(t, `^FBC-[1-9]\d{5}$`, reservation.RandomCode(6))
}

func TestClaimApprovedByAdmin(t *testing.T) {
	f := newFixture(t, reservation.ModeClaim)
	f.addMatch("m1", 10, 10)
	ctx := context.Background()

	claim := validClaim()
	claim.Proof = &reservation.Proof{Filename: "yape.PNG", ContentType: "image/png", Size: 4, Body: strings.NewReader("\x89PNG")}
	res, err := f.svc.RequestJoin(ctx, playerA, "m1", claim)
	require.NoError(t, err)
	require.True(t, res.AwaitingReview())
	assert.True(t, res.Created)
	assert.Equal(t, model.BookingPending, res.Booking.Status)
	assert.Equal(t, "987654321", res.Booking.YapePhone)
	require.NotNil(t, res.Booking.PaymentProofURL)
	assert.True(t, strings.HasPrefix(*res.Booking.PaymentProofURL, "proofs/m1/"))
	assert.True(t, strings.HasSuffix(*res.Booking.PaymentProofURL, ".png"))
	assert.Len(t, f.objects.Files, 1)
	assert.Equal(t, 10, f.store.Match("m1").AvailableSpots)

	again, err := f.svc.RequestJoin(ctx, playerA, "m1", validClaim())
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, res.Booking.ID, again.Booking.ID)
	assert.Equal(t, 1, f.store.BookingCount())

	queueView, err := f.svc.ListPendingBookings(ctx, admin)
	require.NoError(t, err)
	require.Len(t, queueView, 1)
	assert.Equal(t, "/v1/"+*res.Booking.PaymentProofURL, queueView[0].ProofLink)
	assert.Equal(t, "Pichanga m1", queueView[0].MatchTitle)

	_, err = f.svc.ReviewPendingBooking(ctx, playerB, res.Booking.ID, reservation.Approve)
	assert.ErrorIs(t, err, reservation.ErrNotAuthorized)

	review, err := f.svc.ReviewPendingBooking(ctx, admin, res.Booking.ID, reservation.Approve)
	require.NoError(t, err)
	assert.Equal(t, model.BookingVerified, review.Booking.Status)
	require.NotNil(t, review.Booking.ReviewedBy)
	assert.Equal(t, admin.UserID, *review.Booking.ReviewedBy)
	require.NotNil(t, review.Participation)
	assert.Regexp(t, codeRE, review.Participation.Code)
	assert.Equal(t, playerA.UserID, review.Participation.UserID)
	assert.Equal(t, 9, f.store.Match("m1").AvailableSpots)
	assert.Equal(t, model.BookingVerified, f.store.Booking(res.Booking.ID).Status)

	_, err = f.svc.ReviewPendingBooking(ctx, admin, res.Booking.ID, reservation.Reject)
	assert.ErrorIs(t, err, reservation.ErrBookingAlreadyReviewed)

	pending, err := f.svc.ListPendingBookings(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Equal(t, []string{
		queue.KeyBookingSubmitted,
		queue.KeyBookingReviewed,
		queue.KeyParticipationConfirmed,
	}, f.events.Keys())
}

func TestApproveOnFullMatchLeavesBookingPending(t *testing.T) {
	f := newFixture(t, reservation.ModeClaim)
	f.addMatch("m1", 10, 1)
	ctx := context.Background()

	res, err := f.svc.RequestJoin(ctx, playerA, "m1", validClaim())
	require.NoError(t, err)
	f.store.Matches["m1"].AvailableSpots = 0

	_, err = f.svc.ReviewPendingBooking(ctx, admin, res.Booking.ID, reservation.Approve)
	assert.ErrorIs(t, err, reservation.ErrCapacityExhausted)
	assert.Equal(t, model.BookingPending, f.store.Booking(res.Booking.ID).Status)
	assert.Empty(t, f.store.ParticipationsOf("m1", playerA.UserID))
	assert.Equal(t, 0, f.store.Match("m1").AvailableSpots)
}

func TestApproveReusesExistingParticipation(t *testing.T) {
	f := newFixture(t, reservation.ModeClaim)
	f.addMatch("m1", 10, 9)
	ctx := context.Background()

	res, err := f.svc.RequestJoin(ctx, playerA, "m1", validClaim())
	require.NoError(t, err)
	f.store.Participations["p0"] = &model.Participation{ID: "p0", MatchID: "m1", UserID: playerA.UserID, Code: "FBC-4321", Status: model.ParticipationConfirmed}

	review, err := f.svc.ReviewPendingBooking(ctx, admin, res.Booking.ID, reservation.Approve)
	require.NoError(t, err)
	assert.Equal(t, "p0", review.Participation.ID)
	assert.Equal(t, 9, f.store.Match("m1").AvailableSpots)
	assert.Len(t, f.store.ParticipationsOf("m1", playerA.UserID), 1)
}

func TestRejectHasNoSideEffects(t *testing.T) {
	f := newFixture(t, reservation.ModeClaim)
	f.addMatch("m1", 10, 10)
	ctx := context.Background()

	res, err := f.svc.RequestJoin(ctx, playerA, "m1", validClaim())
	require.NoError(t, err)

	review, err := f.svc.ReviewPendingBooking(ctx, admin, res.Booking.ID, reservation.Reject)
	require.NoError(t, err)
	assert.Equal(t, model.BookingRejected, review.Booking.Status)
	assert.Nil(t, review.Participation)
	assert.Empty(t, f.store.ParticipationsOf("m1", playerA.UserID))
	assert.Equal(t, 10, f.store.Match("m1").AvailableSpots)
	assert.Equal(t, 0, f.cache.Count())
}

func TestReviewRefusals(t *testing.T) {
	f := newFixture(t, reservation.ModeClaim)
	ctx := context.Background()

	_, err := f.svc.ReviewPendingBooking(ctx, identity.Principal{}, "b1", reservation.Approve)
	assert.ErrorIs(t, err, reservation.ErrNotAuthenticated)
	_, err = f.svc.ReviewPendingBooking(ctx, admin, "b1", reservation.Approve)
	assert.ErrorIs(t, err, reservation.ErrBookingNotFound)
	_, err = f.svc.ReviewPendingBooking(ctx, admin, "b1", reservation.Decision("maybe"))
	assert.ErrorIs(t, err, reservation.ErrInvalidDecision)
	_, err = f.svc.ListPendingBookings(ctx, playerA)
	assert.ErrorIs(t, err, reservation.ErrNotAuthorized)
}

func TestClaimRefusals(t *testing.T) {
	ctx := context.Background()

	t.Run("upload failure writes nothing", func(t *testing.T) {
		f := newFixture(t, reservation.ModeClaim)
		f.addMatch("m1", 10, 10)
		f.objects.Err = errors.New("bucket unavailable")
		claim := validClaim()
		claim.Proof = &reservation.Proof{Filename: "p.jpg", ContentType: "image/jpeg", Size: 3, Body: strings.NewReader("jpg")}

		_, err := f.svc.RequestJoin(ctx, playerA, "m1", claim)
		assert.ErrorIs(t, err, reservation.ErrUploadFailed)
		assert.Equal(t, 0, f.store.BookingCount())
	})

	t.Run("bad fields", func(t *testing.T) {
		f := newFixture(t, reservation.ModeClaim)
		f.addMatch("m1", 10, 10)
		for _, c := range []*reservation.PaymentClaim{
			nil,
			{Phone: "12345", Name: "x", Code: "y"},
			{Phone: "987654321", Name: " ", Code: "y"},
			{Phone: "987654321", Name: "x", Code: ""},
			{Phone: "987654321", Name: "x", Code: "y", Proof: &reservation.Proof{ContentType: "text/html", Body: strings.NewReader("<p>")}},
		} {
			_, err := f.svc.RequestJoin(ctx, playerA, "m1", c)
			assert.ErrorIs(t, err, reservation.ErrInvalidClaim)
		}
		assert.Equal(t, 0, f.store.BookingCount())
	})

	t.Run("full match", func(t *testing.T) {
		f := newFixture(t, reservation.ModeClaim)
		f.addMatch("m1", 10, 0)
		_, err := f.svc.RequestJoin(ctx, playerA, "m1", validClaim())
		assert.ErrorIs(t, err, reservation.ErrCapacityExhausted)
		assert.Equal(t, 0, f.store.BookingCount())
	})
}

func TestNormalizePhone(t *testing.T) {
	for raw, want := range map[string]string{
		"987654321":          "987654321",
		"987 654 321":        "987654321",
		"+51 987 654 321":    "987654321",
		"51987654321":        "987654321",
		"+51-987-654-321":    "987654321",
		" 9 8 7 6 5 4 3 2 1": "987654321",
	} {
		got, ok := reservation.NormalizePhone(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	for _, raw := range []string{"", "12345", "887654321", "5198765432", "+1987654321", "98765432x", "5151987654321"} {
		_, ok := reservation.NormalizePhone(raw)
		assert.False(t, ok, raw)
	}
}
