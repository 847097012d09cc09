// Package reservationtest provides an in-memory reservation.Store for
// tests.  Transactions are serialised by a mutex and roll back by
// restoring a snapshot, so a failed operation leaves no trace.
package reservationtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/fuchiball-booking/internal/model"
	"github.com/iliyamo/fuchiball-booking/internal/reservation"
)

// Store is the fake.  Fail, when set, is consulted before every Tx method
// and lets tests inject store failures by method name.
type Store struct {
	mu sync.Mutex

	Matches        map[string]*model.Match
	Participations map[string]*model.Participation
	Bookings       map[string]*model.PendingBooking
	Names          map[uint64]string

	Fail func(method string) error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		Matches:        map[string]*model.Match{},
		Participations: map[string]*model.Participation{},
		Bookings:       map[string]*model.PendingBooking{},
		Names:          map[uint64]string{},
	}
}

// AddMatch stores a copy of m.
func (s *Store) AddMatch(m model.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Matches[m.ID] = &m
}

// Match returns a copy of the stored match.
func (s *Store) Match(id string) model.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.Matches[id]
}

// ParticipationsOf returns copies of every participation of userID in matchID.
func (s *Store) ParticipationsOf(matchID string, userID uint64) []model.Participation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Participation
	for _, p := range s.Participations {
		if p.MatchID == matchID && p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out
}

// Booking returns a copy of the stored booking.
func (s *Store) Booking(id string) model.PendingBooking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.Bookings[id]
}

// BookingCount is the number of stored bookings.
func (s *Store) BookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Bookings)
}

type snapshot struct {
	matches        map[string]model.Match
	participations map[string]model.Participation
	bookings       map[string]model.PendingBooking
}

func (s *Store) snapshot() snapshot {
	sn := snapshot{
		matches:        make(map[string]model.Match, len(s.Matches)),
		participations: make(map[string]model.Participation, len(s.Participations)),
		bookings:       make(map[string]model.PendingBooking, len(s.Bookings)),
	}
	for k, v := range s.Matches {
		sn.matches[k] = *v
	}
	for k, v := range s.Participations {
		sn.participations[k] = *v
	}
	for k, v := range s.Bookings {
		sn.bookings[k] = *v
	}
	return sn
}

func (s *Store) restore(sn snapshot) {
	s.Matches = make(map[string]*model.Match, len(sn.matches))
	for k, v := range sn.matches {
		v := v
		s.Matches[k] = &v
	}
	s.Participations = make(map[string]*model.Participation, len(sn.participations))
	for k, v := range sn.participations {
		v := v
		s.Participations[k] = &v
	}
	s.Bookings = make(map[string]*model.PendingBooking, len(sn.bookings))
	for k, v := range sn.bookings {
		v := v
		s.Bookings[k] = &v
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx reservation.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn := s.snapshot()
	if err := fn(&tx{s: s}); err != nil {
		s.restore(sn)
		return err
	}
	return nil
}

func (s *Store) detail(p *model.Participation) model.ParticipationDetail {
	d := model.ParticipationDetail{Participation: *p}
	if m, ok := s.Matches[p.MatchID]; ok {
		d.Match = m.Summary()
	}
	return d
}

func (s *Store) ListParticipationsByUser(_ context.Context, userID uint64) ([]model.ParticipationDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ParticipationDetail
	for _, p := range s.Participations {
		if p.UserID == userID {
			out = append(out, s.detail(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.After(out[j].JoinedAt) })
	return out, nil
}

func (s *Store) ListPendingBookings(_ context.Context) ([]model.PendingBookingDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PendingBookingDetail
	for _, b := range s.Bookings {
		if b.Status != model.BookingPending {
			continue
		}
		d := model.PendingBookingDetail{PendingBooking: *b, FullName: s.Names[b.UserID]}
		if m, ok := s.Matches[b.MatchID]; ok {
			d.MatchTitle, d.MatchDate, d.MatchTime, d.MatchPrice = m.Title, m.Date, m.Time, m.Price
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListConfirmedUpTo(_ context.Context, date string) ([]model.ParticipationDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ParticipationDetail
	for _, p := range s.Participations {
		m, ok := s.Matches[p.MatchID]
		if ok && p.Status == model.ParticipationConfirmed && m.Date <= date {
			out = append(out, s.detail(p))
		}
	}
	return out, nil
}

type tx struct{ s *Store }

func (t *tx) fail(method string) error {
	if t.s.Fail == nil {
		return nil
	}
	return t.s.Fail(method)
}

func (t *tx) LockMatch(_ context.Context, id string) (model.Match, error) {
	if err := t.fail("LockMatch"); err != nil {
		return model.Match{}, err
	}
	m, ok := t.s.Matches[id]
	if !ok {
		return model.Match{}, reservation.ErrMatchNotFound
	}
	return *m, nil
}

func (t *tx) ActiveParticipation(_ context.Context, matchID string, userID uint64) (*model.Participation, error) {
	if err := t.fail("ActiveParticipation"); err != nil {
		return nil, err
	}
	for _, p := range t.s.Participations {
		if p.MatchID == matchID && p.UserID == userID && p.Status == model.ParticipationConfirmed {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *tx) CodeTaken(_ context.Context, code string) (bool, error) {
	if err := t.fail("CodeTaken"); err != nil {
		return false, err
	}
	for _, p := range t.s.Participations {
		if p.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) InsertParticipation(_ context.Context, p *model.Participation) error {
	if err := t.fail("InsertParticipation"); err != nil {
		return err
	}
	for _, q := range t.s.Participations {
		if q.Code == p.Code {
			return reservation.ErrCodeTaken
		}
	}
	cp := *p
	t.s.Participations[p.ID] = &cp
	return nil
}

func (t *tx) DecrementSpots(_ context.Context, matchID string) (bool, error) {
	if err := t.fail("DecrementSpots"); err != nil {
		return false, err
	}
	m, ok := t.s.Matches[matchID]
	if !ok || m.AvailableSpots <= 0 {
		return false, nil
	}
	m.AvailableSpots--
	return true, nil
}

func (t *tx) IncrementSpots(_ context.Context, matchID string) (bool, error) {
	if err := t.fail("IncrementSpots"); err != nil {
		return false, err
	}
	m, ok := t.s.Matches[matchID]
	if !ok || m.AvailableSpots >= m.TotalSpots {
		return false, nil
	}
	m.AvailableSpots++
	return true, nil
}

func (t *tx) PendingBookingFor(_ context.Context, matchID string, userID uint64) (*model.PendingBooking, error) {
	if err := t.fail("PendingBookingFor"); err != nil {
		return nil, err
	}
	for _, b := range t.s.Bookings {
		if b.MatchID == matchID && b.UserID == userID && b.Status == model.BookingPending {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *tx) InsertPendingBooking(_ context.Context, b *model.PendingBooking) error {
	if err := t.fail("InsertPendingBooking"); err != nil {
		return err
	}
	cp := *b
	t.s.Bookings[b.ID] = &cp
	return nil
}

func (t *tx) LockPendingBooking(_ context.Context, id string) (model.PendingBooking, error) {
	if err := t.fail("LockPendingBooking"); err != nil {
		return model.PendingBooking{}, err
	}
	b, ok := t.s.Bookings[id]
	if !ok {
		return model.PendingBooking{}, reservation.ErrBookingNotFound
	}
	return *b, nil
}

func (t *tx) UpdatePendingBookingStatus(_ context.Context, id, status string, reviewedBy uint64, at time.Time) error {
	if err := t.fail("UpdatePendingBookingStatus"); err != nil {
		return err
	}
	b, ok := t.s.Bookings[id]
	if !ok {
		return reservation.ErrBookingNotFound
	}
	b.Status, b.ReviewedBy, b.ReviewedAt = status, &reviewedBy, &at
	return nil
}

func (t *tx) LockParticipation(_ context.Context, id string) (model.Participation, error) {
	if err := t.fail("LockParticipation"); err != nil {
		return model.Participation{}, err
	}
	p, ok := t.s.Participations[id]
	if !ok {
		return model.Participation{}, reservation.ErrParticipationNotFound
	}
	return *p, nil
}

func (t *tx) MarkCancelled(_ context.Context, id string, at time.Time) error {
	if err := t.fail("MarkCancelled"); err != nil {
		return err
	}
	p, ok := t.s.Participations[id]
	if !ok {
		return reservation.ErrParticipationNotFound
	}
	if p.Status != model.ParticipationConfirmed {
		return errors.New("reservationtest: participation not confirmed")
	}
	p.Status, p.CancelledAt = model.ParticipationCancelled, &at
	return nil
}

func (t *tx) MarkFinished(_ context.Context, ids []string, at time.Time) error {
	if err := t.fail("MarkFinished"); err != nil {
		return err
	}
	for _, id := range ids {
		if p, ok := t.s.Participations[id]; ok && p.Status == model.ParticipationConfirmed {
			p.Status, p.FinishedAt = model.ParticipationFinished, &at
		}
	}
	return nil
}

var _ reservation.Store = (*Store)(nil)
