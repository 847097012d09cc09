package reservation

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/fuchiball-booking/internal/model"
)

// Sweep finishes every confirmed participation whose match has started.
// It applies the same rule as ListMyMatches, so running it is optional.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	now := s.clock()
	rows, err := s.store.ListConfirmedUpTo(ctx, now.Format(model.DateLayout))
	if err != nil {
		return 0, fail("sweep", err)
	}
	var ids []string
	for i := range rows {
		if RefreshStatus(&rows[i].Participation, rows[i].Match, now) {
			ids = append(ids, rows[i].ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		return tx.MarkFinished(ctx, ids, now.UTC())
	})
	if err != nil {
		return 0, fail("sweep", err)
	}
	return len(ids), nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.WithError(err).Warn("participation sweep failed")
				continue
			}
			if n > 0 {
				log.WithField("finished", n).Info("participations finished")
			}
		}
	}
}
