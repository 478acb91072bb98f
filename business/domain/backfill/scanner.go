// Package backfill implements the one-shot catch-up of events that were
// recorded on the ledger before this listener started observing it.
package backfill

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/signumflex/go-event-listener/entities"
	"github.com/signumflex/go-event-listener/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type LedgerClient interface {
	LatestBlock(ctx context.Context) (uint64, error)
	FilterNewReports(ctx context.Context, fromBlock, toBlock uint64) ([]entities.ReportEvent, error)
	FilterTipsAdded(ctx context.Context, fromBlock, toBlock uint64) ([]entities.TipEvent, error)
}

type ReportStore interface {
	Append(record entities.ReportEvent) error
}

type TipStore interface {
	Append(record entities.TipEvent) error
}

type CursorStore interface {
	GetLastScannedBlock(kind string) (uint64, error)
	SetLastScannedBlock(kind string, block uint64) error
}

// Range is an inclusive block window. To == 0 means "up to the latest block".
type Range struct {
	From uint64
	To   uint64
}

type Config struct {
	ReportRange  Range
	TipRange     Range
	BatchSize    uint64
	MaxRetries   int
	RetryDelay   time.Duration
	QueryTimeout time.Duration
}

type Scanner struct {
	client         LedgerClient
	reportStore    ReportStore
	tipStore       TipStore
	cursorStore    CursorStore
	scannerMetrics *metrics.Metrics
	cfg            Config
	logger         *zap.SugaredLogger
}

func NewScanner(client LedgerClient, reportStore ReportStore, tipStore TipStore, cursorStore CursorStore, m *metrics.Metrics, cfg Config, logger *zap.SugaredLogger) *Scanner {
	return &Scanner{
		client:         client,
		reportStore:    reportStore,
		tipStore:       tipStore,
		cursorStore:    cursorStore,
		scannerMetrics: m,
		cfg:            cfg,
		logger:         logger,
	}
}

// Run scans both event kinds once. Upstream query failures are retried with
// backoff; an exhausted retry budget abandons the affected kind for this run
// and is reported as an error, never as a process fault.
func (s *Scanner) Run(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		return s.scanReports(ctx)
	})
	g.Go(func() error {
		return s.scanTips(ctx)
	})
	return g.Wait()
}

func (s *Scanner) scanReports(ctx context.Context) error {
	from, to, err := s.resolveRange(ctx, entities.KindReport, s.cfg.ReportRange)
	if err != nil {
		return errors.Wrap(err, "resolving report range")
	}
	if from > to {
		s.logger.Infof("No report blocks to scan, cursor is at [%d].", from-1)
		return nil
	}

	s.logger.Infof("Fetching historical reports from block [%d] to [%d].", from, to)
	for start := from; start <= to; start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize-1, to)

		events, err := fetchWithRetry(ctx, s.cfg, s.logger, entities.KindReport, start, end, s.client.FilterNewReports)
		if err != nil {
			return err
		}

		capturedAt := time.Now().UTC().Format(time.RFC3339)
		for _, event := range events {
			event.Source = entities.SourceBackfill
			event.TypeName = entities.ReportTypeName
			event.CapturedAt = capturedAt
			if err := s.reportStore.Append(event); err != nil {
				return errors.Wrap(err, "appending report event")
			}
			if s.scannerMetrics != nil {
				s.scannerMetrics.IncIngestedEvents(entities.KindReport, entities.SourceBackfill)
			}
		}

		if err := s.cursorStore.SetLastScannedBlock(entities.KindReport, end); err != nil {
			return errors.Wrap(err, "storing report cursor")
		}
		if s.scannerMetrics != nil {
			s.scannerMetrics.SetBackfillBlock(entities.KindReport, end)
		}
	}

	return nil
}

func (s *Scanner) scanTips(ctx context.Context) error {
	from, to, err := s.resolveRange(ctx, entities.KindTip, s.cfg.TipRange)
	if err != nil {
		return errors.Wrap(err, "resolving tip range")
	}
	if from > to {
		s.logger.Infof("No tip blocks to scan, cursor is at [%d].", from-1)
		return nil
	}

	s.logger.Infof("Fetching historical tips from block [%d] to [%d].", from, to)
	for start := from; start <= to; start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize-1, to)

		events, err := fetchWithRetry(ctx, s.cfg, s.logger, entities.KindTip, start, end, s.client.FilterTipsAdded)
		if err != nil {
			return err
		}

		// The reference listener stamped backfilled tips with the ingestion
		// wall clock rather than the block timestamp. The source tag keeps
		// the difference visible.
		startTime := uint64(time.Now().Unix())
		for _, event := range events {
			event.Source = entities.SourceBackfill
			event.TypeName = entities.TipTypeName
			event.StartTime = startTime
			if err := s.tipStore.Append(event); err != nil {
				return errors.Wrap(err, "appending tip event")
			}
			if s.scannerMetrics != nil {
				s.scannerMetrics.IncIngestedEvents(entities.KindTip, entities.SourceBackfill)
			}
		}

		if err := s.cursorStore.SetLastScannedBlock(entities.KindTip, end); err != nil {
			return errors.Wrap(err, "storing tip cursor")
		}
		if s.scannerMetrics != nil {
			s.scannerMetrics.SetBackfillBlock(entities.KindTip, end)
		}
	}

	return nil
}

// resolveRange applies the stored cursor to the configured window and
// resolves an open upper bound to the latest ledger block.
func (s *Scanner) resolveRange(ctx context.Context, kind string, configured Range) (uint64, uint64, error) {
	from := configured.From
	cursor, err := s.cursorStore.GetLastScannedBlock(kind)
	if err != nil && !errors.Is(err, entities.ErrStoreEntityNotFound) {
		return 0, 0, errors.Wrap(err, "getting cursor")
	}
	if err == nil && cursor+1 > from {
		from = cursor + 1
	}

	to := configured.To
	if to == 0 {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
		to, err = s.client.LatestBlock(callCtx)
		if err != nil {
			return 0, 0, errors.Wrap(err, "getting latest block")
		}
	}

	return from, to, nil
}

func fetchWithRetry[T any](ctx context.Context, cfg Config, logger *zap.SugaredLogger, kind string, from, to uint64,
	fetch func(ctx context.Context, fromBlock, toBlock uint64) ([]T, error)) ([]T, error) {

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.Warnf("Retrying %s scan from [%d] to [%d], attempt [%d]: %v", kind, from, to, attempt, lastErr)
			select {
			case <-time.After(cfg.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
		events, err := fetch(callCtx, from, to)
		cancel()
		if err == nil {
			return events, nil
		}
		lastErr = err
	}

	return nil, errors.Wrapf(lastErr, "fetching %s events from [%d] to [%d]", kind, from, to)
}
