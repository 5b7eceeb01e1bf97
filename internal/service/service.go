package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"dealwatcher/internal/alerting"
	"dealwatcher/internal/analysis"
	"dealwatcher/internal/config"
	"dealwatcher/internal/digest"
	"dealwatcher/internal/scheduler"
	"dealwatcher/internal/snapshot"
	"dealwatcher/internal/storage"
)

// Service orchestrates snapshot ingestion, persistence, and digest delivery.
type Service struct {
	scheduler *scheduler.Scheduler
	source    snapshot.Source
	store     storage.ObservationStore
	digests   storage.DigestStore
	notifier  alerting.Notifier
	blocklist digest.Blocklist
	logger    zerolog.Logger

	country     string
	rules       analysis.Ruleset
	criteria    digest.Criteria
	maxItems    int
	resendAfter time.Duration
	alertsOn    bool
	locker      storage.AdvisoryLocker
	lockKey     int64
	now         func() time.Time
}

// New constructs the ingest service. store, digests and notifier may be nil.
func New(cfg *config.Config, sched *scheduler.Scheduler, source snapshot.Source, store storage.ObservationStore, digests storage.DigestStore, blocklist digest.Blocklist, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	rules := cfg.Ruleset()
	return &Service{
		scheduler: sched,
		source:    source,
		store:     store,
		digests:   digests,
		notifier:  notifier,
		blocklist: blocklist,
		logger:    logger.With().Str("component", "service").Logger(),
		country:   cfg.App.Country,
		rules:     rules,
		criteria: digest.Criteria{
			MinDiscount: cfg.Digest.MinDiscount,
			Sizes:       cfg.Digest.Sizes,
			GoodOnly:    cfg.Digest.GoodOnly,
			Rules:       rules,
		},
		maxItems:    cfg.Digest.MaxItems,
		resendAfter: cfg.Digest.ResendAfter,
		alertsOn:    cfg.Alerting.Enabled,
		locker:      locker,
		lockKey:     cfg.Scheduler.AdvisoryLockKey,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run begins the aligned ingest loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket 执行单个时间桶的快照处理。
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeBucket(ctx, bucket)
}

func (s *Service) executeBucket(ctx context.Context, bucket time.Time) error {
	rows, err := s.source.Fetch(ctx)
	if err != nil {
		if errors.Is(err, snapshot.ErrNoRows) {
			s.logger.Warn().Time("bucket", bucket).Msg("snapshot empty; nothing to ingest")
			return nil
		}
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	obs := Classify(rows, bucket, s.rules)

	if s.store != nil {
		inserted, err := s.store.RecordObservations(ctx, s.country, obs)
		if err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to record observations")
		} else {
			s.logger.Info().Time("bucket", bucket).
				Int("rows", len(rows)).
				Int("observations", len(obs)).
				Int("inserted", inserted).
				Msg("snapshot recorded")
		}
	}

	if !s.alertsOn || s.notifier == nil {
		return nil
	}

	d, err := s.buildDigest(ctx, obs)
	if err != nil {
		return err
	}
	if len(d.Items) == 0 {
		s.logger.Info().Time("bucket", bucket).Msg("no products passed the digest filter")
		return nil
	}

	if err := s.notifier.Notify(ctx, d); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch digest")
		return nil
	}

	if s.digests != nil {
		if err := s.digests.MarkSent(ctx, d.ProductIDs(), s.country, s.now()); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to mark digest sent")
		}
	}
	return nil
}

func (s *Service) buildDigest(ctx context.Context, obs []analysis.Observation) (digest.Digest, error) {
	criteria := s.criteria
	criteria.Blocklist = s.blocklist

	if s.digests != nil {
		sent, err := s.digests.SentSince(ctx, s.country, s.now().Add(-s.resendAfter))
		if err != nil {
			return digest.Digest{}, fmt.Errorf("load sent digests: %w", err)
		}
		criteria.Sent = sent

		blocked, err := s.digests.ListBlocked(ctx, s.country)
		if err != nil {
			return digest.Digest{}, fmt.Errorf("load blocked products: %w", err)
		}
		criteria.Blocklist = criteria.Blocklist.Merge(blocked)
	}

	return digest.Build(digest.Filter(obs, criteria), s.maxItems), nil
}

// Classify tiers the snapshot product by product and expands every row into
// observations carrying its tier. Rows without a timestamp are stamped with
// bucket.
func Classify(rows []snapshot.Row, bucket time.Time, rules analysis.Ruleset) []analysis.Observation {
	inputs := make([]analysis.ClassifierInput, len(rows))
	for i, row := range rows {
		inputs[i] = RowInput(row)
	}
	tiers := analysis.ClassifyBatch(inputs, rules)

	out := make([]analysis.Observation, 0, len(rows))
	for i, row := range rows {
		for _, o := range row.Observations() {
			if o.ObservedAt.IsZero() {
				o.ObservedAt = bucket
			}
			o.ObservedAt = o.ObservedAt.UTC()
			o.Tier = tiers[i].Tier
			out = append(out, o)
		}
	}
	return out
}

// RowInput builds classifier input from a snapshot row.
func RowInput(row snapshot.Row) analysis.ClassifierInput {
	return analysis.ClassifierInput{
		PromoPrice:      row.PromoPrice,
		DiscountPercent: row.Discount(),
		Rating:          row.Rating,
		ReviewCount:     row.Reviews,
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
