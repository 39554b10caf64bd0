package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/venuebook/internal/catalog"
	"github.com/kirinyoku/venuebook/internal/domain"
	redisx "github.com/kirinyoku/venuebook/internal/redis"
	"github.com/kirinyoku/venuebook/internal/repository"
	redisrepo "github.com/kirinyoku/venuebook/internal/repository/redis"
	"github.com/kirinyoku/venuebook/internal/uow"
)

type Config struct {
	BusyTTL time.Duration
}

// Service answers slot queries. Reads may be served from the busy-window
// cache; writers call CountConflicts inside their transaction instead.
type Service struct {
	runner uow.Runner
	dir    catalog.Directory
	cache  *redisrepo.Cache
	pubsub *redisx.VenueDayPubSub
	logger *slog.Logger
	cfg    Config
}

// New builds the checker. cache and pubsub may be nil.
func New(
	runner uow.Runner,
	dir catalog.Directory,
	cache *redisrepo.Cache,
	pubsub *redisx.VenueDayPubSub,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.BusyTTL <= 0 {
		cfg.BusyTTL = 30 * time.Second
	}

	return &Service{
		runner: runner,
		dir:    dir,
		cache:  cache,
		pubsub: pubsub,
		logger: logger,
		cfg:    cfg,
	}
}

type Query struct {
	VenueID   string
	Date      string
	StartTime string
	EndTime   string
}

type Result struct {
	Available        bool `json:"available"`
	ConflictingCount int  `json:"conflicting_count"`
}

// Check reports whether the window is free on the venue's day.
//
// Returns:
//   - error: domain.ErrValidation for malformed dates or times.
//   - error: availability.ErrVenueNotFound if the venue does not exist.
func (s *Service) Check(ctx context.Context, q Query) (Result, error) {
	const op = "service.availability.Check"

	if q.VenueID == "" {
		return Result{}, fmt.Errorf("%s:%w", op, domain.Invalid("venue id is required"))
	}

	day, err := domain.ParseDate(q.Date)
	if err != nil {
		return Result{}, fmt.Errorf("%s:%w", op, err)
	}

	window, err := domain.ParseWindow(q.StartTime, q.EndTime)
	if err != nil {
		return Result{}, fmt.Errorf("%s:%w", op, err)
	}

	if _, err := s.dir.Venue(ctx, q.VenueID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Result{}, fmt.Errorf("%s:%w", op, ErrVenueNotFound)
		}
		return Result{}, fmt.Errorf("%s:%w", op, err)
	}

	busy, err := s.busyWindows(ctx, q.VenueID, day)
	if err != nil {
		return Result{}, fmt.Errorf("%s:%w", op, err)
	}

	n := domain.Conflicts(window, busy)

	return Result{Available: n == 0, ConflictingCount: n}, nil
}

func (s *Service) busyWindows(ctx context.Context, venueID string, day time.Time) ([]domain.Window, error) {
	load := func(ctx context.Context) ([]domain.Window, error) {
		bookings, err := s.runner.Repos().Bookings().ActiveForVenueDay(ctx, venueID, day)
		if err != nil {
			return nil, err
		}
		return domain.BusyWindows(bookings), nil
	}

	if s.cache == nil {
		return load(ctx)
	}

	return redisrepo.GetOrSetJSON(ctx, s.cache, redisx.KeyVenueDayBusy(venueID, day), s.cfg.BusyTTL, load)
}

// CountConflicts re-runs the overlap test against the live rows visible to
// bookings, bypassing the cache.
func CountConflicts(
	ctx context.Context,
	bookings repository.Bookings,
	venueID string,
	day time.Time,
	window domain.Window,
) (int, error) {
	active, err := bookings.ActiveForVenueDay(ctx, venueID, day)
	if err != nil {
		return 0, err
	}
	return domain.Conflicts(window, domain.BusyWindows(active)), nil
}

// Invalidate drops the cached busy windows of a venue day and tells the other
// instances to do the same. Failures are logged; the cache expires anyway.
func (s *Service) Invalidate(ctx context.Context, venueID string, day time.Time) {
	s.Forget(ctx, venueID, day)

	if s.pubsub == nil {
		return
	}

	if err := s.pubsub.PublishVenueDayChanged(ctx, venueID, day); err != nil {
		s.logger.Warn("publish venue day change failed", "venue_id", venueID, "day", domain.FormatDate(day), "error", err)
	}
}

// Forget drops the cached busy windows without broadcasting.
func (s *Service) Forget(ctx context.Context, venueID string, day time.Time) {
	if s.cache == nil {
		return
	}

	if err := s.cache.InvalidateVenueDay(ctx, venueID, day); err != nil {
		s.logger.Warn("invalidate busy windows failed", "venue_id", venueID, "day", domain.FormatDate(day), "error", err)
	}
}
