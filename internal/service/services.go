package service

import (
	"log/slog"

	"github.com/kirinyoku/venuebook/internal/catalog"
	"github.com/kirinyoku/venuebook/internal/gateway"
	redisx "github.com/kirinyoku/venuebook/internal/redis"
	redisrepo "github.com/kirinyoku/venuebook/internal/repository/redis"
	"github.com/kirinyoku/venuebook/internal/service/availability"
	"github.com/kirinyoku/venuebook/internal/service/booking"
	"github.com/kirinyoku/venuebook/internal/service/invoice"
	"github.com/kirinyoku/venuebook/internal/service/payment"
	"github.com/kirinyoku/venuebook/internal/uow"
)

type Services struct {
	Availability *availability.Service
	Booking      *booking.Service
	Payment      *payment.Service
	Invoice      *invoice.Service
}

type Config struct {
	Availability availability.Config
	Payment      payment.Config
	Invoice      invoice.Config
}

// NewServices wires the ledger services over one unit-of-work runner. cache
// and pubsub may be nil, in which case availability reads go to the store.
func NewServices(
	runner uow.Runner,
	dir catalog.Directory,
	cache *redisrepo.Cache,
	pubsub *redisx.VenueDayPubSub,
	gw gateway.Client,
	publisher invoice.Publisher,
	logger *slog.Logger,
	cfg Config,
) *Services {
	avail := availability.New(runner, dir, cache, pubsub, logger, cfg.Availability)
	invoices := invoice.New(runner, publisher, logger, cfg.Invoice)

	return &Services{
		Availability: avail,
		Booking:      booking.New(runner, dir, avail, logger),
		Payment:      payment.New(runner, dir, gw, invoices, logger, cfg.Payment),
		Invoice:      invoices,
	}
}
