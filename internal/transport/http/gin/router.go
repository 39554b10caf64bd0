package httpgin

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/venuebook/internal/domain"
	redisrepo "github.com/kirinyoku/venuebook/internal/repository/redis"
	"github.com/kirinyoku/venuebook/internal/service"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const (
	scopeBookingCreate   = "bookings.create"
	scopePaymentInitiate = "payments.initiate"
)

// NewRouter builds the HTTP surface. idem and limiter may be nil, which
// disables idempotent replays and rate limiting.
func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.SlidingWindowLimiter,
	jwtSecret string,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(logger), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.POST("/bookings/check-availability", handleCheckAvailability(svcs))

	auth := r.Group("/", AuthMiddleware(jwtSecret))

	bookings := auth.Group("/bookings")
	{
		bookings.POST("", RateLimitMiddleware(limiter, scopeBookingCreate, logger), handleCreateBooking(svcs))
		bookings.GET("/mine", handleListMyBookings(svcs))
		bookings.GET("/:id", handleGetBooking(svcs))
		bookings.PUT("/:id/status", handleUpdateBookingStatus(svcs))
		bookings.DELETE("/:id", handleCancelBooking(svcs))

		bookings.POST("/:id/payment-requests", handleCreatePaymentRequest(svcs))
		bookings.GET("/:id/payment-requests", handleListPaymentRequests(svcs))
		bookings.POST("/:id/payment-requests/verify", handleVerifyPaymentRequest(svcs))
	}

	auth.GET("/venues/:id/bookings", handleListVenueBookings(svcs))
	auth.GET("/owner/payment-requests", handleListOwnerPaymentRequests(svcs))
	auth.GET("/provider/service-bookings", handleListProviderBookings(svcs))

	payments := auth.Group("/payments")
	{
		payments.POST("/initiate", RateLimitMiddleware(limiter, scopePaymentInitiate, logger), handleInitiatePayment(svcs, idem, logger))
		payments.POST("/verify", handleVerifyPayment(svcs))
		payments.GET("/methods", handleListPaymentMethods(svcs))
		payments.POST("/methods", handleSavePaymentMethod(svcs))
		payments.DELETE("/methods/:id", handleDeletePaymentMethod(svcs))
		payments.GET("/:id", handleGetPayment(svcs))
		payments.POST("/:id/fail", handleFailPayment(svcs))
		payments.POST("/:id/refund", handleRefundPayment(svcs))
	}

	invoices := auth.Group("/invoices")
	{
		invoices.GET("/mine", handleListMyInvoices(svcs))
		invoices.GET("/booking/:bookingId", handleGetInvoiceByBooking(svcs))
		invoices.GET("/:id", handleGetInvoice(svcs))
		invoices.POST("/:id/send", handleSendInvoice(svcs))
		invoices.PATCH("/:id/status", handleUpdateInvoiceStatus(svcs))
	}

	return r
}

// --- Helpers ---

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	_ = c.Error(err)

	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid payment signature"})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: publicMessage(err)})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not allowed"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: publicMessage(err)})
	case errors.Is(err, domain.ErrSlotTaken):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "venue is not available for the requested window"})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: publicMessage(err)})
	case errors.Is(err, domain.ErrGateway):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "payment gateway unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// publicMessage strips the operation prefixes ("service.booking.Create:")
// that wrapped errors accumulate.
func publicMessage(err error) string {
	msg := err.Error()
	for {
		i := strings.IndexByte(msg, ':')
		if i <= 0 || i+1 >= len(msg) || msg[i+1] == ' ' {
			return msg
		}
		prefix := msg[:i]
		if strings.ContainsAny(prefix, " \t") || !strings.Contains(prefix, ".") {
			return msg
		}
		msg = msg[i+1:]
	}
}
