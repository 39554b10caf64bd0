package httpgin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	redisx "github.com/kirinyoku/venuebook/internal/redis"
	redisrepo "github.com/kirinyoku/venuebook/internal/repository/redis"
	"github.com/kirinyoku/venuebook/internal/service"
	"github.com/kirinyoku/venuebook/internal/service/payment"
)

const idemLockTTL = 60 * time.Second

// @Summary  Initiate payment (idempotent)
// @Tags     payments
// @Security BearerAuth
// @Param    req body InitiatePaymentRequest true "payload"
// @Param    Idempotency-Key header string false "replays the first response"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} payment.InitiateResult
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "idempotency key in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Failure  502 {object} ErrorResponse "gateway error"
// @Router   /payments/initiate [post]
func handleInitiatePayment(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InitiatePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		bookingID, err := uuid.Parse(req.BookingID)
		if err != nil {
			badRequest(c, "invalid booking_id")
			return
		}

		ctx := c.Request.Context()
		actor := actorID(c)

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			key := redisx.KeyIdempotency(scopePaymentInitiate, actor, idemKey)

			claimed, done := claimIdempotencyKey(c, idem, key, idemKey, logger)
			if done {
				return
			}
			if claimed {
				idemStorageKey = key
			}
		}

		res, err := svcs.Payment.Initiate(ctx, payment.InitiateInput{
			BookingID:   bookingID,
			ActorID:     actor,
			AmountCents: req.AmountCents,
			Method:      req.Method,
			Details: payment.MethodInput{
				CardNumber:     req.CardNumber,
				CardBrand:      req.CardBrand,
				ExpiryMonth:    req.ExpiryMonth,
				ExpiryYear:     req.ExpiryYear,
				VPA:            req.VPA,
				BankName:       req.BankName,
				WalletProvider: req.WalletProvider,
			},
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		if err != nil {
			if idemStorageKey != "" {
				if rerr := idem.Release(ctx, idemStorageKey); rerr != nil {
					logger.Warn("release idempotency key", "key", idemStorageKey, "error", rerr)
				}
			}
			respondErr(c, err)
			return
		}

		if idemStorageKey != "" {
			b, _ := json.Marshal(res)
			if err := idem.SaveResult(ctx, idemStorageKey, string(b)); err != nil {
				logger.Warn("save idempotent result", "key", idemStorageKey, "error", err)
			}
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, res)
	}
}

// claimIdempotencyKey replays a stored response or reports a key still in
// flight, in which case done is true. claimed is true when this request owns
// the key and must save or release it. Redis failures are logged and the
// request proceeds without idempotency, like the rate limiter.
func claimIdempotencyKey(
	c *gin.Context,
	idem *redisrepo.IdempotencyStore,
	key, idemKey string,
	logger *slog.Logger,
) (claimed, done bool) {
	ctx := c.Request.Context()

	payload, found, locked, err := idem.GetResult(ctx, key)
	if err != nil {
		logger.Warn("idempotency lookup failed, continuing without it", "key", key, "error", err)
		return false, false
	}
	if found {
		replay(c, idemKey, payload)
		return false, true
	}
	if locked {
		inProgress(c)
		return false, true
	}

	acquired, err := idem.AcquireLock(ctx, key, idemLockTTL)
	if err != nil {
		logger.Warn("idempotency lock failed, continuing without it", "key", key, "error", err)
		return false, false
	}
	if !acquired {
		if payload, found, _, _ := idem.GetResult(ctx, key); found {
			replay(c, idemKey, payload)
			return false, true
		}
		inProgress(c)
		return false, true
	}

	return true, false
}

func replay(c *gin.Context, idemKey, payload string) {
	c.Header("Idempotency-Key", idemKey)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
}

func inProgress(c *gin.Context) {
	c.Header("Retry-After", "1")
	c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
}

// @Summary  Verify gateway callback
// @Tags     payments
// @Security BearerAuth
// @Param    req body VerifyPaymentRequest true "payload"
// @Success  200 {object} payment.VerifyResult
// @Failure  400 {object} ErrorResponse "invalid signature"
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "invalid transition"
// @Router   /payments/verify [post]
func handleVerifyPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerifyPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		bookingID, err := uuid.Parse(req.BookingID)
		if err != nil {
			badRequest(c, "invalid booking_id")
			return
		}

		res, err := svcs.Payment.Verify(c.Request.Context(), payment.VerifyInput{
			BookingID:        bookingID,
			GatewayOrderID:   req.GatewayOrderID,
			GatewayPaymentID: req.GatewayPaymentID,
			Signature:        req.Signature,
			Meta: payment.MethodMeta{
				TransactionID:     req.TransactionID,
				CardLast4:         req.CardLast4,
				CardBrand:         req.CardBrand,
				BankName:          req.BankName,
				BankTransactionID: req.BankTransactionID,
				VPA:               req.VPA,
			},
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, res)
	}
}

// @Summary  Get payment
// @Tags     payments
// @Security BearerAuth
// @Param    id path string true "Payment ID (uuid)"
// @Success  200 {object} domain.Payment
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /payments/{id} [get]
func handleGetPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		p, err := svcs.Payment.Get(c.Request.Context(), id, actorID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, p)
	}
}

// @Summary  Report payment failure
// @Tags     payments
// @Security BearerAuth
// @Param    id  path string true "Payment ID (uuid)"
// @Param    req body FailPaymentRequest true "payload"
// @Success  200 {object} domain.Payment
// @Failure  409 {object} ErrorResponse "invalid transition"
// @Router   /payments/{id}/fail [post]
func handleFailPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req FailPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		p, err := svcs.Payment.Fail(c.Request.Context(), id, req.Reason, actorID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, p)
	}
}

// @Summary  Refund payment (venue owner)
// @Tags     payments
// @Security BearerAuth
// @Param    id  path string true "Payment ID (uuid)"
// @Param    req body RefundPaymentRequest true "payload"
// @Success  200 {object} domain.Payment
// @Failure  403 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "invalid transition"
// @Router   /payments/{id}/refund [post]
func handleRefundPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req RefundPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		p, err := svcs.Payment.Refund(c.Request.Context(), id, req.AmountCents, req.Reason, actorID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, p)
	}
}

// @Summary  Create payment request (venue owner)
// @Tags     payment-requests
// @Security BearerAuth
// @Param    id  path string true "Booking ID (uuid)"
// @Param    req body CreatePaymentRequestRequest true "payload"
// @Success  201 {object} domain.PaymentRequest
// @Failure  403 {object} ErrorResponse
// @Failure  502 {object} ErrorResponse "gateway error"
// @Router   /bookings/{id}/payment-requests [post]
func handleCreatePaymentRequest(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req CreatePaymentRequestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		pr, err := svcs.Payment.CreateRequest(c.Request.Context(), payment.CreateRequestInput{
			BookingID:       id,
			ActorID:         actorID(c),
			AmountCents:     req.AmountCents,
			Description:     req.Description,
			DaysUntilExpiry: req.DaysUntilExpiry,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, pr)
	}
}

// @Summary  List payment requests of a booking
// @Tags     payment-requests
// @Security BearerAuth
// @Param    id path string true "Booking ID (uuid)"
// @Success  200 {array} domain.PaymentRequest
// @Router   /bookings/{id}/payment-requests [get]
func handleListPaymentRequests(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		list, err := svcs.Payment.ListRequests(c.Request.Context(), id, actorID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, list)
	}
}

// @Summary  Verify payment request callback
// @Tags     payment-requests
// @Security BearerAuth
// @Param    id  path string true "Booking ID (uuid)"
// @Param    req body VerifyPaymentRequestRequest true "payload"
// @Success  200 {object} payment.VerifyRequestResult
// @Failure  400 {object} ErrorResponse "invalid signature"
// @Failure  409 {object} ErrorResponse "expired or already paid"
// @Router   /bookings/{id}/payment-requests/verify [post]
func handleVerifyPaymentRequest(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req VerifyPaymentRequestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		requestID, err := uuid.Parse(req.RequestID)
		if err != nil {
			badRequest(c, "invalid payment_request_id")
			return
		}

		res, err := svcs.Payment.VerifyRequest(c.Request.Context(), payment.VerifyRequestInput{
			BookingID:        id,
			RequestID:        requestID,
			GatewayOrderID:   req.GatewayOrderID,
			GatewayPaymentID: req.GatewayPaymentID,
			Signature:        req.Signature,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, res)
	}
}

// @Summary  List pending payment requests across my venues
// @Tags     payment-requests
// @Security BearerAuth
// @Success  200 {array} payment.OwnerRequest
// @Router   /owner/payment-requests [get]
func handleListOwnerPaymentRequests(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Payment.ListOwnerPending(c.Request.Context(), actorID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, list)
	}
}

// @Summary  List my saved payment methods
// @Tags     payment-methods
// @Security BearerAuth
// @Success  200 {array} domain.SavedMethod
// @Router   /payments/methods [get]
func handleListPaymentMethods(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Payment.ListMethods(c.Request.Context(), actorID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, list)
	}
}

// @Summary  Save a payment method (masked)
// @Tags     payment-methods
// @Security BearerAuth
// @Param    req body SaveMethodRequest true "payload"
// @Success  201 {object} domain.SavedMethod
// @Failure  400 {object} ErrorResponse
// @Router   /payments/methods [post]
func handleSavePaymentMethod(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SaveMethodRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		m, err := svcs.Payment.SaveMethod(c.Request.Context(), payment.SaveMethodInput{
			ActorID:  actorID(c),
			Type:     req.Type,
			Nickname: req.Nickname,
			Details: payment.MethodInput{
				CardNumber:     req.CardNumber,
				CardBrand:      req.CardBrand,
				ExpiryMonth:    req.ExpiryMonth,
				ExpiryYear:     req.ExpiryYear,
				VPA:            req.VPA,
				BankName:       req.BankName,
				WalletProvider: req.WalletProvider,
			},
			MakeDefault: req.IsDefault,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, m)
	}
}

// @Summary  Delete a saved payment method
// @Tags     payment-methods
// @Security BearerAuth
// @Param    id path string true "Method ID (uuid)"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Router   /payments/methods/{id} [delete]
func handleDeletePaymentMethod(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		respondErr(c, svcs.Payment.DeleteMethod(c.Request.Context(), id, actorID(c)))
	}
}
