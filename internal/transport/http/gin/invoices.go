package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/venuebook/internal/service"
)

// @Summary  Get invoice
// @Tags     invoices
// @Security BearerAuth
// @Param    id path string true "Invoice ID (uuid)"
// @Success  200 {object} domain.Invoice
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /invoices/{id} [get]
func handleGetInvoice(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		inv, err := svcs.Invoice.Get(c.Request.Context(), id, actorID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		writeConditionalJSON(c, inv)
	}
}

// @Summary  Get invoice of a booking
// @Tags     invoices
// @Security BearerAuth
// @Param    bookingId path string true "Booking ID (uuid)"
// @Success  200 {object} domain.Invoice
// @Failure  404 {object} ErrorResponse
// @Router   /invoices/booking/{bookingId} [get]
func handleGetInvoiceByBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "bookingId")
		if !ok {
			return
		}

		inv, err := svcs.Invoice.ByBooking(c.Request.Context(), id, actorID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		writeConditionalJSON(c, inv)
	}
}

// @Summary  List my invoices
// @Tags     invoices
// @Security BearerAuth
// @Success  200 {array} domain.Invoice
// @Router   /invoices/mine [get]
func handleListMyInvoices(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Invoice.ListMine(c.Request.Context(), actorID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, list)
	}
}

// @Summary  Send invoice to the customer
// @Tags     invoices
// @Security BearerAuth
// @Param    id path string true "Invoice ID (uuid)"
// @Success  200 {object} domain.Invoice
// @Failure  409 {object} ErrorResponse "cancelled"
// @Router   /invoices/{id}/send [post]
func handleSendInvoice(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		inv, err := svcs.Invoice.Send(c.Request.Context(), id, actorID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, inv)
	}
}

// @Summary  Update invoice status (vendor)
// @Tags     invoices
// @Security BearerAuth
// @Param    id  path string true "Invoice ID (uuid)"
// @Param    req body UpdateInvoiceStatusRequest true "payload"
// @Success  200 {object} domain.Invoice
// @Failure  403 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "cancelled is terminal"
// @Router   /invoices/{id}/status [patch]
func handleUpdateInvoiceStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req UpdateInvoiceStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		inv, err := svcs.Invoice.UpdateStatus(c.Request.Context(), id, req.Status, req.Notes, actorID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, inv)
	}
}
