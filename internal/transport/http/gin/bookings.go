package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/venuebook/internal/service"
	"github.com/kirinyoku/venuebook/internal/service/availability"
	"github.com/kirinyoku/venuebook/internal/service/booking"
)

// @Summary  Check venue availability
// @Tags     bookings
// @Param    req body CheckAvailabilityRequest true "payload"
// @Success  200 {object} availability.Result
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /bookings/check-availability [post]
func handleCheckAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckAvailabilityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		res, err := svcs.Availability.Check(c.Request.Context(), availability.Query{
			VenueID:   req.VenueID,
			Date:      req.EventDate,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, res)
	}
}

// @Summary  Create booking
// @Tags     bookings
// @Security BearerAuth
// @Param    req body CreateBookingRequest true "payload"
// @Success  201 {object} domain.Booking
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "slot taken"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /bookings [post]
func handleCreateBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		b, err := svcs.Booking.Create(c.Request.Context(), booking.CreateInput{
			CustomerID:      actorID(c),
			VenueID:         req.VenueID,
			ServiceIDs:      req.ServiceIDs,
			EventDate:       req.EventDate,
			StartTime:       req.StartTime,
			EndTime:         req.EndTime,
			EventType:       req.EventType,
			GuestCount:      req.GuestCount,
			CustomerName:    req.CustomerName,
			CustomerEmail:   req.CustomerEmail,
			CustomerPhone:   req.CustomerPhone,
			SpecialRequests: req.SpecialRequests,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, b)
	}
}

// @Summary  Get booking
// @Tags     bookings
// @Security BearerAuth
// @Param    id path string true "Booking ID (uuid)"
// @Success  200 {object} domain.Booking
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		b, err := svcs.Booking.Get(c.Request.Context(), id, actorID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		writeConditionalJSON(c, b)
	}
}

// @Summary  List my bookings
// @Tags     bookings
// @Security BearerAuth
// @Success  200 {array} domain.Booking
// @Router   /bookings/mine [get]
func handleListMyBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Booking.ListMine(c.Request.Context(), actorID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		writeConditionalJSON(c, list)
	}
}

// @Summary  List venue bookings (owner)
// @Tags     bookings
// @Security BearerAuth
// @Param    id path string true "Venue ID"
// @Success  200 {array} domain.Booking
// @Failure  403 {object} ErrorResponse
// @Router   /venues/{id}/bookings [get]
func handleListVenueBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Booking.ListForVenue(c.Request.Context(), c.Param("id"), actorID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, list)
	}
}

// @Summary  List bookings that include my services
// @Tags     bookings
// @Security BearerAuth
// @Success  200 {array} domain.Booking
// @Router   /provider/service-bookings [get]
func handleListProviderBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Booking.ListForProvider(c.Request.Context(), actorID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, list)
	}
}

// @Summary  Update booking status
// @Tags     bookings
// @Security BearerAuth
// @Param    id  path string true "Booking ID (uuid)"
// @Param    req body UpdateBookingStatusRequest true "payload"
// @Success  200 {object} domain.Booking
// @Failure  403 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "invalid transition"
// @Router   /bookings/{id}/status [put]
func handleUpdateBookingStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req UpdateBookingStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		b, err := svcs.Booking.UpdateStatus(c.Request.Context(), id, req.Status, actorID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Cancel booking
// @Tags     bookings
// @Security BearerAuth
// @Param    id path string true "Booking ID (uuid)"
// @Success  200 {object} domain.Booking
// @Failure  409 {object} ErrorResponse "invalid transition"
// @Router   /bookings/{id} [delete]
func handleCancelBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		b, err := svcs.Booking.Cancel(c.Request.Context(), id, actorID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, b)
	}
}
