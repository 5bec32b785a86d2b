package handlers

import (
	"net/http"
	"strconv"

	"github.com/diintechteam9/cab-tracker/internal/middleware"
	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/services"
	"github.com/diintechteam9/cab-tracker/internal/utils"
	"github.com/diintechteam9/cab-tracker/internal/validators"
	"github.com/diintechteam9/cab-tracker/pkg/logger"

	"github.com/gin-gonic/gin"
)

type TripHandler struct {
	tripService  services.TripService
	routeService services.RouteService
	enforceLinks bool
	logger       *logger.Logger
}

func NewTripHandler(tripService services.TripService, routeService services.RouteService, enforceLinks bool, log *logger.Logger) *TripHandler {
	return &TripHandler{
		tripService:  tripService,
		routeService: routeService,
		enforceLinks: enforceLinks,
		logger:       log.WithComponent("http"),
	}
}

type createTripResponse struct {
	Trip  *models.Trip       `json:"trip"`
	Links services.TripLinks `json:"links"`
}

// CreateTrip registers a trip and returns its tracking links.
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req validators.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateCreateTrip(&req); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.Details())
		return
	}

	created, err := h.tripService.CreateTrip(c.Request.Context(), req.ToInput())
	if err != nil {
		h.handleError(c, err)
		return
	}

	utils.CreatedResponse(c, "Trip created successfully", createTripResponse{
		Trip:  created.Trip.Public(),
		Links: created.Links,
	})
}

func (h *TripHandler) ListTrips(c *gin.Context) {
	var query validators.ListTripsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequestResponse(c, "Invalid query: "+err.Error())
		return
	}
	if errs := validators.ValidateListTrips(&query); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.Details())
		return
	}

	trips, err := h.tripService.ListTrips(c.Request.Context(), query.ToFilter())
	if err != nil {
		h.handleError(c, err)
		return
	}

	public := make([]*models.Trip, 0, len(trips))
	for _, t := range trips {
		public = append(public, t.Public())
	}
	utils.SuccessResponseWithMeta(c, "Trips retrieved successfully", public, &utils.Meta{Count: len(public)})
}

// GetTrip returns a trip by token. The start code is included only for the
// passenger view.
func (h *TripHandler) GetTrip(c *gin.Context) {
	token := c.Param("token")
	trip, err := h.tripService.GetTrip(c.Request.Context(), token)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if h.passengerView(c, token) {
		utils.SuccessResponse(c, "Trip retrieved successfully", trip)
		return
	}
	utils.SuccessResponse(c, "Trip retrieved successfully", trip.Public())
}

func (h *TripHandler) VerifyOTP(c *gin.Context) {
	var req validators.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateVerifyOTP(&req); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.Details())
		return
	}

	trip, err := h.tripService.VerifyStart(c.Request.Context(), req.Token, req.OTP, *req.Lat, *req.Lng)
	if err != nil {
		h.handleError(c, err)
		return
	}
	utils.SuccessResponse(c, "Ride started", trip.Public())
}

// CompleteTrip ends the trip named by its store id in the path.
func (h *TripHandler) CompleteTrip(c *gin.Context) {
	var req validators.CompleteTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateCompleteTrip(&req); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.Details())
		return
	}

	trip, err := h.tripService.CompleteTrip(c.Request.Context(), c.Param("token"), *req.Lat, *req.Lng)
	if err != nil {
		h.handleError(c, err)
		return
	}
	utils.SuccessResponse(c, "Ride completed", trip.Public())
}

// GetRoute returns the directions between the trip's stored endpoints.
func (h *TripHandler) GetRoute(c *gin.Context) {
	token := c.Param("token")
	trip, err := h.tripService.GetTrip(c.Request.Context(), token)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if trip.Status.IsTerminal() {
		h.handleError(c, models.ErrInvalidState)
		return
	}

	route, err := h.routeService.GetRoute(c.Request.Context(), token, trip.Source.Point(), trip.Destination.Point())
	if err != nil {
		h.handleError(c, err)
		return
	}
	utils.SuccessResponse(c, "Route retrieved successfully", route)
}

// GetRouteFrame returns display bounds for the cached route, extended by
// the viewer position when lat and lng are given.
func (h *TripHandler) GetRouteFrame(c *gin.Context) {
	token := c.Param("token")

	var extra []utils.Point
	if latStr, lngStr := c.Query("lat"), c.Query("lng"); latStr != "" || lngStr != "" {
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lng, errLng := strconv.ParseFloat(lngStr, 64)
		if errLat != nil || errLng != nil || !utils.IsValidCoordinates(lat, lng) {
			utils.BadRequestResponse(c, "Invalid viewer position")
			return
		}
		extra = append(extra, utils.Point{Lat: lat, Lng: lng})
	}

	bounds := h.routeService.Frame(token, extra...)
	if bounds == nil {
		h.handleError(c, models.ErrRouteUnavailable)
		return
	}
	utils.SuccessResponse(c, "Frame computed", bounds)
}

func (h *TripHandler) passengerView(c *gin.Context, token string) bool {
	if models.Role(c.Query("role")) != models.RolePassenger {
		return false
	}
	if middleware.LinkGrants(c, token, models.RolePassenger) {
		return true
	}
	return !h.enforceLinks
}

func (h *TripHandler) handleError(c *gin.Context, err error) {
	status := models.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.WithRequestID(c.GetString(middleware.RequestIDKey)).WithError(err).Error("Request failed")
		utils.InternalServerErrorResponse(c)
		return
	}
	utils.ErrorResponse(c, status, models.ErrorCode(err), err.Error())
}
