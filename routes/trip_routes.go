package routes

import (
	"net/http"

	"github.com/diintechteam9/cab-tracker/internal/handlers"
	"github.com/diintechteam9/cab-tracker/internal/middleware"
	"github.com/diintechteam9/cab-tracker/pkg/websocket"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Trips     *handlers.TripHandler
	Health    *handlers.HealthHandler
	WebSocket *websocket.Handler
	Metrics   http.Handler
}

// Setup mounts every route on r. linkSecret verifies tracking links on the
// trip read endpoints.
func Setup(r *gin.Engine, h Handlers, linkSecret string) {
	r.GET("/health", h.Health.Health)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}
	r.GET("/ws", h.WebSocket.HandleWebSocket)

	SetupTripRoutes(r.Group("/api/v1"), h.Trips, linkSecret)
}

// SetupTripRoutes sets up routes for trip lifecycle and routing
func SetupTripRoutes(r *gin.RouterGroup, tripHandler *handlers.TripHandler, linkSecret string) {
	trips := r.Group("/trips")
	{
		trips.POST("", tripHandler.CreateTrip)
		trips.GET("", tripHandler.ListTrips)
		trips.POST("/verify-otp", tripHandler.VerifyOTP)
		// gin needs one wildcard name per segment; the handler reads it as the trip id
		trips.PUT("/:token/complete", tripHandler.CompleteTrip)
	}

	// Viewer routes accept an optional tracking link
	viewer := trips.Group("/:token")
	viewer.Use(middleware.TrackingLink(linkSecret))
	{
		viewer.GET("", tripHandler.GetTrip)
		viewer.GET("/route", tripHandler.GetRoute)
		viewer.GET("/route/frame", tripHandler.GetRouteFrame)
	}
}
