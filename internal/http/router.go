// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"routetrip/internal/http/handlers"
	"routetrip/internal/http/middleware"
	"routetrip/internal/metrics"
)

func NewRouter(deps ServerDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	if deps.Verifier != nil {
		api.Use(middleware.Auth(deps.Verifier))
	}
	limited := middleware.RateLimit(deps.RateLimit, deps.Burst)

	tripHandler := handlers.NewTripHandler(deps.Trips)
	configHandler := handlers.NewConfigHandler(deps.Trips, deps.AddressLookup)

	api.POST("/trips", tripHandler.Create)
	api.GET("/trips/history", tripHandler.History)
	api.GET("/trips/archive", tripHandler.Archive)
	api.GET("/trips/archive/:id", tripHandler.ArchivedTrip)
	api.POST("/trips/select/:id", tripHandler.Select)

	cur := api.Group("/trips/current")
	cur.GET("", tripHandler.Current)
	cur.PUT("/name", tripHandler.Rename)
	cur.GET("/progress", tripHandler.Progress)

	cur.POST("/stops", tripHandler.AddStop)
	cur.POST("/stops/:stopId/duplicate", tripHandler.DuplicateStop)
	cur.DELETE("/stops/:stopId", tripHandler.RemoveStop)
	cur.PATCH("/stops/:stopId", tripHandler.UpdateStop)
	cur.POST("/stops/:stopId/outcome", tripHandler.MarkOutcome)
	cur.DELETE("/stops/:stopId/outcome", tripHandler.UndoOutcome)

	cur.PUT("/start", configHandler.SetStart)
	cur.PUT("/end", configHandler.SetEnd)
	cur.PUT("/break", configHandler.SetBreak)
	cur.PUT("/schedule", configHandler.SetSchedule)

	cur.POST("/optimize", limited, tripHandler.Optimize)
	cur.POST("/start-trip", tripHandler.StartTrip)
	cur.POST("/complete", tripHandler.Complete)
	cur.POST("/cancel", tripHandler.Cancel)

	if deps.Importer != nil {
		importHandler := handlers.NewImportHandler(deps.Importer)
		cur.POST("/import", limited, importHandler.Import)
	}

	api.GET("/places/search", limited, tripHandler.SearchPlaces)
	api.GET("/preferences", tripHandler.Preferences)
	api.PUT("/preferences", tripHandler.SetPreferences)

	if deps.Location != nil {
		locationHandler := handlers.NewLocationHandler(deps.Location)
		api.PUT("/device/location", locationHandler.Update)
		api.GET("/device/location", locationHandler.Current)
	}

	if deps.Sessions != nil {
		sessionHandler := handlers.NewSessionHandler(deps.Sessions)
		api.GET("/session/ws", sessionHandler.Stream)
	}

	return r
}
