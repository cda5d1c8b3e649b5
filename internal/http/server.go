// README: API gateway; dependencies for the router and the http.Server around it.
package http

import (
	"net/http"
	"time"

	"routetrip/internal/http/handlers"
	"routetrip/internal/infra"
	"routetrip/internal/modules/location"
	"routetrip/internal/modules/trip"
	"routetrip/internal/service"
	"routetrip/internal/session"
)

// ServerDeps wires the router. Nil Verifier disables auth; nil Importer, Location or
// Sessions leave their routes unregistered.
type ServerDeps struct {
	Trips         *trip.Service
	Location      *location.Service
	Importer      *service.ManifestImporter
	Sessions      session.Store
	AddressLookup handlers.AddressLookup
	Verifier      infra.TokenVerifier

	// RateLimit is requests per second per caller on provider-backed routes.
	RateLimit float64
	Burst     int
}

// NewServer builds the http.Server. WriteTimeout stays zero for the session WebSocket
// and the long optimize call.
func NewServer(addr string, deps ServerDeps) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
