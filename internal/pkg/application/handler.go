package application

import (
	"compress/flate"
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/database"

	"github.com/rs/cors"
)

const serviceName = "dispenser-registry"

//RequestRouter wraps the concrete router implementation
type RequestRouter struct {
	impl *chi.Mux
}

//Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type api struct {
	svcs *Services
	db   Pinger
	log  logging.Logger
}

func (router *RequestRouter) addDeviceHandlers(a *api, auth *authenticator) {
	router.Get("/devices", auth.RequireUser(a.listDevices))
	router.Post("/devices", auth.RequireUser(a.createDevice))
	router.Post("/devices/bulk-update", auth.RequireUser(a.bulkUpdateDevices))
	router.Get("/devices/{device_id}", auth.RequireUser(a.getDevice))
	router.Put("/devices/{device_id}", auth.RequireUser(a.updateDevice))
	router.Delete("/devices/{device_id}", auth.RequireUser(a.deleteDevice))
	router.Patch("/devices/{device_id}/status", auth.RequireDevice(a.updateDeviceStatus))
	router.Get("/devices/{device_id}/history", auth.RequireUser(a.getDeviceHistory))
}

func (router *RequestRouter) addStateHandlers(a *api, auth *authenticator) {
	router.Get("/states", auth.RequireUser(a.getAllStates))
	router.Get("/states/{device_id}", auth.RequireUser(a.getLatestState))
	router.Post("/states/{device_id}", auth.RequireDevice(a.reportState))
	router.Get("/states/{device_id}/history", auth.RequireUser(a.getStateHistory))
}

func (router *RequestRouter) addActivityHandlers(a *api, auth *authenticator) {
	router.Get("/activities", auth.RequireUser(a.listActivities))
	router.Post("/activities", auth.RequireUser(a.createActivity))
	router.Get("/activities/statistics", auth.RequireUser(a.getActivityStatistics))
	router.Get("/activities/devices/{device_id}", auth.RequireUser(a.getDeviceActivities))
	router.Get("/activities/devices/{device_id}/statistics", auth.RequireUser(a.getDeviceActivityStatistics))
}

func (router *RequestRouter) addNotificationHandlers(a *api, auth *authenticator) {
	router.Get("/notifications", auth.RequireUser(a.listNotifications))
	router.Post("/notifications", auth.RequireUser(a.createNotification))
	router.Get("/notifications/unread-count", auth.RequireUser(a.getUnreadCount))
	router.Get("/notifications/stats", auth.RequireUser(a.getNotificationStats))
	router.Post("/notifications/mark-all-read", auth.RequireUser(a.markAllNotificationsRead))
	router.Post("/notifications/bulk-mark-read", auth.RequireUser(a.bulkMarkNotificationsRead))
	router.Get("/notifications/{notification_id}", auth.RequireUser(a.getNotification))
	router.Put("/notifications/{notification_id}/read", auth.RequireUser(a.markNotificationRead))
	router.Delete("/notifications/{notification_id}", auth.RequireUser(a.deleteNotification))

	router.Get("/notification-settings", auth.RequireUser(a.getNotificationSettings))
	router.Put("/notification-settings", auth.RequireUser(a.updateNotificationSettings))
	router.Post("/notification-settings/push-token", auth.RequireUser(a.updatePushToken))
}

func (router *RequestRouter) addSyncHandlers(a *api, auth *authenticator) {
	router.Post("/sync/full", auth.RequireUser(a.fullSync))
	router.Post("/sync/delta", auth.RequireUser(a.deltaSync))
	router.Get("/sync/status", auth.RequireUser(a.getSyncStatus))
	router.Post("/sync/resolve", auth.RequireUser(a.resolveConflict))
}

//Get accepts a pattern that should be routed to the handlerFn on a GET request
func (router *RequestRouter) Get(pattern string, handlerFn http.HandlerFunc) {
	router.impl.Get(pattern, handlerFn)
}

//Patch accepts a pattern that should be routed to the handlerFn on a PATCH request
func (router *RequestRouter) Patch(pattern string, handlerFn http.HandlerFunc) {
	router.impl.Patch(pattern, handlerFn)
}

//Post accepts a pattern that should be routed to the handlerFn on a POST request
func (router *RequestRouter) Post(pattern string, handlerFn http.HandlerFunc) {
	router.impl.Post(pattern, handlerFn)
}

//Put accepts a pattern that should be routed to the handlerFn on a PUT request
func (router *RequestRouter) Put(pattern string, handlerFn http.HandlerFunc) {
	router.impl.Put(pattern, handlerFn)
}

//Delete accepts a pattern that should be routed to the handlerFn on a DELETE request
func (router *RequestRouter) Delete(pattern string, handlerFn http.HandlerFunc) {
	router.impl.Delete(pattern, handlerFn)
}

func newRequestRouter() *RequestRouter {
	router := &RequestRouter{impl: chi.NewRouter()}

	router.impl.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		Debug:            false,
	}).Handler)

	compressor := middleware.NewCompressor(flate.DefaultCompression, "application/json")
	router.impl.Use(compressor.Handler)
	router.impl.Use(middleware.Logger)

	return router
}

func createRequestRouter(jwtSecret string, db database.Datastore, svcs *Services, log logging.Logger) *RequestRouter {
	router := newRequestRouter()

	a := &api{svcs: svcs, db: db, log: log}
	auth := newAuthenticator(jwtSecret, db, log)

	router.Get("/health", a.health)
	router.addDeviceHandlers(a, auth)
	router.addStateHandlers(a, auth)
	router.addActivityHandlers(a, auth)
	router.addNotificationHandlers(a, auth)
	router.addSyncHandlers(a, auth)

	return router
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]interface{}{
		"status":    "healthy",
		"service":   serviceName,
		"database":  "connected",
		"timestamp": time.Now().UTC(),
	}

	if err := a.db.Ping(ctx); err != nil {
		a.log.Warnf("Health check failed: %s", err.Error())
		body["status"] = "unhealthy"
		body["database"] = "unreachable"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}

	writeJSON(w, http.StatusOK, body)
}

//CreateRouterAndStartServing sets up the REST router and starts serving incoming requests
func CreateRouterAndStartServing(log logging.Logger, port, jwtSecret string, db database.Datastore, svcs *Services) {
	router := createRequestRouter(jwtSecret, db, svcs, log)

	log.Infof("Starting %s on port %s.\n", serviceName, port)
	log.Fatal(http.ListenAndServe(":"+port, router.impl))
}
