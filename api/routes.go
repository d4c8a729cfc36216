package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"twowatch/handlers"
)

// Handlers groups everything Register mounts.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Watchlist *handlers.WatchlistHandler
	Providers *handlers.ProvidersHandler
	Titles    *handlers.TitlesHandler
}

// Register mounts API endpoints onto the provided router.
func Register(r *mux.Router, h Handlers, sessionsSvc sessionValidator, allowedOrigins []string) {
	api := r.PathPrefix("/api").Subrouter()

	// Add CORS middleware to API subrouter
	api.Use(corsMiddleware(allowedOrigins))

	// Auth routes that issue tokens never look at an existing one.
	api.HandleFunc("/auth/register", h.Auth.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", h.Auth.Options).Methods(http.MethodOptions)
	api.HandleFunc("/auth/login", h.Auth.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.Auth.Options).Methods(http.MethodOptions)

	identified := api.PathPrefix("").Subrouter()
	identified.Use(IdentityMiddleware(sessionsSvc))

	identified.HandleFunc("/auth/logout", h.Auth.Logout).Methods(http.MethodPost)
	identified.HandleFunc("/auth/logout", h.Auth.Options).Methods(http.MethodOptions)
	identified.HandleFunc("/auth/me", h.Auth.Me).Methods(http.MethodGet)
	identified.HandleFunc("/auth/me", h.Auth.UpdateMe).Methods(http.MethodPatch)
	identified.HandleFunc("/auth/me", h.Auth.DeleteMe).Methods(http.MethodDelete)
	identified.HandleFunc("/auth/me", h.Auth.Options).Methods(http.MethodOptions)
	identified.HandleFunc("/auth/password", h.Auth.ChangePassword).Methods(http.MethodPost)
	identified.HandleFunc("/auth/password", h.Auth.Options).Methods(http.MethodOptions)

	identified.HandleFunc("/watchlist", h.Watchlist.List).Methods(http.MethodGet)
	identified.HandleFunc("/watchlist", h.Watchlist.Add).Methods(http.MethodPost)
	identified.HandleFunc("/watchlist", h.Watchlist.Options).Methods(http.MethodOptions)
	identified.HandleFunc("/watchlist/merge", h.Watchlist.Merge).Methods(http.MethodPost)
	identified.HandleFunc("/watchlist/merge", h.Watchlist.Options).Methods(http.MethodOptions)
	identified.HandleFunc("/watchlist/{mediaType}/{id}", h.Watchlist.Check).Methods(http.MethodGet)
	identified.HandleFunc("/watchlist/{mediaType}/{id}", h.Watchlist.Remove).Methods(http.MethodDelete)
	identified.HandleFunc("/watchlist/{mediaType}/{id}", h.Watchlist.Options).Methods(http.MethodOptions)

	identified.HandleFunc("/providers", h.Providers.List).Methods(http.MethodGet)
	identified.HandleFunc("/providers", handleOptions).Methods(http.MethodOptions)
	identified.HandleFunc("/providers/{provider}/link", h.Providers.Link).Methods(http.MethodGet)
	identified.HandleFunc("/providers/{provider}/link", h.Providers.Options).Methods(http.MethodOptions)
	identified.HandleFunc("/providers/{provider}/open", h.Providers.Open).Methods(http.MethodPost)
	identified.HandleFunc("/providers/{provider}/open", h.Providers.Options).Methods(http.MethodOptions)

	identified.HandleFunc("/titles/{mediaType}/{id}/where-to-watch", h.Titles.WhereToWatch).Methods(http.MethodGet)
	identified.HandleFunc("/titles/{mediaType}/{id}/where-to-watch", h.Titles.Options).Methods(http.MethodOptions)
}
