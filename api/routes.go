package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"filmlog/handlers"
)

// Handlers groups everything Register mounts.
type Handlers struct {
	Users          *handlers.UsersHandler
	Records        *handlers.RecordsHandler
	Movies         *handlers.MoviesHandler
	Feed           *handlers.FeedHandler
	Stats          *handlers.StatsHandler
	Follows        *handlers.FollowsHandler
	Search         *handlers.SearchHandler
	ScheduledTasks *handlers.ScheduledTasksHandler
}

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Register mounts API endpoints onto the provided router.
func Register(r *mux.Router, h Handlers, tokens TokenParser) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)
	api.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(handleOptions)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	// Auth routes (no authentication required)
	api.HandleFunc("/auth/register", h.Users.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.Users.Login).Methods(http.MethodPost)

	// Read paths that personalise when a token is present
	optional := api.PathPrefix("").Subrouter()
	optional.Use(AuthMiddleware(tokens, false))
	optional.HandleFunc("/feed", h.Feed.Feed).Methods(http.MethodGet)
	optional.HandleFunc("/search", h.Search.Search).Methods(http.MethodGet)
	optional.HandleFunc("/movies/{tmdbID:[0-9]+}", h.Movies.Get).Methods(http.MethodGet)
	optional.HandleFunc("/movies/{tmdbID:[0-9]+}/providers", h.Movies.Providers).Methods(http.MethodGet)
	optional.HandleFunc("/users/{username}", h.Users.Profile).Methods(http.MethodGet)
	optional.HandleFunc("/users/{username}/stats", h.Stats.Stats).Methods(http.MethodGet)
	optional.HandleFunc("/users/{username}/followers", h.Follows.Followers).Methods(http.MethodGet)
	optional.HandleFunc("/users/{username}/following", h.Follows.Following).Methods(http.MethodGet)

	// Protected routes - require authentication
	protected := api.PathPrefix("").Subrouter()
	protected.Use(AuthMiddleware(tokens, true))
	protected.HandleFunc("/auth/me", h.Users.Me).Methods(http.MethodGet)
	protected.HandleFunc("/auth/password", h.Users.ChangePassword).Methods(http.MethodPut)
	protected.HandleFunc("/me/privacy", h.Users.SetPrivacy).Methods(http.MethodPut)

	protected.HandleFunc("/users/{username}/follow", h.Follows.Follow).Methods(http.MethodPost)
	protected.HandleFunc("/users/{username}/follow", h.Follows.Unfollow).Methods(http.MethodDelete)

	protected.HandleFunc("/lists/{list}", h.Records.List).Methods(http.MethodGet)
	protected.HandleFunc("/records", h.Records.Add).Methods(http.MethodPost)
	protected.HandleFunc("/records/order", h.Records.Reorder).Methods(http.MethodPut)
	protected.HandleFunc("/records/{recordID:[0-9]+}", h.Records.Get).Methods(http.MethodGet)
	protected.HandleFunc("/records/{recordID:[0-9]+}", h.Records.Remove).Methods(http.MethodDelete)
	protected.HandleFunc("/records/{recordID:[0-9]+}/rating", h.Records.SetRating).Methods(http.MethodPut)
	protected.HandleFunc("/records/{recordID:[0-9]+}/comment", h.Records.SetComment).Methods(http.MethodPut)
	protected.HandleFunc("/records/{recordID:[0-9]+}/quality", h.Records.SetQuality).Methods(http.MethodPatch)

	// Maintenance endpoints, local callers only
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(localhostOnlyMiddleware)
	admin.HandleFunc("/scheduled-tasks", h.ScheduledTasks.ListTasks).Methods(http.MethodGet)
	admin.HandleFunc("/scheduled-tasks/{taskID}", h.ScheduledTasks.UpdateTask).Methods(http.MethodPut)
	admin.HandleFunc("/scheduled-tasks/{taskID}/run", h.ScheduledTasks.RunTaskNow).Methods(http.MethodPost)
}
