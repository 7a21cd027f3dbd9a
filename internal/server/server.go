// -------------------------------------------------------------------------------
// HTTP Server - REST Routing
//
// Project: Streamlo
//
// HTTP server and router for the web service. Routes are declared with
// method+pattern ServeMux entries; write routes sit behind the bearer-token
// middleware, read routes are public. Every route is wrapped with request
// metrics, a tracing span and structured logging.
// -------------------------------------------------------------------------------

package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dunguyenn/StreamloWebservice/internal/auth"
	"github.com/dunguyenn/StreamloWebservice/internal/blob"
	"github.com/dunguyenn/StreamloWebservice/internal/config"
	"github.com/dunguyenn/StreamloWebservice/internal/service"
	"github.com/dunguyenn/StreamloWebservice/internal/telemetry"
)

// -------------------------------------------------------------------------
// SERVER
// -------------------------------------------------------------------------

// Server holds the handler dependencies and builds the route table.
type Server struct {
	Tracks *service.TrackService
	Users  *service.UserService
	Blobs  blob.Store
	Tokens *auth.Tokens

	BlobStore config.BlobStoreConfig
	Assets    config.AssetsConfig

	// MaxUploadSize bounds multipart upload bodies in bytes.
	MaxUploadSize int64
}

// Routes builds the full route table. Patterns use method+path matching; the
// {$} suffix pins exact-path routes.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	authed := func(h http.HandlerFunc) http.Handler {
		return s.Tokens.Middleware(h)
	}

	// --- Auth ---
	mux.Handle("POST /auth/signup", s.route("/auth/signup", http.HandlerFunc(s.handleSignup)))
	mux.Handle("POST /auth/login", s.route("/auth/login", http.HandlerFunc(s.handleLogin)))

	// --- Tracks ---
	mux.Handle("GET /tracks", s.route("/tracks", http.HandlerFunc(s.handleSearchTracks)))
	mux.Handle("POST /tracks", s.route("/tracks", authed(s.handleUploadTrack)))
	mux.Handle("GET /tracks/chart/{city}", s.route("/tracks/chart/{city}", http.HandlerFunc(s.handleChart)))
	mux.Handle("GET /tracks/{trackId}/stream", s.route("/tracks/{trackId}/stream", http.HandlerFunc(s.handleStreamTrack)))
	mux.Handle("GET /tracks/{trackId}/comments", s.route("/tracks/{trackId}/comments", http.HandlerFunc(s.handleTrackComments)))
	mux.Handle("PATCH /tracks/{trackURL}/title", s.route("/tracks/{trackURL}/title", authed(s.handleUpdateTitle)))
	mux.Handle("PATCH /tracks/{trackURL}/description", s.route("/tracks/{trackURL}/description", authed(s.handleUpdateDescription)))
	mux.Handle("DELETE /tracks/{trackURL}", s.route("/tracks/{trackURL}", authed(s.handleDeleteTrack)))
	mux.Handle("POST /tracks/{trackURL}/comments", s.route("/tracks/{trackURL}/comments", authed(s.handleAddComment)))
	mux.Handle("DELETE /tracks/comments/{commentId}", s.route("/tracks/comments/{commentId}", authed(s.handleRemoveComment)))

	// --- Users ---
	mux.Handle("GET /users", s.route("/users", http.HandlerFunc(s.handleSearchUsers)))
	mux.Handle("GET /users/{userId}", s.route("/users/{userId}", http.HandlerFunc(s.handleGetUser)))
	mux.Handle("GET /users/{userId}/profileImage", s.route("/users/{userId}/profileImage", http.HandlerFunc(s.handleProfileImage)))
	mux.Handle("GET /users/{userId}/tracks", s.route("/users/{userId}/tracks", http.HandlerFunc(s.handleTracksByUploader)))
	mux.Handle("GET /users/{userId}/followees", s.route("/users/{userId}/followees", http.HandlerFunc(s.handleFollowees)))
	mux.Handle("GET /users/{userId}/liked", s.route("/users/{userId}/liked", http.HandlerFunc(s.handleLikedTracks)))
	mux.Handle("PATCH /users/{userId}", s.route("/users/{userId}", authed(s.handleUpdateUser)))
	mux.Handle("DELETE /users/{userId}", s.route("/users/{userId}", authed(s.handleDeleteUser)))
	mux.Handle("POST /users/{userId}/profileImage", s.route("/users/{userId}/profileImage", authed(s.handleSetProfileImage)))
	mux.Handle("POST /users/{userId}/followees", s.route("/users/{userId}/followees", authed(s.handleFollow)))
	mux.Handle("DELETE /users/{userId}/followees/{followeeUserId}", s.route("/users/{userId}/followees/{followeeUserId}", authed(s.handleUnfollow)))
	mux.Handle("PUT /users/{userId}/liked/{trackId}", s.route("/users/{userId}/liked/{trackId}", authed(s.handleLike)))
	mux.Handle("DELETE /users/{userId}/liked/{trackId}", s.route("/users/{userId}/liked/{trackId}", authed(s.handleUnlike)))

	// --- Health ---
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

// MetricsHandler exposes the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// -------------------------------------------------------------------------
// OBSERVABILITY MIDDLEWARE
// -------------------------------------------------------------------------

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// route wraps a handler with request metrics, a tracing span and structured
// logging. The route pattern, not the concrete path, labels the metrics so
// cardinality stays bounded.
func (s *Server) route(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		method := r.Method

		// --- Track inflight requests ---
		telemetry.InflightRequests.WithLabelValues(method).Inc()
		defer telemetry.InflightRequests.WithLabelValues(method).Dec()

		// --- Start tracing span ---
		ctx, span := telemetry.StartSpan(r.Context(), fmt.Sprintf("HTTP %s %s", method, pattern),
			telemetry.RequestAttributes(method, r.URL.Path, r.RemoteAddr)...,
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		// --- Record metrics ---
		telemetry.RequestsTotal.WithLabelValues(method, pattern, strconv.Itoa(rec.status)).Inc()
		telemetry.RequestDuration.WithLabelValues(method, pattern).Observe(time.Since(start).Seconds())

		// --- Update span status ---
		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}

		// --- Log request ---
		elapsed := time.Since(start)
		logAttrs := []any{"method", method, "path", r.URL.Path, "remote", r.RemoteAddr, "status", rec.status, "duration", elapsed}
		if rec.status >= http.StatusInternalServerError {
			slog.Error("Request failed", logAttrs...)
		} else {
			slog.Info("Request completed", logAttrs...)
		}
	})
}
