package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"genstudio-backend/internal/infra/logging"
	"genstudio-backend/internal/infra/redis"
	"genstudio-backend/internal/usecase"
)

const enqueueWindow = time.Minute

// Server exposes the generation API: enqueue endpoints, job polling and
// cancellation, plus synchronous speech synthesis.
type Server struct {
	jobUC    *usecase.JobUseCase
	speechUC *usecase.SpeechUseCase
	limiter  *redis.RateLimiter
	auth     *AuthManager
	rate     int
	log      *zerolog.Logger
}

func NewServer(
	jobUC *usecase.JobUseCase,
	speechUC *usecase.SpeechUseCase,
	limiter *redis.RateLimiter,
	auth *AuthManager,
	ratePerMinute int,
	log *zerolog.Logger,
) *Server {
	return &Server{
		jobUC:    jobUC,
		speechUC: speechUC,
		limiter:  limiter,
		auth:     auth,
		rate:     ratePerMinute,
		log:      log,
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.traceMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.With(s.rateLimit("chat")).Post("/chat", s.enqueueChatHandler)
			r.With(s.rateLimit("images")).Post("/images", s.enqueueImageHandler)
		})
		r.Route("/jobs/{taskRef}", func(r chi.Router) {
			r.Get("/", s.jobStatusHandler)
			r.Post("/cancel", s.jobCancelHandler)
			r.With(s.requireAdmin).Get("/transitions", s.jobTransitionsHandler)
		})
		r.Post("/speech", s.speechHandler)
	})

	return r
}

func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			r = r.WithContext(logging.WithTraceID(r.Context(), reqID))
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit caps enqueue requests per session per minute. Errors from Redis
// fail open; throttling is protection, not correctness.
func (s *Server) rateLimit(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			key := redis.SessionEndpointKey(sessionID, endpoint)
			allowed, err := s.limiter.Allow(r.Context(), key, s.rate, enqueueWindow)
			if err != nil {
				s.log.Warn().Err(err).Msg("rate limiter unavailable")
				allowed = true
			}
			if !allowed {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			writeError(w, http.StatusForbidden, "admin API disabled")
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
