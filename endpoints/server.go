package endpoints

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/EasterCompany/dex-voice-rating/cache"
	"github.com/EasterCompany/dex-voice-rating/health"
	"github.com/EasterCompany/dex-voice-rating/metrics"
)

// Store is the persistence the server needs.
type Store interface {
	SaveSession(ctx context.Context, s *cache.Session, ttl time.Duration) error
	LoadSession(ctx context.Context, id string) (*cache.Session, error)
	DeleteSession(ctx context.Context, id string) error
	CountSessions(ctx context.Context) (int, error)
	SaveRating(ctx context.Context, r *cache.Rating) (int64, error)
	LoadRating(ctx context.Context, id int64) (*cache.Rating, error)
}

// Server hosts the voice session API and the rating form.
type Server struct {
	store      Store
	sessionTTL time.Duration
	health     func(ctx context.Context) health.Report
	now        func() time.Time
}

// NewServer returns a server keeping sessions for ttl after their last
// update. report may be nil, in which case /status is not served.
func NewServer(store Store, ttl time.Duration, report func(ctx context.Context) health.Report) *Server {
	return &Server{store: store, sessionTTL: ttl, health: report, now: time.Now}
}

// Routes registers every endpoint on a new mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(startPath, s.StartSessionHandler)
	mux.HandleFunc(wakePath, s.WakeSessionHandler)
	mux.HandleFunc(commandPath, s.CommandHandler)
	mux.HandleFunc(endPath, s.EndSessionHandler)
	mux.HandleFunc(ratePath, s.RateHandler)
	mux.HandleFunc(confirmationPath, s.ConfirmationHandler)
	if s.health != nil {
		mux.HandleFunc("/status", s.StatusHandler)
	}
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

func (s *Server) refreshSessionGauge(ctx context.Context) {
	n, err := s.store.CountSessions(ctx)
	if err != nil {
		log.Printf("Could not count sessions: %v", err)
		return
	}
	metrics.SetSessionsActive(n)
}
