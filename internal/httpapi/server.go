// Package httpapi exposes the dispatch pipeline over three HTTP
// endpoints: the fixed hospital network, a one-shot optimize job, and
// the "black swan" disruption simulation. Each request builds and owns
// its own matrix and solver run; nothing is shared across requests
// except the optional result-file side-channel.
package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/config"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/hospital"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/routing"
)

// Server wires the hospital network, routing client, and configuration
// into the three caller-facing endpoints.
type Server struct {
	Set    *hospital.Set
	Router routing.Client
	Cfg    config.Config
	Log    *logrus.Logger

	// ResultFilePath, when non-empty, is overwritten with the JSON plan
	// payload after every successful /optimize job. Writes are
	// serialized by resultMu; the file is last-writer-wins, never read
	// back by this process.
	ResultFilePath string
	resultMu       sync.Mutex
}

// NewServer builds a Server. log defaults to logrus's standard logger
// when nil.
func NewServer(set *hospital.Set, router routing.Client, cfg config.Config, resultFilePath string, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		Set:            set,
		Router:         router,
		Cfg:            cfg,
		Log:            log,
		ResultFilePath: resultFilePath,
	}
}

// Routes builds the mux.Router serving this Server's endpoints.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/hospitals", s.handleListHospitals).Methods(http.MethodGet)
	r.HandleFunc("/optimize", s.handleOptimize).Methods(http.MethodPost)
	r.HandleFunc("/simulate-disruption", s.handleSimulateDisruption).Methods(http.MethodPost)
	r.Use(loggingMiddleware(s.Log))
	return r
}

func loggingMiddleware(log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Info("httpapi: request handled")
		})
	}
}
