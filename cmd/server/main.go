// Command server runs the isotope dispatch HTTP API: hospital listing,
// one-shot route optimization, and the "black swan" disruption
// simulation, over the fixed hospital network loaded at startup.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nuraz-ahamed/isotope-dispatch/internal/config"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/hospital"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/httpapi"
	"github.com/nuraz-ahamed/isotope-dispatch/internal/routing"
)

func main() {
	hospitalsPath := flag.String("hospitals", "data/hospitals.json", "path to the hospital network JSON file")
	addr := flag.String("addr", ":8000", "HTTP listen address")
	resultFile := flag.String("result-file", "output/routes.json", "optional path to persist the last solved plan (empty disables)")
	flag.Parse()

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	set, err := hospital.Load(*hospitalsPath)
	if err != nil {
		log.WithError(err).Fatalf("failed to load hospital network from %s", *hospitalsPath)
	}
	log.Infof("loaded %d delivery nodes from %s", set.Len(), *hospitalsPath)

	router := routing.NewOSRMClient(cfg.RouterBaseURL, cfg.RouteTimeout, cfg.SnapTimeout, log)

	srv := httpapi.NewServer(set, router, cfg, *resultFile, log)

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SolverTimeLimit + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("isotope dispatch API listening on %s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
	log.Info("server stopped cleanly")
}
