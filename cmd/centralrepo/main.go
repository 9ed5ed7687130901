package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mindtastic/discovery/centralrepo"
	"github.com/mindtastic/discovery/log"
	"github.com/mindtastic/discovery/store/localfile"
)

var addr = flag.String("addr", ":8000", "Address to listen on for API connections")
var dbpath = flag.String("db", "/data/db/centralrepo.db", "File to store records in, empty to keep them in memory")
var tokens = flag.String("tokens", "", "Comma separated list of accepted Authorization header values, empty to accept any")
var logLevel = flag.String("log-level", "info", "Log level (debug, info, warning, error)")

func main() {
	flag.Parse()

	logger, err := log.New(*logLevel, os.Stderr)
	if err != nil {
		log.Fatal(err)
	}
	log.Set(logger)

	lfs := localfile.New()
	if err := lfs.InitializePersistence(*dbpath); err != nil {
		log.Fatalf("error initializing database: %v", err)
	}

	var accepted []string
	if *tokens != "" {
		accepted = strings.Split(*tokens, ",")
	}

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           centralrepo.NewHandler(lfs, accepted...).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("error listening on address %q: %v", httpServer.Addr, err)
		}
	}()
	log.Infof("listening on address %q", httpServer.Addr)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Errorf("error shutting down server: %v", err)
	}
	if err := lfs.Shutdown(); err != nil {
		log.Errorf("error shutting down database: %v", err)
	}
}
