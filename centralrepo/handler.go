// Package centralrepo implements a central repository that stores the storage URL of each
// user record, as consulted by discovery.Resolver.
package centralrepo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-uuid"

	"github.com/mindtastic/discovery"
	"github.com/mindtastic/discovery/log"
)

const maxBodySize = 64 << 10

// Record is the JSON document stored and served for a record ID.
type Record struct {
	Data RecordData `json:"data"`
}

// RecordData holds the storage URL of a user.
type RecordData struct {
	URL string `json:"url"`
}

// Handler serves user records from a discovery.Cache keyed by record ID.
type Handler struct {
	store  discovery.Cache
	tokens map[string]struct{}
}

// NewHandler creates a Handler. Requests must carry an Authorization header; if tokens is not
// empty its value must be one of them.
func NewHandler(store discovery.Cache, tokens ...string) *Handler {
	h := &Handler{
		store:  store,
		tokens: make(map[string]struct{}, len(tokens)),
	}
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			h.tokens[t] = struct{}{}
		}
	}
	return h
}

// Router returns a chi router serving the health check and the record routes.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the routes of h on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealthcheck)
	r.Group(func(r chi.Router) {
		r.Use(h.authenticate, validateRecordID)
		r.Get("/{recordID}", h.handleGet)
		r.Put("/{recordID}", h.handlePut)
	})
}

func (h *Handler) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get(discovery.AuthorizationHeader)
		if auth == "" {
			log.Debugf("rejecting %s %s without Authorization header", r.Method, r.URL.Path)
			http.Error(w, "missing Authorization header", http.StatusUnauthorized)
			return
		}
		if len(h.tokens) > 0 {
			if _, ok := h.tokens[auth]; !ok {
				log.Warnf("host %v sent unknown credentials for %s %s", r.RemoteAddr, r.Method, r.URL.Path)
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func validateRecordID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recordID := chi.URLParam(r, "recordID")
		if _, err := uuid.ParseUUID(recordID); err != nil {
			log.Debugf("record id '%v' rejected: %v", recordID, err)
			http.Error(w, "record id must be a UUID", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func recordKey(r *http.Request) string {
	return strings.ToLower(chi.URLParam(r, "recordID"))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	key := recordKey(r)
	url, err := h.store.Get(key)
	if err != nil {
		if errors.Is(err, discovery.ErrNotFound) {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		log.Errorf("error getting record %q from store: %v", key, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeRecord(w, Record{Data: RecordData{URL: url}})
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	key := recordKey(r)

	var rec Record
	d := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := d.Decode(&rec); err != nil {
		log.Debugf("error decoding JSON body: %v", err)
		http.Error(w, fmt.Sprintf("malformed request: %v", err), http.StatusBadRequest)
		return
	}
	if rec.Data.URL == "" {
		http.Error(w, "data.url must not be empty", http.StatusBadRequest)
		return
	}

	if err := h.store.Set(key, rec.Data.URL); err != nil {
		log.Errorf("error saving record %q: %v", key, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	log.Infof("stored record %s", key)

	writeRecord(w, rec)
}

func writeRecord(w http.ResponseWriter, rec Record) {
	w.Header().Set("Content-Type", "application/json")
	e := json.NewEncoder(w)
	if err := e.Encode(rec); err != nil {
		log.Errorf("error encoding JSON response: %v", err)
	}
}
