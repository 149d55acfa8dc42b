// Package api serves the identity store over HTTP. Only public material is
// ever returned; private keys never leave the store through this interface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/gluk-w/sshagent/internal/keystore"
	"github.com/gluk-w/sshagent/internal/logging"
	"github.com/gluk-w/sshagent/internal/sshkeys"
)

type server struct {
	store *keystore.Store
}

// NewRouter returns the HTTP handler for store.
func NewRouter(store *keystore.Store) http.Handler {
	s := &server{store: store}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.health)
	r.Route("/api/v1/identities", func(r chi.Router) {
		r.Get("/", s.listIdentities)
		r.Get("/{id}", s.getIdentity)
		r.Get("/{id}/public", s.getPublicKey)
		r.Delete("/{id}", s.deleteIdentity)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"component":  "api",
			"request_id": chimw.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       logging.Sanitize(r.URL.Path),
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
		}).Debug("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeStoreError(w http.ResponseWriter, err error) {
	var mismatch *sshkeys.FingerprintMismatchError
	switch {
	case errors.Is(err, keystore.ErrNotFound):
		writeError(w, http.StatusNotFound, "identity not found")
	case errors.As(err, &mismatch):
		log.WithFields(log.Fields{"component": "api", "expected": mismatch.Expected, "actual": mismatch.Actual}).
			Error("stored identity failed fingerprint verification")
		writeError(w, http.StatusConflict, "stored identity failed fingerprint verification")
	default:
		log.WithField("component", "api").WithError(err).Error("store error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "connected"
	status := "healthy"
	if err := s.store.Ping(); err != nil {
		dbStatus = "disconnected"
		status = "unhealthy"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"database": dbStatus,
	})
}

func (s *server) listIdentities(w http.ResponseWriter, r *http.Request) {
	idents, err := s.store.List()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if idents == nil {
		idents = []keystore.Identity{}
	}
	writeJSON(w, http.StatusOK, idents)
}

func (s *server) getIdentity(w http.ResponseWriter, r *http.Request) {
	ident, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

type publicKeyResponse struct {
	ID            string `json:"id"`
	KeyType       string `json:"key_type"`
	Fingerprint   string `json:"fingerprint"`
	AuthorizedKey string `json:"authorized_key"`
}

func (s *server) getPublicKey(w http.ResponseWriter, r *http.Request) {
	ident, pub, err := s.store.PublicIdentity(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, publicKeyResponse{
		ID:            ident.ID,
		KeyType:       ident.KeyType,
		Fingerprint:   ident.Fingerprint,
		AuthorizedKey: string(sshkeys.MarshalAuthorizedKey(pub, logging.Sanitize(ident.Comment))),
	})
}

func (s *server) deleteIdentity(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Remove(chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
