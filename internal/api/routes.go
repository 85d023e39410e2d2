// Package api exposes context assembly over HTTP and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/ctxpack/internal/assembler"
	"github.com/ziadkadry99/ctxpack/internal/compress"
	"github.com/ziadkadry99/ctxpack/internal/docstore"
	"github.com/ziadkadry99/ctxpack/internal/llm"
	"github.com/ziadkadry99/ctxpack/internal/packer"
	"github.com/ziadkadry99/ctxpack/internal/retrieval"
)

// RequesterHeader identifies the caller when a request body does not.
const RequesterHeader = "X-Requester"

// DocumentWriter stores a document. The indexer implements it to keep the
// semantic index in step with the store.
type DocumentWriter interface {
	PutDocument(ctx context.Context, d docstore.Document) (*docstore.Document, error)
}

// Handler serves the API routes.
type Handler struct {
	svc   *assembler.Service
	store *docstore.Store
	docs  DocumentWriter
	log   logrus.FieldLogger
}

// NewHandler creates a Handler. docs may be nil, in which case documents
// are written to store directly.
func NewHandler(svc *assembler.Service, store *docstore.Store, docs DocumentWriter, log logrus.FieldLogger) *Handler {
	if docs == nil {
		docs = store
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{svc: svc, store: store, docs: docs, log: log}
}

// RegisterRoutes mounts the API and chat routes.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/context/retrieve", h.handleRetrieve)
		r.Post("/context/prompt", h.handleBuildPrompt)
		r.Post("/ask", h.handleAsk)
		r.Post("/documents", h.handlePutDocument)

		r.Post("/conversations", h.handleCreateConversation)
		r.Route("/conversations/{id}", func(r chi.Router) {
			r.Post("/messages", h.handleAppendMessage)
			r.Get("/messages", h.handleListMessages)
			r.Post("/documents", h.handleAttachDocument)
			r.Post("/compress", h.handleCompress)
			r.Get("/stats", h.handleStats)
		})
	})
	r.Get("/ws/chat", h.handleChat)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps an operation error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, retrieval.ErrInvalidRequest),
		errors.Is(err, packer.ErrInvalidBudget),
		errors.Is(err, compress.ErrInvalidWindow):
		return http.StatusBadRequest
	case errors.Is(err, docstore.ErrUnknownConversation):
		return http.StatusNotFound
	case errors.Is(err, llm.ErrNoProvider), errors.Is(err, llm.ErrMissingCredentials):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("op", op).Error("request failed")
	}
	writeError(w, status, err.Error())
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// requester returns the body's requester, falling back to the header.
func requester(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if v := strings.TrimSpace(r.Header.Get(RequesterHeader)); v != "" {
		return v
	}
	return "anonymous"
}
