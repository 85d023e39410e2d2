package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/ctxpack/internal/compress"
	"github.com/ziadkadry99/ctxpack/internal/conversation"
)

type createConversationRequest struct {
	Owner       string   `json:"owner"`
	Title       string   `json:"title"`
	ScopeID     string   `json:"scope_id,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

func (h *Handler) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx := r.Context()

	conv, err := h.store.CreateConversation(ctx, requester(r, req.Owner), req.Title, req.ScopeID)
	if err != nil {
		h.fail(w, r, "create conversation", err)
		return
	}
	for _, id := range req.DocumentIDs {
		if err := h.store.AttachDocument(ctx, conv.ID, id); err != nil {
			h.fail(w, r, "attach document", err)
			return
		}
		conv.DocumentIDs = append(conv.DocumentIDs, id)
	}
	writeJSON(w, http.StatusCreated, conv)
}

// messagesResponse wraps a conversation's history.
type messagesResponse struct {
	Messages []conversation.Message `json:"messages"`
}

type appendMessageRequest struct {
	Role    conversation.Role `json:"role"`
	Content string            `json:"content"`
}

func (h *Handler) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	var req appendMessageRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.Role != conversation.RoleUser && req.Role != conversation.RoleAssistant {
		writeError(w, http.StatusBadRequest, "role must be user or assistant")
		return
	}

	id := chi.URLParam(r, "id")
	if !h.ownConversation(w, r, id) {
		return
	}
	msg, err := h.store.AppendMessage(r.Context(), id, req.Role, req.Content)
	if err != nil {
		h.fail(w, r, "append message", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.ownConversation(w, r, id) {
		return
	}

	msgs, err := h.store.ListMessages(r.Context(), id)
	if err != nil {
		h.fail(w, r, "list messages", err)
		return
	}
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: msgs})
}

type attachDocumentRequest struct {
	DocumentID string `json:"document_id"`
}

func (h *Handler) handleAttachDocument(w http.ResponseWriter, r *http.Request) {
	var req attachDocumentRequest
	if err := decode(r, &req); err != nil || req.DocumentID == "" {
		writeError(w, http.StatusBadRequest, "document_id is required")
		return
	}
	id := chi.URLParam(r, "id")
	if !h.ownConversation(w, r, id) {
		return
	}
	if err := h.store.AttachDocument(r.Context(), id, req.DocumentID); err != nil {
		h.fail(w, r, "attach document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownConversation reports whether the header requester may use conversation
// id. A missing conversation and one owned by someone else both answer 404.
func (h *Handler) ownConversation(w http.ResponseWriter, r *http.Request, id string) bool {
	conv, err := h.store.GetConversation(r.Context(), id)
	if err != nil {
		h.fail(w, r, "load conversation", err)
		return false
	}
	if conv == nil || !conv.VisibleTo(requester(r, "")) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return false
	}
	return true
}

type compressRequest struct {
	Requester string `json:"requester"`
	Window    int    `json:"window,omitempty"`
}

type compressResponse struct {
	Compressed bool              `json:"compressed"`
	Summary    *compress.Summary `json:"summary,omitempty"`
}

func (h *Handler) handleCompress(w http.ResponseWriter, r *http.Request) {
	var req compressRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	summary, err := h.svc.CompressHistoryIfNeeded(r.Context(), chi.URLParam(r, "id"), requester(r, req.Requester), req.Window)
	if err != nil {
		h.fail(w, r, "compress", err)
		return
	}
	writeJSON(w, http.StatusOK, compressResponse{Compressed: summary != nil, Summary: summary})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.GetContextStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
