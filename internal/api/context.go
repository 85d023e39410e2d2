package api

import (
	"net/http"

	"github.com/ziadkadry99/ctxpack/internal/assembler"
	"github.com/ziadkadry99/ctxpack/internal/docstore"
	"github.com/ziadkadry99/ctxpack/internal/retrieval"
)

type retrieveRequest struct {
	Requester string `json:"requester"`
	Query     string `json:"query"`
	retrieval.Request
}

type retrieveResponse struct {
	Chunks []retrieval.Chunk `json:"chunks"`
}

func (h *Handler) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chunks, err := h.svc.RetrieveContext(r.Context(), requester(r, req.Requester), req.Query, req.Request)
	if err != nil {
		h.fail(w, r, "retrieve", err)
		return
	}
	if chunks == nil {
		chunks = []retrieval.Chunk{}
	}
	writeJSON(w, http.StatusOK, retrieveResponse{Chunks: chunks})
}

type promptRequest struct {
	Requester      string `json:"requester"`
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
	MaxTokens      int    `json:"max_tokens,omitempty"`
	Window         int    `json:"window,omitempty"`
	// Candidates skips retrieval when set.
	Candidates []retrieval.Chunk  `json:"candidates,omitempty"`
	Retrieval  *retrieval.Request `json:"retrieval,omitempty"`
}

func (h *Handler) handleBuildPrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx := r.Context()
	who := requester(r, req.Requester)

	conv, history, _, err := h.svc.History(ctx, req.ConversationID, who, req.Window)
	if err != nil {
		h.fail(w, r, "prompt", err)
		return
	}

	candidates := req.Candidates
	if candidates == nil {
		var rreq retrieval.Request
		if req.Retrieval != nil {
			rreq = *req.Retrieval
		}
		candidates, err = h.svc.RetrieveContext(ctx, who, req.Query, assembler.ForConversation(conv, rreq))
		if err != nil {
			h.fail(w, r, "prompt", err)
			return
		}
	}

	res, err := h.svc.BuildPrompt(ctx, who, req.Query, candidates, history, req.MaxTokens)
	if err != nil {
		h.fail(w, r, "prompt", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req assembler.AskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Requester = requester(r, req.Requester)

	res, err := h.svc.Ask(r.Context(), req)
	if err != nil {
		h.fail(w, r, "ask", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	var doc docstore.Document
	if err := decode(r, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if doc.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	stored, err := h.docs.PutDocument(r.Context(), doc)
	if err != nil {
		h.fail(w, r, "put document", err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}
