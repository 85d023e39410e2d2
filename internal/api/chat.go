package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/ctxpack/internal/assembler"
	"github.com/ziadkadry99/ctxpack/internal/prompt"
)

const maxTitleRunes = 60

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatRequest is the incoming WebSocket message format.
type chatRequest struct {
	Type           string `json:"type"`                      // "ask" or "stats"
	ConversationID string `json:"conversation_id,omitempty"` // empty starts a new conversation
	Requester      string `json:"requester,omitempty"`
	Content        string `json:"content"`
	MaxTokens      int    `json:"max_tokens,omitempty"`
}

// chatResponse is the outgoing WebSocket message format.
type chatResponse struct {
	Type           string            `json:"type"` // "response", "stats" or "error"
	ConversationID string            `json:"conversation_id,omitempty"`
	Content        string            `json:"content,omitempty"`
	Citations      []prompt.Citation `json:"citations,omitempty"`
	Truncated      bool              `json:"truncated,omitempty"`
	Data           any               `json:"data,omitempty"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("chat: websocket upgrade")
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).Warn("chat: websocket read")
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			h.sendError(conn, "", "invalid message format")
			continue
		}

		switch req.Type {
		case "ask", "":
			h.handleChatAsk(conn, r, req)
		case "stats":
			h.handleChatStats(conn, r, req)
		default:
			h.sendError(conn, req.ConversationID, "unknown message type: "+req.Type)
		}
	}
}

func (h *Handler) handleChatAsk(conn *websocket.Conn, r *http.Request, req chatRequest) {
	if req.Content == "" {
		h.sendError(conn, req.ConversationID, "content is required")
		return
	}
	ctx := r.Context()
	who := requester(r, req.Requester)
	convID := req.ConversationID

	if convID == "" {
		conv, err := h.store.CreateConversation(ctx, who, chatTitle(req.Content), "")
		if err != nil {
			h.sendError(conn, "", "failed to create conversation: "+err.Error())
			return
		}
		convID = conv.ID
	}

	res, err := h.svc.Ask(ctx, assembler.AskRequest{
		Requester:      who,
		Query:          req.Content,
		ConversationID: convID,
		MaxTokens:      req.MaxTokens,
	})
	if err != nil {
		h.sendError(conn, convID, "question failed: "+err.Error())
		return
	}

	h.sendResponse(conn, chatResponse{
		Type:           "response",
		ConversationID: convID,
		Content:        res.Answer,
		Citations:      res.Citations,
		Truncated:      res.Truncated,
	})
}

func (h *Handler) handleChatStats(conn *websocket.Conn, r *http.Request, req chatRequest) {
	if req.ConversationID == "" {
		h.sendError(conn, "", "conversation_id is required")
		return
	}
	st, err := h.svc.GetContextStats(r.Context(), req.ConversationID)
	if err != nil {
		h.sendError(conn, req.ConversationID, "stats failed: "+err.Error())
		return
	}
	h.sendResponse(conn, chatResponse{Type: "stats", ConversationID: req.ConversationID, Data: st})
}

func (h *Handler) sendResponse(conn *websocket.Conn, resp chatResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		h.log.WithError(err).Warn("chat: websocket write")
	}
}

func (h *Handler) sendError(conn *websocket.Conn, conversationID, message string) {
	h.sendResponse(conn, chatResponse{
		Type:           "error",
		ConversationID: conversationID,
		Content:        message,
	})
}

func chatTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= maxTitleRunes {
		return content
	}
	return string(runes[:maxTitleRunes]) + "..."
}
