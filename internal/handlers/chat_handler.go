package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"

	"github.com/ternarybob/auspex/internal/session"
	"github.com/ternarybob/auspex/pkg/models"
)

// ChatHandler exposes the per-session assistant conversation.
type ChatHandler struct {
	sessions *session.Manager
	markdown goldmark.Markdown
	logger   arbor.ILogger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(sessions *session.Manager, logger arbor.ILogger) *ChatHandler {
	return &ChatHandler{
		sessions: sessions,
		markdown: goldmark.New(),
		logger:   logger,
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

// SubmitHandler handles POST /api/chat
func (h *ChatHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	sess, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := sess.Supervisor.SubmitChat(req.Message); err != nil {
		// Empty input, a turn already in flight, or a busy pipeline.
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteStarted(w, "Chat message submitted")
}

type chatHistoryEntry struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
	HTML    string `json:"html,omitempty"`
}

// HistoryHandler handles GET /api/chat/history. With ?format=html each
// message also carries its markdown rendered to HTML.
func (h *ChatHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	sess, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}

	renderHTML := r.URL.Query().Get("format") == "html"
	history := sess.Supervisor.ChatHistory()

	entries := make([]chatHistoryEntry, 0, len(history))
	for _, msg := range history {
		entry := chatHistoryEntry{
			ID:      msg.ID,
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		if renderHTML && msg.Role == models.ChatRoleModel {
			entry.HTML = h.renderMarkdown(msg.Content)
		}
		entries = append(entries, entry)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"messages": entries,
		"count":    len(entries),
	})
}

func (h *ChatHandler) renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(content), &buf); err != nil {
		h.logger.Warn().Err(err).Msg("Markdown render failed")
		return ""
	}
	return buf.String()
}
