package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"assistanthub/internal/domain"
	"assistanthub/internal/metrics"

	"github.com/google/uuid"
)

// apiMessage is a domain.Message plus the markdown-rendered HTML the
// UI uses for assistant turns.
type apiMessage struct {
	domain.Message
	HTML string `json:"html,omitempty"`
}

func toAPIMessages(msgs []domain.Message) []apiMessage {
	out := make([]apiMessage, 0, len(msgs))
	for _, m := range msgs {
		am := apiMessage{Message: m}
		if m.Role == domain.RoleAssistant {
			am.HTML = renderMarkdown(m.Content)
		}
		out = append(out, am)
	}
	return out
}

type assistantPayload struct {
	Name       string `json:"name"`
	WebhookURL string `json:"webhookUrl"`
}

func (s *Server) handleListAssistants(rw http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListAssistants(r.Context())
	if err != nil {
		s.logger.Error("list assistants", "err", err)
		errorJSON(rw, http.StatusInternalServerError, "cannot list assistants")
		return
	}
	if list == nil {
		list = []domain.Assistant{}
	}
	metrics.AssistantsActive.Set(int64(len(list)))
	writeJSON(rw, http.StatusOK, list)
}

func (s *Server) handleCreateAssistant(rw http.ResponseWriter, r *http.Request) {
	var payload assistantPayload
	if err := decodeBody(r, &payload); err != nil {
		errorJSON(rw, http.StatusBadRequest, "invalid JSON")
		return
	}

	a := domain.Assistant{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(payload.Name),
		WebhookURL: strings.TrimSpace(payload.WebhookURL),
	}
	if err := a.Validate(); err != nil {
		errorJSON(rw, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.CreateAssistant(r.Context(), a); err != nil {
		s.logger.Error("create assistant", "err", err)
		errorJSON(rw, http.StatusInternalServerError, "cannot create assistant")
		return
	}

	s.logger.Info("assistant created", "id", a.ID, "name", a.Name)
	writeJSON(rw, http.StatusCreated, a)
}

func (s *Server) handleUpdateAssistant(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var payload assistantPayload
	if err := decodeBody(r, &payload); err != nil {
		errorJSON(rw, http.StatusBadRequest, "invalid JSON")
		return
	}

	a, err := s.store.GetAssistant(r.Context(), id)
	if err != nil {
		s.respondStoreError(rw, "get assistant", err)
		return
	}

	a.Name = strings.TrimSpace(payload.Name)
	a.WebhookURL = strings.TrimSpace(payload.WebhookURL)
	if err := a.Validate(); err != nil {
		errorJSON(rw, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.UpdateAssistant(r.Context(), *a); err != nil {
		s.respondStoreError(rw, "update assistant", err)
		return
	}
	writeJSON(rw, http.StatusOK, a)
}

func (s *Server) handleDeleteAssistant(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteAssistant(r.Context(), id); err != nil {
		s.respondStoreError(rw, "delete assistant", err)
		return
	}
	s.logger.Info("assistant deleted", "id", id)
	writeJSON(rw, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleGetMessages(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	msgs, err := s.store.Load(r.Context(), id)
	if err != nil {
		// Unreadable history renders as an empty conversation.
		s.logger.Warn("load conversation", "assistant", id, "err", err)
		msgs = nil
	}
	writeJSON(rw, http.StatusOK, map[string]any{"messages": toAPIMessages(msgs)})
}

type sendPayload struct {
	Message string `json:"message"`
}

func (s *Server) handleSend(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var payload sendPayload
	if err := decodeBody(r, &payload); err != nil {
		errorJSON(rw, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		errorJSON(rw, http.StatusBadRequest, "empty message")
		return
	}

	a, err := s.store.GetAssistant(r.Context(), id)
	if err != nil {
		s.respondStoreError(rw, "get assistant", err)
		return
	}

	appended, err := s.engine.Send(r.Context(), *a, payload.Message)
	if err != nil {
		s.logger.Error("exchange failed", "assistant", id, "err", err)
		errorJSON(rw, http.StatusInternalServerError, "exchange failed")
		return
	}

	writeJSON(rw, http.StatusOK, map[string]any{"messages": toAPIMessages(appended)})
}

func (s *Server) handleClearMessages(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Clear(r.Context(), id); err != nil {
		s.logger.Error("clear conversation", "assistant", id, "err", err)
		errorJSON(rw, http.StatusInternalServerError, "cannot clear conversation")
		return
	}
	writeJSON(rw, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleExportConversation(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	msgs, err := s.store.Load(r.Context(), id)
	if err != nil {
		s.logger.Warn("export conversation", "assistant", id, "err", err)
		msgs = nil
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	rw.Header().Set("Content-Disposition", `attachment; filename="conversation-`+id+`.json"`)
	writeJSON(rw, http.StatusOK, msgs)
}

func (s *Server) handleImportConversation(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var msgs []domain.Message
	if err := decodeBody(r, &msgs); err != nil {
		errorJSON(rw, http.StatusBadRequest, "expected a JSON array of messages")
		return
	}

	if _, err := s.store.GetAssistant(r.Context(), id); err != nil {
		s.respondStoreError(rw, "get assistant", err)
		return
	}

	if err := s.store.Save(r.Context(), id, msgs); err != nil {
		s.logger.Error("import conversation", "assistant", id, "err", err)
		errorJSON(rw, http.StatusInternalServerError, "cannot import conversation")
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"status": "imported", "count": len(msgs)})
}

// registryBackup is the whole-registry backup document.
type registryBackup struct {
	Assistants []domain.Assistant `json:"assistants"`
	ExportedAt time.Time          `json:"exportedAt"`
}

func (s *Server) handleExportRegistry(rw http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListAssistants(r.Context())
	if err != nil {
		s.logger.Error("export registry", "err", err)
		errorJSON(rw, http.StatusInternalServerError, "cannot export assistants")
		return
	}
	if list == nil {
		list = []domain.Assistant{}
	}
	rw.Header().Set("Content-Disposition", `attachment; filename="assistant-backup.json"`)
	writeJSON(rw, http.StatusOK, registryBackup{Assistants: list, ExportedAt: time.Now().UTC()})
}

// handleImportRegistry replaces the assistant registry with the backup
// contents, the same way the export shape round-trips.
func (s *Server) handleImportRegistry(rw http.ResponseWriter, r *http.Request) {
	var backup registryBackup
	if err := decodeBody(r, &backup); err != nil {
		errorJSON(rw, http.StatusBadRequest, "invalid backup JSON")
		return
	}
	if backup.Assistants == nil {
		errorJSON(rw, http.StatusBadRequest, "backup has no assistants array")
		return
	}

	existing, err := s.store.ListAssistants(r.Context())
	if err != nil {
		s.logger.Error("import registry", "err", err)
		errorJSON(rw, http.StatusInternalServerError, "cannot import assistants")
		return
	}
	for _, a := range existing {
		if err := s.store.DeleteAssistant(r.Context(), a.ID); err != nil {
			s.logger.Error("import registry: delete", "id", a.ID, "err", err)
			errorJSON(rw, http.StatusInternalServerError, "cannot import assistants")
			return
		}
	}

	imported := 0
	for _, a := range backup.Assistants {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if err := a.Validate(); err != nil {
			s.logger.Warn("skipping invalid assistant in backup", "name", a.Name, "err", err)
			continue
		}
		if err := s.store.CreateAssistant(r.Context(), a); err != nil {
			s.logger.Error("import registry: create", "id", a.ID, "err", err)
			continue
		}
		imported++
	}

	s.logger.Info("registry imported", "count", imported)
	writeJSON(rw, http.StatusOK, map[string]any{"status": "imported", "count": imported})
}

func (s *Server) handleStatus(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().Format(time.RFC3339),
	})
}

func (s *Server) respondStoreError(rw http.ResponseWriter, op string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		errorJSON(rw, http.StatusNotFound, "assistant not found")
		return
	}
	s.logger.Error(op, "err", err)
	errorJSON(rw, http.StatusInternalServerError, "storage error")
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}

func errorJSON(rw http.ResponseWriter, status int, msg string) {
	writeJSON(rw, status, map[string]string{"error": msg})
}
