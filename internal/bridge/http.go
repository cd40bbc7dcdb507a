package bridge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Handler exposes the ask endpoints over HTTP.
type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// Register wires the ask routes onto a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/ask/session", h.handleSession)
	mux.HandleFunc("/api/ask/current", h.handleCurrent)
	mux.HandleFunc("/api/ask/see-more", h.handleSeeMore)
	mux.HandleFunc("/api/ask/custom", h.handleCustom)
	mux.HandleFunc("/api/ask/watch", h.handleWatchSSE)
	mux.HandleFunc("/api/ask/ws", h.handleWS)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func userIDFrom(r *http.Request, body map[string]any) string {
	if body != nil {
		if id, ok := body["user_id"].(string); ok && strings.TrimSpace(id) != "" {
			return strings.TrimSpace(id)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("user_id"))
}

func decodeBody(r *http.Request) (map[string]any, error) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body, nil
}

// handleSession creates or resumes a session and runs the initial load.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		body, err := decodeBody(r)
		if err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		userID := userIDFrom(r, body)
		if userID == "" {
			http.Error(w, "user_id is required", http.StatusBadRequest)
			return
		}
		count := 0
		if n, ok := body["count"].(float64); ok {
			count = int(n)
		}
		binding, created := h.registry.GetOrCreate(r.Context(), userID)
		if created {
			writeJSON(w, http.StatusOK, binding.Refresh(r.Context(), count))
			return
		}
		writeJSON(w, http.StatusOK, binding.State())
	case http.MethodDelete:
		userID := userIDFrom(r, nil)
		if userID == "" {
			http.Error(w, "user_id is required", http.StatusBadRequest)
			return
		}
		h.registry.Drop(userID)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	binding, ok := h.bindingFor(w, r, nil)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, binding.State())
}

func (h *Handler) handleSeeMore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := decodeBody(r)
	if err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	binding, ok := h.bindingFor(w, r, body)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, binding.SeeMore(r.Context()))
}

func (h *Handler) handleCustom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := decodeBody(r)
	if err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	question, _ := body["question"].(string)
	if strings.TrimSpace(question) == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}
	binding, ok := h.bindingFor(w, r, body)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, binding.AskCustom(r.Context(), question))
}

// handleWatchSSE streams UI state updates as Server-Sent Events.
func (h *Handler) handleWatchSSE(w http.ResponseWriter, r *http.Request) {
	binding, ok := h.bindingFor(w, r, nil)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates, unsubscribe := binding.Subscribe()
	defer unsubscribe()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case state, open := <-updates:
			if !open {
				fmt.Fprintf(w, "event: close\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, err := json.Marshal(state)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (h *Handler) bindingFor(w http.ResponseWriter, r *http.Request, body map[string]any) (*Binding, bool) {
	userID := userIDFrom(r, body)
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return nil, false
	}
	binding, ok := h.registry.Get(userID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return binding, true
}
