package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/justinsane/ClassicRides/internal/gateway"
	"github.com/justinsane/ClassicRides/internal/memory"
	"github.com/justinsane/ClassicRides/internal/pipeline"
	"github.com/justinsane/ClassicRides/internal/reqbody"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // single-user app served from the same origin
	},
}

type Handlers struct {
	gen     gateway.Generator
	session *pipeline.Session
	store   memory.Store
	hub     *EventHub
	apiKey  string
}

func NewHandlers(gen gateway.Generator, session *pipeline.Session, store memory.Store, hub *EventHub, apiKey string) *Handlers {
	return &Handlers{
		gen:     gen,
		session: session,
		store:   store,
		hub:     hub,
		apiKey:  apiKey,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// mapError translates pipeline vocabulary errors into HTTP statuses. A
// client mistake is never reported as a 5xx; an upstream failure is
// never reported as anything else.
func mapError(w http.ResponseWriter, err error) {
	var parseErr *reqbody.ParseError
	var invalidImage *gateway.InvalidImageError
	var upstream *gateway.UpstreamError

	switch {
	case errors.As(err, &parseErr):
		writeError(w, http.StatusBadRequest, parseErr.Error())
	case errors.As(err, &invalidImage):
		writeError(w, http.StatusBadRequest, invalidImage.Error())
	case errors.As(err, &upstream):
		writeError(w, http.StatusBadGateway, upstream.Message)
	case errors.Is(err, pipeline.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrNoActiveMemory):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, memory.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// parseBody normalizes the request body and reports failures as 4xx.
func parseBody(w http.ResponseWriter, r *http.Request) (*reqbody.Body, bool) {
	body, err := reqbody.Parse(r.Context(), r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return body, true
}

func requireString(w http.ResponseWriter, body *reqbody.Body, name string) (string, bool) {
	value, ok := body.StringField(name)
	if !ok || value == "" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s is required", name))
		return "", false
	}
	return value, true
}

// Health reports process status and whether the upstream credential is
// configured. The key value itself never leaves the process.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	keyPrefix := "none"
	if len(h.apiKey) >= 4 {
		keyPrefix = h.apiKey[:4] + "..."
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"hasApiKey": h.apiKey != "",
		"keyPrefix": keyPrefix,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type narrateResponse struct {
	Narrative   string   `json:"narrative"`
	FunFacts    []string `json:"funFacts"`
	ImagePrompt string   `json:"imagePrompt"`
}

type imageResponse struct {
	ImageURL string `json:"imageUrl"`
}

// Narrate handles POST /narrate: {userPrompt} -> story, facts, prompt.
func (h *Handlers) Narrate(w http.ResponseWriter, r *http.Request) {
	body, ok := parseBody(w, r)
	if !ok {
		return
	}
	userPrompt, ok := requireString(w, body, "userPrompt")
	if !ok {
		return
	}

	narration, err := h.gen.Narrate(r.Context(), userPrompt)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, narrateResponse{
		Narrative:   narration.Narrative,
		FunFacts:    narration.FunFacts,
		ImagePrompt: narration.ImagePrompt,
	})
}

// Illustrate handles POST /illustrate: {imagePrompt} -> {imageUrl}.
func (h *Handlers) Illustrate(w http.ResponseWriter, r *http.Request) {
	body, ok := parseBody(w, r)
	if !ok {
		return
	}
	imagePrompt, ok := requireString(w, body, "imagePrompt")
	if !ok {
		return
	}

	imageURL, err := h.gen.Illustrate(r.Context(), imagePrompt)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{ImageURL: imageURL})
}

// Revise handles POST /revise: {imageUrl, instruction} -> {imageUrl}.
func (h *Handlers) Revise(w http.ResponseWriter, r *http.Request) {
	body, ok := parseBody(w, r)
	if !ok {
		return
	}
	imageURL, ok := requireString(w, body, "imageUrl")
	if !ok {
		return
	}
	instruction, ok := requireString(w, body, "instruction")
	if !ok {
		return
	}

	revised, err := h.gen.Revise(r.Context(), imageURL, instruction)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{ImageURL: revised})
}

// NewMemory handles POST /api/v1/memory/new: runs the full pipeline for
// a prompt and returns the saved memory.
func (h *Handlers) NewMemory(w http.ResponseWriter, r *http.Request) {
	body, ok := parseBody(w, r)
	if !ok {
		return
	}
	userPrompt, ok := requireString(w, body, "userPrompt")
	if !ok {
		return
	}

	m, err := h.session.Begin(r.Context(), userPrompt)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// RemixMemory handles POST /api/v1/memory/remix: revises the active
// memory's image.
func (h *Handlers) RemixMemory(w http.ResponseWriter, r *http.Request) {
	body, ok := parseBody(w, r)
	if !ok {
		return
	}
	instruction, ok := requireString(w, body, "instruction")
	if !ok {
		return
	}

	m, err := h.session.ReviseActive(r.Context(), instruction)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ActiveMemory handles GET /api/v1/memory/active.
func (h *Handlers) ActiveMemory(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session.Active()
	if !ok {
		writeError(w, http.StatusNotFound, "no active memory")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Scrapbook handles GET /api/v1/scrapbook: most-recent-first listing.
func (h *Handlers) Scrapbook(w http.ResponseWriter, r *http.Request) {
	memories, err := h.store.List(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"memories": memories,
		"count":    len(memories),
	})
}

// SelectMemory handles POST /api/v1/scrapbook/{id}/select: loads a
// saved memory as the active one without contacting the generator.
func (h *Handlers) SelectMemory(w http.ResponseWriter, r *http.Request, id string) {
	m, err := h.session.SelectFromStore(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Events handles GET /ws/events: upgrades to a WebSocket and streams
// pipeline events.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		ID:   newClientID(),
		Conn: conn,
		Send: make(chan []byte, clientSendBuffer),
		hub:  h.hub,
	}
	h.hub.register <- client
}
