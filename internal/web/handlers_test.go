package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinsane/ClassicRides/internal/gateway"
	"github.com/justinsane/ClassicRides/internal/memory"
	"github.com/justinsane/ClassicRides/internal/pipeline"
)

type stubGen struct {
	narration  *gateway.Narration
	narrateErr error
	imageURL   string
	illusErr   error
	revisedURL string
	reviseErr  error

	// When set, Narrate blocks until the gate closes.
	narrateGate chan struct{}
	narrating   chan struct{}
}

func (g *stubGen) Narrate(ctx context.Context, userPrompt string) (*gateway.Narration, error) {
	if g.narrating != nil {
		g.narrating <- struct{}{}
	}
	if g.narrateGate != nil {
		<-g.narrateGate
	}
	if g.narrateErr != nil {
		return nil, g.narrateErr
	}
	return g.narration, nil
}

func (g *stubGen) Illustrate(ctx context.Context, imagePrompt string) (string, error) {
	if g.illusErr != nil {
		return "", g.illusErr
	}
	return g.imageURL, nil
}

func (g *stubGen) Revise(ctx context.Context, imageURL, instruction string) (string, error) {
	if g.reviseErr != nil {
		return "", g.reviseErr
	}
	return g.revisedURL, nil
}

func setupServer(t *testing.T, gen gateway.Generator, apiKey string) (*httptest.Server, memory.Store) {
	t.Helper()
	store := memory.NewMemStore()
	hub := NewEventHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	session := pipeline.NewSession(gen, store, hub)
	handlers := NewHandlers(gen, session, store, hub, apiKey)
	srv := httptest.NewServer(NewRouter(handlers))
	t.Cleanup(srv.Close)
	return srv, store
}

func happyGen() *stubGen {
	return &stubGen{
		narration: &gateway.Narration{
			Narrative:   "Ah, the '68 Camaro.",
			FunFacts:    []string{"a", "b"},
			ImagePrompt: "a 1968 Camaro at sunset",
		},
		imageURL:   "data:image/png;base64,AAA",
		revisedURL: "data:image/png;base64,BBB",
	}
}

func postJSON(t *testing.T, srv *httptest.Server, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestNarrateEndpoint(t *testing.T) {
	srv, _ := setupServer(t, happyGen(), "sk-test")

	resp, body := postJSON(t, srv, "/narrate", `{"userPrompt":"My first car was a '68 Camaro"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ah, the '68 Camaro.", body["narrative"])
	assert.Equal(t, []any{"a", "b"}, body["funFacts"])
	assert.Equal(t, "a 1968 Camaro at sunset", body["imagePrompt"])
}

func TestNarrateEndpoint_MissingPrompt(t *testing.T) {
	srv, _ := setupServer(t, happyGen(), "sk-test")

	resp, body := postJSON(t, srv, "/narrate", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "userPrompt is required", body["error"])
}

func TestNarrateEndpoint_BadJSON(t *testing.T) {
	srv, _ := setupServer(t, happyGen(), "sk-test")

	resp, body := postJSON(t, srv, "/narrate", `{bad json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "failed to parse request body")
}

func TestNarrateEndpoint_UpstreamFailure(t *testing.T) {
	gen := happyGen()
	gen.narrateErr = &gateway.UpstreamError{Message: "Gramps is having a bit of engine trouble. Please try again."}
	srv, _ := setupServer(t, gen, "sk-test")

	resp, body := postJSON(t, srv, "/narrate", `{"userPrompt":"a '59 Cadillac"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "Gramps is having a bit of engine trouble. Please try again.", body["error"])
}

func TestIllustrateEndpoint(t *testing.T) {
	srv, _ := setupServer(t, happyGen(), "sk-test")

	resp, body := postJSON(t, srv, "/illustrate", `{"imagePrompt":"a 1968 Camaro at sunset"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "data:image/png;base64,AAA", body["imageUrl"])

	resp, body = postJSON(t, srv, "/illustrate", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "imagePrompt is required", body["error"])
}

func TestReviseEndpoint(t *testing.T) {
	srv, _ := setupServer(t, happyGen(), "sk-test")

	resp, body := postJSON(t, srv, "/revise", `{"imageUrl":"data:image/png;base64,AAA","instruction":"make it blue"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "data:image/png;base64,BBB", body["imageUrl"])

	resp, body = postJSON(t, srv, "/revise", `{"imageUrl":"data:image/png;base64,AAA"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "instruction is required", body["error"])
}

func TestReviseEndpoint_InvalidImageRef(t *testing.T) {
	gen := happyGen()
	gen.reviseErr = &gateway.InvalidImageError{Reason: "invalid base64 string for image"}
	srv, _ := setupServer(t, gen, "sk-test")

	resp, body := postJSON(t, srv, "/revise", `{"imageUrl":"not-a-data-uri","instruction":"make it blue"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "invalid base64 string")
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := setupServer(t, happyGen(), "sk-1234567890")

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["hasApiKey"])
	assert.Equal(t, "sk-1...", body["keyPrefix"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestHealthEndpoint_NoKey(t *testing.T) {
	srv, _ := setupServer(t, happyGen(), "")

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["hasApiKey"])
	assert.Equal(t, "none", body["keyPrefix"])
}

func TestMemoryFlow(t *testing.T) {
	srv, store := setupServer(t, happyGen(), "sk-test")

	// Generate a new memory through the session.
	resp, created := postJSON(t, srv, "/api/v1/memory/new", `{"userPrompt":"My first car was a '68 Camaro"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "data:image/png;base64,AAA", created["imageUrl"])

	memories, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, memories, 1)

	// Remix replaces only the image.
	resp, remixed := postJSON(t, srv, "/api/v1/memory/remix", `{"instruction":"make it blue"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, remixed["id"])
	assert.Equal(t, "data:image/png;base64,BBB", remixed["imageUrl"])
	assert.Equal(t, created["narrative"], remixed["narrative"])

	// The scrapbook still holds one record, with the revised image.
	resp, err2 := http.Get(srv.URL + "/api/v1/scrapbook")
	require.NoError(t, err2)
	defer resp.Body.Close()
	var book map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&book))
	assert.Equal(t, float64(1), book["count"])

	// Selecting from the scrapbook makes the record active again.
	resp, selected := postJSON(t, srv, "/api/v1/scrapbook/"+id+"/select", `{}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, selected["id"])

	resp, err2 = http.Get(srv.URL + "/api/v1/memory/active")
	require.NoError(t, err2)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewMemory_BusyReturns409(t *testing.T) {
	gen := happyGen()
	gen.narrateGate = make(chan struct{})
	gen.narrating = make(chan struct{}, 1)
	srv, _ := setupServer(t, gen, "sk-test")

	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := http.Post(srv.URL+"/api/v1/memory/new", "application/json",
			strings.NewReader(`{"userPrompt":"a '68 Camaro"}`))
		if err == nil {
			resp.Body.Close()
		}
	}()

	// Wait until the first run holds the pipeline, then try a second.
	<-gen.narrating
	resp, body := postJSON(t, srv, "/api/v1/memory/new", `{"userPrompt":"a '59 Cadillac"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "already in progress")

	close(gen.narrateGate)
	<-done
}

func TestRemix_NoActiveMemory(t *testing.T) {
	srv, _ := setupServer(t, happyGen(), "sk-test")

	resp, body := postJSON(t, srv, "/api/v1/memory/remix", `{"instruction":"make it blue"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "no active memory")
}

func TestActiveMemory_NoneYet(t *testing.T) {
	srv, _ := setupServer(t, happyGen(), "sk-test")

	resp, err := http.Get(srv.URL + "/api/v1/memory/active")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSelectMemory_NotFound(t *testing.T) {
	srv, _ := setupServer(t, happyGen(), "sk-test")

	resp, body := postJSON(t, srv, "/api/v1/scrapbook/nope/select", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body["error"], "not found")
}
