package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/justinsane/ClassicRides/internal/config"
	"github.com/justinsane/ClassicRides/internal/prompts"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 120 * time.Second
)

// Client implements Generator against an OpenAI-compatible API.
type Client struct {
	client     *openai.Client
	httpClient *http.Client
	baseURL    string
	apiKey     string
	textModel  string
	imageModel string
	maxTokens  int
	temp       float32
}

func NewClient(cfg config.AIConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = baseURL

	return &Client{
		client:     openai.NewClientWithConfig(clientCfg),
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		maxTokens:  cfg.MaxTokens,
		temp:       float32(cfg.Temperature),
	}
}

// Narrate asks the text model for a story, fun facts and an image
// prompt in one JSON object.
func (c *Client) Narrate(ctx context.Context, userPrompt string) (*Narration, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.textModel,
		MaxTokens:   c.maxTokens,
		Temperature: c.temp,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: prompts.GrampsSystem + "\n\n" + prompts.StorySchemaHint,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompts.NarrateUser(userPrompt),
			},
		},
	})
	if err != nil {
		slog.Error("narrate request failed", "error", err)
		return nil, upstreamErr(prompts.NarrateFallback, err)
	}
	if len(resp.Choices) == 0 {
		return nil, upstreamMsg(prompts.NarrateFallback)
	}

	var narration Narration
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &narration); err != nil {
		slog.Error("narrate response is not valid JSON", "error", err)
		return nil, upstreamErr(prompts.NarrateFallback, err)
	}
	if narration.Narrative == "" || narration.ImagePrompt == "" || len(narration.FunFacts) == 0 {
		slog.Error("narrate response is missing fields",
			"hasStory", narration.Narrative != "",
			"hasImagePrompt", narration.ImagePrompt != "",
			"funFacts", len(narration.FunFacts))
		return nil, upstreamMsg(prompts.NarrateFallback)
	}
	return &narration, nil
}

// Illustrate generates an image for a scene description and returns it
// as a data URI. The Polaroid style suffix is applied here so every
// caller gets the same look.
func (c *Client) Illustrate(ctx context.Context, imagePrompt string) (string, error) {
	fullPrompt := imagePrompt + prompts.ImageStyleSuffix

	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         fullPrompt,
		Model:          c.imageModel,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		slog.Error("illustrate request failed", "error", err)
		return "", upstreamErr(prompts.IllustrateFallback, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", upstreamMsg("no image data found in response")
	}
	return formatDataURIB64("image/png", resp.Data[0].B64JSON), nil
}

// Revise applies an instruction to the current image. The image edit
// endpoint wants multipart form data, so this call goes through a raw
// HTTP request rather than the SDK.
func (c *Client) Revise(ctx context.Context, imageURL, instruction string) (string, error) {
	mimeType, imageData, err := ParseDataURI(imageURL)
	if err != nil {
		return "", &InvalidImageError{Reason: err.Error()}
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	if err := writeEditForm(form, mimeType, imageData, instruction, c.imageModel); err != nil {
		return "", upstreamErr(prompts.ReviseFallback, err)
	}

	url := fmt.Sprintf("%s/images/edits", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", upstreamErr(prompts.ReviseFallback, err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("revise request failed", "error", err)
		return "", upstreamErr(prompts.ReviseFallback, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", upstreamErr(prompts.ReviseFallback, err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil && errResp.Error.Message != "" {
			return "", upstreamMsg(errResp.Error.Message)
		}
		return "", upstreamMsg(fmt.Sprintf("image edit failed with HTTP %d", resp.StatusCode))
	}

	var editResp struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &editResp); err != nil {
		return "", upstreamErr(prompts.ReviseFallback, err)
	}
	if len(editResp.Data) == 0 || editResp.Data[0].B64JSON == "" {
		return "", upstreamMsg("no image data found in edited response")
	}
	return formatDataURIB64("image/png", editResp.Data[0].B64JSON), nil
}

func writeEditForm(form *multipart.Writer, mimeType string, imageData []byte, instruction, model string) error {
	part, err := form.CreateFormFile("image", fileNameFor(mimeType))
	if err != nil {
		return err
	}
	if _, err := part.Write(imageData); err != nil {
		return err
	}
	fields := map[string]string{
		"prompt":          instruction,
		"model":           model,
		"n":               "1",
		"size":            "1024x1024",
		"response_format": "b64_json",
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return err
		}
	}
	return form.Close()
}

func fileNameFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "image.jpg"
	case "image/webp":
		return "image.webp"
	default:
		return "image.png"
	}
}
