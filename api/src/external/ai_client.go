package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/model"
	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
)

const (
	DefaultAIModel         = "gpt-4o-mini"
	DefaultModerationModel = "omni-moderation-latest"
)

var categoryPrompts = map[model.Category]string{
	model.CategoryInfraestructura: "problemas de infraestructura (baches, calles rotas, etc)",
	model.CategoryInseguridad:     "problemas de inseguridad (drogas, vandalismo, etc)",
	model.CategoryBasura:          "problemas de basura y limpieza",
	model.CategoryCorrupcion:      "problemas de corrupción (sobornos, malversación, etc)",
	model.CategoryOtro:            "otros problemas de la comunidad",
}

type Analysis struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Severity    int      `json:"severity"`
}

// AIClient talks to an OpenAI-compatible API for image description and moderation.
type AIClient struct {
	baseUrl string
	apiKey  string
	model   string
	http    *http.Client
}

func NewAIClient(baseUrl, apiKey, aiModel string, timeout time.Duration) *AIClient {
	if aiModel == "" {
		aiModel = DefaultAIModel
	}
	return &AIClient{
		baseUrl: strings.TrimRight(baseUrl, "/"),
		apiKey:  apiKey,
		model:   aiModel,
		http:    &http.Client{Timeout: timeout},
	}
}

type chatContent struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageUrl *chatImageUrl `json:"image_url,omitempty"`
}

type chatImageUrl struct {
	Url string `json:"url"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	MaxTokens      int               `json:"max_tokens"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *AIClient) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

// vision sends one prompt plus image and decodes the JSON object the model answers with.
func (c *AIClient) vision(ctx context.Context, prompt, imageUrl string, out any) error {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContent{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageUrl: &chatImageUrl{Url: imageUrl}},
			},
		}},
		MaxTokens:      300,
		Temperature:    0.3,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	resp, err := requestJSON[chatResponse](ctx, c.http, http.MethodPost, c.baseUrl+"/chat/completions", c.headers(), req)
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return errors.New("empty completion")
	}
	return json.Unmarshal([]byte(stripFence(resp.Choices[0].Message.Content)), out)
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func (c *AIClient) Describe(ctx context.Context, imageUrl string, category model.Category) (*Analysis, error) {
	prompt := fmt.Sprintf(`Analiza esta imagen de un reporte ciudadano sobre %s.

Genera:
1. Una descripción objetiva y concisa (máximo 2 oraciones)
2. Tags relevantes (3-5 palabras clave en español)
3. Nivel de severidad del 1 al 10 (1=menor, 10=crítico)

Responde en formato JSON:
{"description": "...", "tags": ["tag1", "tag2"], "severity": número}`, categoryPrompts[category])

	var a Analysis
	if err := c.vision(ctx, prompt, imageUrl, &a); err != nil {
		return nil, apperror.ExternalService("ai", err)
	}
	if strings.TrimSpace(a.Description) == "" {
		return nil, apperror.ExternalService("ai", errors.New("analysis without description"))
	}
	a.Severity = clampSeverity(a.Severity)
	return &a, nil
}

func clampSeverity(s int) int {
	switch {
	case s < 1:
		return 5
	case s > 10:
		return 10
	default:
		return s
	}
}

type moderationRequest struct {
	Model string        `json:"model"`
	Input []chatContent `json:"input"`
}

type moderationResponse struct {
	Results []struct {
		Flagged bool `json:"flagged"`
	} `json:"results"`
}

// Moderate reports whether the image is appropriate.
func (c *AIClient) Moderate(ctx context.Context, imageUrl string) (bool, error) {
	req := moderationRequest{
		Model: DefaultModerationModel,
		Input: []chatContent{{Type: "image_url", ImageUrl: &chatImageUrl{Url: imageUrl}}},
	}
	resp, err := requestJSON[moderationResponse](ctx, c.http, http.MethodPost, c.baseUrl+"/moderations", c.headers(), req)
	if err != nil {
		return false, apperror.ExternalService("ai", err)
	}
	if len(resp.Results) == 0 {
		return false, apperror.ExternalService("ai", errors.New("empty moderation result"))
	}
	return !resp.Results[0].Flagged, nil
}
