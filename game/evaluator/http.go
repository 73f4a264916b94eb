package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Asuura666/game-habits/game/gameerr"
	"github.com/Asuura666/game-habits/game/reward"
)

const systemPrompt = `You rate how hard a to-do task is for a habit tracking game.
Answer with a single JSON object and nothing else:
{"difficulty": "trivial|easy|medium|hard|epic|legendary", "reasoning": "<one sentence>", "subtasks": ["<step>", ...]}`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

type answer struct {
	Difficulty string   `json:"difficulty"`
	Reasoning  string   `json:"reasoning"`
	Subtasks   []string `json:"subtasks"`
}

// HTTPProvider talks to an Ollama-compatible /api/chat endpoint.
type HTTPProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewHTTPProvider builds a provider. A nil client uses http.DefaultClient;
// per-attempt deadlines come from the caller's context.
func NewHTTPProvider(baseURL, model string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: client,
	}
}

func (p *HTTPProvider) Evaluate(ctx context.Context, tp TaskPrompt) (Evaluation, error) {
	body, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(tp)},
		},
		Format: "json",
	})
	if err != nil {
		return Evaluation{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Evaluation{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Evaluation{}, fmt.Errorf("chat request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Evaluation{}, fmt.Errorf("chat failed with status %d: %s", resp.StatusCode, string(b))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return Evaluation{}, fmt.Errorf("decode response: %w", err)
	}
	return parseAnswer(cr.Message.Content)
}

func userPrompt(tp TaskPrompt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", tp.Title)
	if tp.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", tp.Description)
	}
	if tp.DueAt != nil {
		fmt.Fprintf(&b, "Due: %s\n", tp.DueAt.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// parseAnswer accepts the model output, tolerating prose or code fences
// around the JSON object.
func parseAnswer(content string) (Evaluation, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return Evaluation{}, fmt.Errorf("%w: no JSON object in model answer", gameerr.ErrValidation)
	}
	var a answer
	if err := json.Unmarshal([]byte(content[start:end+1]), &a); err != nil {
		return Evaluation{}, fmt.Errorf("%w: malformed model answer: %v", gameerr.ErrValidation, err)
	}
	tier, err := reward.ParseTier(a.Difficulty)
	if err != nil {
		return Evaluation{}, err
	}
	subtasks := make([]string, 0, len(a.Subtasks))
	for _, s := range a.Subtasks {
		if s = strings.TrimSpace(s); s != "" {
			subtasks = append(subtasks, s)
		}
	}
	return Evaluation{Tier: tier, Reasoning: strings.TrimSpace(a.Reasoning), Subtasks: subtasks}, nil
}
