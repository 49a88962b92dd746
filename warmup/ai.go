package warmup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// chatProvider talks to an OpenAI-compatible chat completions endpoint
// (OpenAI, Groq, and most gateway proxies speak this shape).
type chatProvider struct {
	name        string
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxLength   int
	client      *http.Client
}

var providerEndpoints = map[string]struct{ baseURL, model string }{
	"openai": {"https://api.openai.com/v1", "gpt-4o-mini"},
	"groq":   {"https://api.groq.com/openai/v1", "llama-3.1-8b-instant"},
}

// NewContentProvider builds the configured AI content provider, or nil when
// no provider is configured. The caller treats nil as "templates only".
func NewContentProvider(cfg Config) ContentProvider {
	if cfg.AIProvider == "" || cfg.AIAPIKey == "" {
		return nil
	}
	baseURL := cfg.AIBaseURL
	model := cfg.AIModel
	if preset, ok := providerEndpoints[cfg.AIProvider]; ok {
		if baseURL == "" {
			baseURL = preset.baseURL
		}
		if model == "" {
			model = preset.model
		}
	}
	if baseURL == "" {
		return nil
	}
	return &chatProvider{
		name:        cfg.AIProvider,
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      cfg.AIAPIKey,
		model:       model,
		temperature: cfg.AITemperature,
		maxLength:   cfg.ContentMaxLength,
		client:      &http.Client{Timeout: 20 * time.Second},
	}
}

func (p *chatProvider) Name() string { return p.name }

func (p *chatProvider) GenerateEmail(senderName, receiverName, category string) (*Content, error) {
	system := fmt.Sprintf("You are writing a casual internal business email. Keep it under %d words. Category: %s", p.maxLength, category)
	user := fmt.Sprintf("Write a casual email from %s to %s. Return SUBJECT: on the first line, then a blank line, then the body.", senderName, receiverName)

	raw, err := p.complete(system, user, p.maxLength*2)
	if err != nil {
		return nil, err
	}

	parts := strings.SplitN(strings.TrimSpace(raw), "\n", 2)
	subject := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(parts[0], "SUBJECT:"), "Subject:"))
	body := ""
	if len(parts) > 1 {
		body = strings.TrimSpace(parts[1])
	}
	if subject == "" || body == "" {
		return nil, fmt.Errorf("unusable completion for category %s", category)
	}
	return &Content{Subject: subject, BodyText: body, BodyHTML: textToHTML(body)}, nil
}

func (p *chatProvider) GenerateReply(originalSubject, originalBody, senderName string) (*Content, error) {
	if len(originalBody) > 300 {
		originalBody = originalBody[:300]
	}
	system := "You are writing a brief, casual reply to an internal business email. Keep it under 60 words. Be natural and conversational."
	user := fmt.Sprintf("Write a short reply from %s to this email:\n\nSubject: %s\n%s\n\nJust the reply body, no subject line.", senderName, originalSubject, originalBody)

	body, err := p.complete(system, user, 150)
	if err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("empty reply completion")
	}

	subject := originalSubject
	if !strings.HasPrefix(subject, "Re:") {
		subject = "Re: " + subject
	}
	return &Content{Subject: subject, BodyText: body, BodyHTML: textToHTML(body)}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *chatProvider) complete(system, user string, maxTokens int) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: p.temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s completion returned status %d", p.name, resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s completion returned no choices", p.name)
	}
	return out.Choices[0].Message.Content, nil
}
