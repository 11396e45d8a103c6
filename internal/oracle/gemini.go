// Package oracle asks a Gemini model which fruit matches a profile.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/m3rciful/fruitbot/core/logger"
	"github.com/m3rciful/fruitbot/internal/intake"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// ErrEmptyResponse is returned when the model produced no usable text.
var ErrEmptyResponse = errors.New("oracle: empty response")

// Config holds Gemini credentials and tuning.
type Config struct {
	APIKey string `yaml:"api_key" envconfig:"GEMINI_API_KEY"`
	Model  string `yaml:"model" envconfig:"GEMINI_MODEL"`
	// Temperature <= 0 keeps the model default.
	Temperature float32       `yaml:"temperature" envconfig:"GEMINI_TEMPERATURE"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"GEMINI_TIMEOUT"`
}

// Normalize applies defaults and checks that an API key is present.
func (c *Config) Normalize() error {
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.APIKey == "" {
		return errors.New("oracle: GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		c.Model = DefaultModel
	}
	if c.Timeout < 0 {
		c.Timeout = 0
	}
	return nil
}

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini implements intake.Oracle. Each Suggest is a single model call.
type Gemini struct {
	client  *genai.Client
	model   generator
	name    string
	timeout time.Duration
}

// New creates the Gemini client for cfg.
func New(ctx context.Context, cfg Config) (*Gemini, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("oracle: create client: %w", err)
	}
	model := client.GenerativeModel(cfg.Model)
	if cfg.Temperature > 0 {
		model.SetTemperature(cfg.Temperature)
	}
	g := newGemini(model, cfg)
	g.client = client
	return g, nil
}

func newGemini(model generator, cfg Config) *Gemini {
	return &Gemini{model: model, name: cfg.Model, timeout: cfg.Timeout}
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Suggest returns the model's fruit and reasoning for s, trimmed.
func (g *Gemini) Suggest(ctx context.Context, s intake.Suggestion) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	prompt := BuildPrompt(s)
	start := time.Now()
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	took := time.Since(start)
	if err != nil {
		logger.Warn(ctx, "oracle", "oracle.suggest",
			slog.String("status", "fail"),
			slog.String("model", g.name),
			slog.Duration("duration", took),
			slog.Any("err", err),
		)
		return "", fmt.Errorf("oracle: generate content: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		logger.Warn(ctx, "oracle", "oracle.suggest",
			slog.String("status", "fail"),
			slog.String("model", g.name),
			slog.Duration("duration", took),
			slog.String("reason", "empty"),
		)
		return "", ErrEmptyResponse
	}
	logger.Info(ctx, "oracle", "oracle.suggest",
		slog.String("status", "ok"),
		slog.String("model", g.name),
		slog.Int("prompt_chars", len([]rune(prompt))),
		slog.Int("reply_chars", len([]rune(text))),
		slog.Duration("duration", took),
	)
	return text, nil
}

// BuildPrompt renders the question sent to the model. Answers are embedded as given.
func BuildPrompt(s intake.Suggestion) string {
	var b strings.Builder
	b.WriteString("A person:\n")
	fmt.Fprintf(&b, "- Name: %s\n", s.Name)
	fmt.Fprintf(&b, "- Age: %d\n", s.Age)
	fmt.Fprintf(&b, "- Favorite color: %s\n", s.FavoriteColor)
	fmt.Fprintf(&b, "- Personality: %s\n\n", s.Personality)
	b.WriteString("Which fruit suits this person best? Answer with the name of the fruit, " +
		"followed by a short description of why it matches this person.")
	return b.String()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var parts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		txt, ok := part.(genai.Text)
		if !ok || strings.TrimSpace(string(txt)) == "" {
			continue
		}
		parts = append(parts, string(txt))
	}
	return strings.TrimSpace(strings.Join(parts, ""))
}
