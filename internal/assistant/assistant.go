// Package assistant answers support chat messages through a text
// generation model. Failures never reach the shopper: they get a canned
// apology in their language instead.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

// ErrNoCredential means no API key was configured.
var ErrNoCredential = errors.New("assistant API key is missing")

// Generator produces a completion for message under a system instruction.
type Generator interface {
	Generate(ctx context.Context, instruction, message string) (string, error)
}

// =============================================================================
// GEMINI
// =============================================================================

// GeminiGenerator calls the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrNoCredential
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, instruction, message string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(message), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return resp.Text(), nil
}

// =============================================================================
// ASSISTANT
// =============================================================================

// Assistant wraps a Generator with the store's persona and fallbacks.
type Assistant struct {
	gen     Generator
	timeout time.Duration
}

// New returns an assistant. A nil gen makes every reply the apology.
func New(gen Generator, timeout time.Duration) *Assistant {
	return &Assistant{gen: gen, timeout: timeout}
}

// FromConfig builds the configured provider. A missing key or unknown
// provider still yields a working assistant that only apologizes.
func FromConfig(ctx context.Context, cfg config.AssistantConfig, timeout time.Duration) *Assistant {
	log := logging.Get(logging.CategoryAssistant)
	switch cfg.Provider {
	case "", "gemini":
		gen, err := NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			log.Warnw("assistant unavailable", "error", err)
			return New(nil, timeout)
		}
		return New(gen, timeout)
	default:
		log.Warnw("unknown assistant provider", "provider", cfg.Provider)
		return New(nil, timeout)
	}
}

// Instruction is the system prompt for the store and language.
func Instruction(s domain.SystemSettings, lang domain.Language) string {
	name := s.StoreName
	if name == "" {
		name = domain.DefaultStoreName
	}
	language := "Bengali"
	if lang == domain.LangEnglish {
		language = "English"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are a helpful customer support agent for %s.", name)
	if s.StoreSlogan != "" {
		fmt.Fprintf(&b, " The store's motto is %q.", s.StoreSlogan)
	}
	fmt.Fprintf(&b, " Respond in %s. Keep responses professional and related to groceries.", language)
	return b.String()
}

// Apology is the reply shown when generation fails.
func Apology(lang domain.Language) string {
	if lang == domain.LangEnglish {
		return "Sorry, I'm having trouble responding right now."
	}
	return "দুঃখিত, এআই অ্যাসিস্ট্যান্ট এখন কাজ করছে না।"
}

// Reply answers text. ok is false when the store has the assistant turned
// off, in which case nothing should be shown.
func (a *Assistant) Reply(ctx context.Context, s domain.SystemSettings, lang domain.Language, text string) (reply string, ok bool) {
	if !s.AIAssistantEnabled {
		return "", false
	}
	log := logging.Get(logging.CategoryAssistant)
	if a.gen == nil {
		log.Debugw("no generator configured")
		return Apology(lang), true
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := a.gen.Generate(ctx, Instruction(s, lang), text)
	if err != nil {
		log.Warnw("generation failed", "error", err, "elapsed", time.Since(start))
		return Apology(lang), true
	}
	if strings.TrimSpace(out) == "" {
		out = "..."
	}
	log.Debugw("reply generated", "elapsed", time.Since(start), "chars", len(out))
	return out, true
}
