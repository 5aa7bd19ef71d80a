package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jeastham1993/zettel-system/internal/ollama"
	"github.com/jeastham1993/zettel-system/internal/outbox"
	"github.com/jeastham1993/zettel-system/internal/proxy"
	"github.com/jeastham1993/zettel-system/internal/storage"
)

// ChatClient drafts text from a system and user prompt. Implemented by the
// Ollama and OpenRouter adapters below.
type ChatClient interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// GenerationStore is the subset of storage the generation executor needs.
type GenerationStore interface {
	GetGeneration(ctx context.Context, id string) (storage.Generation, error)
	SetGenerationResult(ctx context.Context, id, result string) error
	GetVoice(ctx context.Context, id string) (storage.Voice, error)
}

// Executor drafts content for a scheduled generation run. It implements
// outbox.Executor; status transitions are handled by the worker.
type Executor struct {
	store    GenerationStore
	composer *Composer
	chat     ChatClient
	logger   *slog.Logger
}

// NewExecutor creates a generation executor.
func NewExecutor(store GenerationStore, composer *Composer, chat ChatClient, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: store, composer: composer, chat: chat, logger: logger}
}

var _ outbox.Executor = (*Executor)(nil)

// Execute composes the prompt for a generation run, drafts the content, and
// records the result. A run whose kind is unknown fails permanently.
func (e *Executor) Execute(ctx context.Context, id string) error {
	gen, err := e.store.GetGeneration(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// Run deleted between enqueue and execution; nothing to do.
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading generation %s: %w", id, err)
	}

	if gen.Kind != "blog" && gen.Kind != "social" {
		return outbox.Permanent(fmt.Errorf("unknown generation kind %q", gen.Kind))
	}

	var voice storage.Voice
	if gen.VoiceID != "" {
		voice, err = e.store.GetVoice(ctx, gen.VoiceID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("loading voice %s: %w", gen.VoiceID, err)
		}
	}

	prompt, err := e.composer.Compose(ctx, gen, voice)
	if err != nil {
		return err
	}

	result, err := e.chat.Chat(ctx, prompt.System, prompt.User)
	if err != nil {
		return fmt.Errorf("drafting generation %s: %w", id, err)
	}
	result = strings.TrimSpace(result)
	if result == "" {
		return fmt.Errorf("model returned empty draft for generation %s", id)
	}

	if err := e.store.SetGenerationResult(ctx, id, result); err != nil {
		return fmt.Errorf("storing result for generation %s: %w", id, err)
	}

	e.logger.Debug("generation drafted", "generation_id", id, "kind", gen.Kind, "chars", len(result))
	return nil
}

// OllamaChat adapts the local Ollama client to the ChatClient interface.
type OllamaChat struct {
	Client    *ollama.Client
	Model     string
	MaxTokens int
}

func (c *OllamaChat) Chat(ctx context.Context, system, user string) (string, error) {
	return c.Client.Chat(ctx, c.Model, []ollama.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, c.MaxTokens)
}

// ProxyChat adapts the OpenRouter client to the ChatClient interface.
type ProxyChat struct {
	Client    *proxy.Client
	Model     string
	MaxTokens int
}

func (c *ProxyChat) Chat(ctx context.Context, system, user string) (string, error) {
	return c.Client.Chat(ctx, c.Model, []proxy.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, c.MaxTokens)
}
