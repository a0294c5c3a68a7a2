package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/KaramelBytes/csvinsights/internal/ai"
	"github.com/KaramelBytes/csvinsights/internal/ctxutil"
	"github.com/KaramelBytes/csvinsights/internal/logger"
	"github.com/KaramelBytes/csvinsights/internal/utils"
)

// replyReserveTokens is left free in the context window for the answer.
const replyReserveTokens = 2048

// GenerationError wraps any failure of the external generation call.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s API error: %v", providerLabel(e.Provider), e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Config selects and configures the runtime a Requester talks to.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	OllamaHost  string
	HTTPTimeout time.Duration
}

// Requester turns profile payloads into Insights through one LLM runtime.
// It holds no per-request state and is safe for concurrent use.
type Requester struct {
	rt       ai.Runtime
	initErr  error
	provider string
	model    string
	log      *logger.Logger
}

// New builds the runtime for cfg. A runtime that cannot be built (for
// example a missing API key) does not fail construction; the error is
// reported by Generate and Check instead.
func New(cfg Config, log *logger.Logger) *Requester {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ai.ProviderGemini
	}
	rt, err := ai.GetRuntime(provider, ai.RuntimeConfig{
		Model:       cfg.Model,
		HTTPTimeout: cfg.HTTPTimeout,
		APIKey:      cfg.APIKey,
		Host:        cfg.OllamaHost,
	})
	r := NewWithRuntime(rt, provider, cfg.Model, log)
	r.initErr = err
	if err != nil && log != nil {
		log.Warn("llm runtime unavailable", "provider", provider, "error", err)
	}
	return r
}

// NewWithRuntime wraps an existing runtime.
func NewWithRuntime(rt ai.Runtime, provider, model string, log *logger.Logger) *Requester {
	if log == nil {
		log = logger.Nop()
	}
	return &Requester{
		rt:       rt,
		provider: provider,
		model:    model,
		log:      log.With("component", "insights"),
	}
}

// Generate builds the prompt, calls the runtime once and parses the reply.
// Only runtime failures are errors; unparseable replies degrade to a single
// trend (see ParseReply).
func (r *Requester) Generate(ctx context.Context, req Request) (Insights, error) {
	req.Normalize()
	if r.initErr != nil {
		return Insights{}, &GenerationError{Provider: r.provider, Err: r.initErr}
	}
	if r.rt == nil {
		return Insights{}, &GenerationError{Provider: r.provider, Err: errors.New("no runtime configured")}
	}

	prompt := BuildPrompt(req)
	promptTokens := utils.CountTokens(prompt)

	ctx, span := otel.Tracer("csvinsights/insights").Start(ctx, "insights.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", r.provider),
		attribute.String("llm.model", r.model),
		attribute.Int("llm.prompt_tokens_estimate", promptTokens),
		attribute.Int("csv.rows", req.Rows),
		attribute.Int("csv.columns", req.Columns),
	)

	fields := append([]interface{}{"provider", r.provider, "model", r.model, "prompt_tokens", promptTokens}, ctxutil.LogFields(ctx)...)
	if mi, ok := ai.LookupModel(r.model); ok && utils.ExceedsContext(prompt, mi.ContextTokens, replyReserveTokens) {
		r.log.Warn("prompt may exceed model context window", append(fields, "context_tokens", mi.ContextTokens)...)
	}

	start := time.Now()
	resp, err := r.rt.Generate(ctx, ai.GenerateRequest{
		Model:    r.model,
		Messages: []ai.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		r.log.Error("insight generation failed", append(fields, "error", err, "duration_ms", time.Since(start).Milliseconds())...)
		return Insights{}, &GenerationError{Provider: r.provider, Err: err}
	}

	text := resp.Text()
	out := ParseReply(text)
	r.log.Info("insights generated", append(fields,
		"duration_ms", time.Since(start).Milliseconds(),
		"completion_tokens", resp.Usage.CompletionTokens,
		"request_id", resp.RequestID,
	)...)
	r.log.Debug("llm reply", "reply", utils.TruncateToTokenLimit(text, 64))
	return out, nil
}

// Check reports "healthy" or "unhealthy: <reason>". It never fails.
func (r *Requester) Check(ctx context.Context) (status string) {
	defer func() {
		if p := recover(); p != nil {
			status = fmt.Sprintf("unhealthy: %v", p)
		}
	}()
	if r.initErr != nil {
		if errors.Is(r.initErr, ai.ErrNotConfigured) {
			return "unhealthy: API key not configured"
		}
		return "unhealthy: " + r.initErr.Error()
	}
	if r.rt == nil {
		return "unhealthy: no runtime configured"
	}
	var err error
	if p, ok := r.rt.(ai.Pinger); ok {
		err = p.Ping(ctx)
	} else {
		_, err = r.rt.Generate(ctx, ai.GenerateRequest{
			Model:    r.model,
			Messages: []ai.Message{{Role: "user", Content: "test"}},
		})
	}
	if err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}

// Provider returns the configured provider name.
func (r *Requester) Provider() string { return r.provider }

func providerLabel(p string) string {
	switch p {
	case ai.ProviderGemini, "":
		return "Gemini"
	case ai.ProviderOllama:
		return "Ollama"
	default:
		return p
	}
}
