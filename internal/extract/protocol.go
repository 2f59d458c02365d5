package extract

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/navapbc/labs-referral-pilot/internal/domain"
)

const DefaultMaxAttempts = 3

var (
	ErrNotImplemented    = errors.New("non-generative extraction is not implemented")
	ErrAttemptsExhausted = errors.New("extraction attempts exhausted")
)

type GenerateRequest struct {
	Prompt string
	// Domain restricts what the generator may search. Empty means unscoped.
	Domain string
	// PriorOutput and ValidationError are set on corrective attempts only.
	PriorOutput     string
	ValidationError string
	Attempt         int
}

type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type GeneratorFunc func(ctx context.Context, req GenerateRequest) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}

// Extractor runs the generate/validate/retry loop. It holds configuration
// only, so one value may serve any number of concurrent calls.
type Extractor struct {
	Gen         Generator
	MaxAttempts int
	// Timeout bounds each generator call. Zero means no per-call bound.
	Timeout time.Duration
	// RetryDelay is waited after a generator error before the next attempt.
	RetryDelay time.Duration
}

// Extract asks the generator for entries until the output validates or the
// attempt budget runs out. Entries are deduplicated by name.
func (x Extractor) Extract(ctx context.Context, instruction, scope string) ([]domain.ExtractedEntry, error) {
	if x.Gen == nil {
		return nil, errors.New("extract: no generator configured")
	}
	max := x.MaxAttempts
	if max <= 0 {
		max = DefaultMaxAttempts
	}

	req := GenerateRequest{Prompt: instruction, Domain: scope}
	var lastErr error

	for attempt := 1; attempt <= max; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req.Attempt = attempt

		raw, err := x.generate(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("generate: %w", err)
			log.Printf("[extract] domain=%q attempt=%d/%d generator error: %v", scope, attempt, max, err)
			if attempt < max {
				if err := sleep(ctx, x.RetryDelay); err != nil {
					return nil, err
				}
			}
			continue
		}

		entries, err := Validate(raw)
		if err == nil {
			log.Printf("[extract] domain=%q attempt=%d/%d ok entries=%d", scope, attempt, max, len(entries))
			return domain.DedupeByName(entries), nil
		}

		lastErr = err
		log.Printf("[extract] domain=%q attempt=%d/%d invalid output: %v", scope, attempt, max, err)
		req = correctiveRequest(instruction, scope, raw, err)
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, max, lastErr)
}

func (x Extractor) generate(ctx context.Context, req GenerateRequest) (string, error) {
	if x.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.Timeout)
		defer cancel()
	}
	return x.Gen.Generate(ctx, req)
}

// correctiveRequest always starts from the base instruction so prompts do
// not grow with every failed attempt.
func correctiveRequest(instruction, scope, raw string, verr error) GenerateRequest {
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\nThe response was:\n```\n")
	b.WriteString(raw)
	b.WriteString("\n```\n\nThis response doesn't comply with the JSON format requirements and caused this error:\n")
	b.WriteString(verr.Error())
	b.WriteString("\n\nTry again and return only the JSON output without any non-JSON text.\n")

	return GenerateRequest{
		Prompt:          b.String(),
		Domain:          scope,
		PriorOutput:     raw,
		ValidationError: verr.Error(),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
