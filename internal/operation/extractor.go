package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/llm"
	"github.com/josephgoksu/voiceboard/internal/logger"
	"github.com/josephgoksu/voiceboard/internal/utils"
)

// Tier records which recovery step produced the candidate list.
type Tier int

const (
	TierNone      Tier = iota // nothing recovered
	TierStrict                // whole response parsed as a JSON array
	TierBracketed             // greedy [...] substring parsed
	TierReformat              // second engine call reformatted the response
)

func (t Tier) String() string {
	switch t {
	case TierStrict:
		return "strict"
	case TierBracketed:
		return "bracketed"
	case TierReformat:
		return "reformat"
	default:
		return "none"
	}
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseTier is the inverse of Tier.String.
func ParseTier(s string) Tier {
	switch s {
	case "strict":
		return TierStrict
	case "bracketed":
		return TierBracketed
	case "reformat":
		return TierReformat
	default:
		return TierNone
	}
}

// Extraction is the outcome of one extract call.
type Extraction struct {
	Candidates []RawCandidate
	Tier       Tier
	Warnings   []string
	Raw        string
}

// Extractor asks the interpretation engine for operations and recovers a
// candidate list from whatever it returns.
type Extractor struct {
	engine            llm.Engine
	systemInstruction string
	logger            *slog.Logger
}

// ExtractorOption customises an Extractor.
type ExtractorOption func(*Extractor)

// WithSystemInstruction replaces the default system instruction.
func WithSystemInstruction(s string) ExtractorOption {
	return func(e *Extractor) {
		if strings.TrimSpace(s) != "" {
			e.systemInstruction = s
		}
	}
}

// NewExtractor creates an extractor over engine.
func NewExtractor(engine llm.Engine, logger *slog.Logger, opts ...ExtractorOption) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{engine: engine, systemInstruction: SystemInstruction, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract builds the prompt, calls the engine and runs the three recovery tiers.
// An engine failure on the primary call is returned; everything after that is
// non-fatal and ends, at worst, in an empty extraction with a warning.
func (e *Extractor) Extract(ctx context.Context, transcript string, snap board.Snapshot, dir board.Directory, today time.Time) (Extraction, error) {
	if strings.TrimSpace(transcript) == "" {
		return Extraction{Warnings: []string{"transcript is empty; nothing to extract"}}, nil
	}

	prompt := BuildPrompt(PromptInput{Transcript: transcript, Snapshot: snap, Directory: dir, Today: today})
	logger.SetLastPrompt(prompt)

	raw, err := e.engine.Complete(ctx, prompt, e.systemInstruction)
	if err != nil {
		if !errors.Is(err, llm.ErrEngine) {
			err = fmt.Errorf("%w: %w", llm.ErrEngine, err)
		}
		return Extraction{}, err
	}
	out := Extraction{Raw: raw}

	if candidates, err := utils.ParseStrict[[]RawCandidate](raw); err == nil {
		out.Candidates, out.Tier = candidates, TierStrict
		return out, nil
	}
	e.logger.Debug("strict parse failed, trying bracketed substring", "tier", TierBracketed.String(), "response", utils.Truncate(raw, 200))

	if candidates, err := utils.ParseBracketed[[]RawCandidate](raw); err == nil {
		out.Candidates, out.Tier = candidates, TierBracketed
		return out, nil
	}
	e.logger.Debug("bracketed parse failed, asking engine to reformat", "tier", TierReformat.String())

	reformatted, err := e.engine.Complete(ctx, BuildReformatPrompt(raw), ReformatInstruction)
	if err != nil {
		return e.giveUp(out, fmt.Sprintf("reformat call failed: %v", err)), nil
	}
	if candidates, err := utils.ParseStrict[[]RawCandidate](reformatted); err == nil {
		out.Candidates, out.Tier = candidates, TierReformat
		return out, nil
	}
	if candidates, err := utils.ParseBracketed[[]RawCandidate](reformatted); err == nil {
		out.Candidates, out.Tier = candidates, TierReformat
		return out, nil
	}
	return e.giveUp(out, "reformatted response did not parse either"), nil
}

func (e *Extractor) giveUp(out Extraction, detail string) Extraction {
	msg := fmt.Sprintf("%v: no operations recovered after 3 attempts (%s)", ErrMalformedResponse, detail)
	e.logger.Warn("operation extraction failed", "tier", TierNone.String(), "reason", detail)
	out.Candidates = nil
	out.Tier = TierNone
	out.Warnings = append(out.Warnings, msg)
	return out
}
