package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/spf13/afero"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/operation"
)

// DefaultPolicyPackage is the Rego package queried for deny and warn rules.
const DefaultPolicyPackage = "voiceboard.policy"

// Engine evaluates loaded Rego policies. All evaluation is local.
type Engine struct {
	policies      []*PolicyFile
	policyPackage string

	deny *rego.PreparedEvalQuery
	warn *rego.PreparedEvalQuery
}

// EngineConfig configures NewEngine.
type EngineConfig struct {
	// PoliciesDir holds the .rego files. A missing directory means no policies.
	PoliciesDir string
	// PolicyPackage defaults to DefaultPolicyPackage.
	PolicyPackage string
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
}

// NewEngine loads and compiles the policies in cfg.PoliciesDir.
func NewEngine(ctx context.Context, cfg EngineConfig) (*Engine, error) {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	var policies []*PolicyFile
	if cfg.PoliciesDir != "" {
		var err error
		policies, err = NewLoader(cfg.Fs, cfg.PoliciesDir).LoadAll()
		if err != nil {
			return nil, fmt.Errorf("load policies: %w", err)
		}
	}
	return NewEngineWithPolicies(ctx, cfg.PolicyPackage, policies)
}

// NewEngineWithPolicies compiles explicitly provided policies.
func NewEngineWithPolicies(ctx context.Context, pkg string, policies []*PolicyFile) (*Engine, error) {
	if pkg == "" {
		pkg = DefaultPolicyPackage
	}
	e := &Engine{policies: policies, policyPackage: pkg}
	if len(policies) == 0 {
		return e, nil
	}

	modules := make([]func(*rego.Rego), len(policies))
	for i, p := range policies {
		modules[i] = rego.Module(p.Path, p.Content)
	}

	var err error
	if e.deny, err = prepare(ctx, "data."+pkg+".deny", modules); err != nil {
		return nil, fmt.Errorf("compile deny rules: %w", err)
	}
	if e.warn, err = prepare(ctx, "data."+pkg+".warn", modules); err != nil {
		return nil, fmt.Errorf("compile warn rules: %w", err)
	}
	return e, nil
}

func prepare(ctx context.Context, query string, modules []func(*rego.Rego)) (*rego.PreparedEvalQuery, error) {
	opts := append([]func(*rego.Rego){rego.Query(query)}, modules...)
	pq, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	return &pq, nil
}

// PolicyCount returns the number of loaded policies.
func (e *Engine) PolicyCount() int {
	return len(e.policies)
}

// PolicyNames returns the names of the loaded policies.
func (e *Engine) PolicyNames() []string {
	names := make([]string, len(e.policies))
	for i, p := range e.policies {
		names[i] = p.Name
	}
	return names
}

// Evaluate runs the deny and warn rules against input. With no policies
// everything is allowed.
func (e *Engine) Evaluate(ctx context.Context, input *Input) (*Decision, error) {
	decision := &Decision{
		DecisionID:  uuid.New().String(),
		PolicyPath:  e.policyPackage,
		Result:      ResultAllow,
		Input:       input,
		EvaluatedAt: time.Now().UTC(),
	}
	if len(e.policies) == 0 {
		return decision, nil
	}

	violations, err := querySet(ctx, e.deny, input)
	if err != nil {
		return nil, fmt.Errorf("query deny rules: %w", err)
	}
	warnings, err := querySet(ctx, e.warn, input)
	if err != nil {
		return nil, fmt.Errorf("query warn rules: %w", err)
	}

	decision.Warnings = warnings
	if len(violations) > 0 {
		decision.Result = ResultDeny
		decision.Violations = violations
	}
	return decision, nil
}

// querySet evaluates a set rule and returns its string members. An undefined
// rule yields no members.
func querySet(ctx context.Context, pq *rego.PreparedEvalQuery, input any) ([]string, error) {
	if pq == nil {
		return nil, nil
	}
	rs, err := pq.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, err
	}
	var results []string
	for _, result := range rs {
		for _, expr := range result.Expressions {
			if set, ok := expr.Value.([]any); ok {
				for _, item := range set {
					if s, ok := item.(string); ok {
						results = append(results, s)
					}
				}
			}
		}
	}
	return results, nil
}

// ValidatePolicy checks that content compiles as Rego.
func ValidatePolicy(content string) error {
	_, err := rego.New(
		rego.Query("data"),
		rego.Module("validation.rego", content),
	).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	return nil
}

// DecisionRecorder persists decisions for the audit trail.
type DecisionRecorder interface {
	SaveDecision(ctx context.Context, d *Decision) error
}

type runIDKey struct{}

// WithRunID tags decisions made under ctx with a pipeline run ID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

func runIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Gate checks each operation against the engine before it is applied.
type Gate struct {
	engine   *Engine
	recorder DecisionRecorder
	logger   *slog.Logger
}

// NewGate creates a gate. recorder may be nil.
func NewGate(engine *Engine, recorder DecisionRecorder, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{engine: engine, recorder: recorder, logger: logger}
}

// Check evaluates op. A deny returns an error wrapping ErrDenied; warn rule
// messages come back as warnings. Evaluation errors block the operation.
func (g *Gate) Check(ctx context.Context, op operation.Operation, snap board.Snapshot) ([]string, error) {
	if g == nil || g.engine == nil || g.engine.PolicyCount() == 0 {
		return nil, nil
	}

	decision, err := g.engine.Evaluate(ctx, NewInput(op, snap))
	if err != nil {
		return nil, fmt.Errorf("evaluate policy: %w", err)
	}
	decision.RunID = runIDFrom(ctx)

	if g.recorder != nil {
		if err := g.recorder.SaveDecision(ctx, decision); err != nil {
			g.logger.Warn("failed to record policy decision", "decision", decision.DecisionID, "error", err)
		}
	}

	warnings := make([]string, 0, len(decision.Warnings))
	for _, w := range decision.Warnings {
		warnings = append(warnings, "policy: "+w)
	}
	if !decision.IsAllowed() {
		g.logger.Info("operation denied by policy", "kind", op.Kind, "task", op.Target(), "violations", decision.Violations)
		return warnings, fmt.Errorf("%w: %s", ErrDenied, strings.Join(decision.Violations, "; "))
	}
	return warnings, nil
}
