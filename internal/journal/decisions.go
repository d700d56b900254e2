package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josephgoksu/voiceboard/internal/policy"
)

// SaveDecision persists a policy decision. It implements policy.DecisionRecorder.
func (j *Journal) SaveDecision(ctx context.Context, d *policy.Decision) error {
	if d == nil {
		return fmt.Errorf("decision is nil")
	}
	if d.DecisionID == "" {
		d.DecisionID = uuid.New().String()
	}
	if d.EvaluatedAt.IsZero() {
		d.EvaluatedAt = time.Now().UTC()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO policy_decisions (
			decision_id, run_id, policy_path, result, violations, warnings, input_json, evaluated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.DecisionID,
		nullString(d.RunID),
		d.PolicyPath,
		d.Result,
		d.ViolationsJSON(),
		d.WarningsJSON(),
		d.InputJSON(),
		d.EvaluatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert policy decision: %w", err)
	}
	return nil
}

// ListDecisionsOptions filters ListDecisions.
type ListDecisionsOptions struct {
	RunID  string
	Result string // "allow" or "deny"
	Limit  int    // 0 = no limit
}

// ListDecisions returns policy decisions, newest first.
func (j *Journal) ListDecisions(ctx context.Context, opts ListDecisionsOptions) ([]*policy.Decision, error) {
	query := `
		SELECT decision_id, run_id, policy_path, result, violations, warnings, input_json, evaluated_at
		FROM policy_decisions
		WHERE 1=1`
	args := []any{}

	if opts.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, opts.RunID)
	}
	if opts.Result != "" {
		query += " AND result = ?"
		args = append(args, opts.Result)
	}
	query += " ORDER BY evaluated_at DESC, id DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query policy decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []*policy.Decision
	for rows.Next() {
		var d policy.Decision
		var runID sql.NullString
		var violations, warnings, input, evaluatedAt string
		if err := rows.Scan(&d.DecisionID, &runID, &d.PolicyPath, &d.Result,
			&violations, &warnings, &input, &evaluatedAt); err != nil {
			return nil, fmt.Errorf("scan policy decision: %w", err)
		}
		d.RunID = runID.String
		d.Violations = policy.ParseList(violations)
		d.Warnings = policy.ParseList(warnings)
		if input != "" && input != "{}" {
			d.Input = &policy.Input{}
			if err := json.Unmarshal([]byte(input), d.Input); err != nil {
				return nil, fmt.Errorf("decode policy input: %w", err)
			}
		}
		if d.EvaluatedAt, err = time.Parse(timeLayout, evaluatedAt); err != nil {
			return nil, fmt.Errorf("parse evaluated_at: %w", err)
		}
		decisions = append(decisions, &d)
	}
	return decisions, rows.Err()
}
