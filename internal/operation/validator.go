package operation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/josephgoksu/voiceboard/internal/board"
)

// requiredFields is the exact required set per kind, by struct field name.
var requiredFields = map[Kind][]string{
	KindCreate:     {"Task"},
	KindUpdate:     {"Task"},
	KindDelete:     {"Task"},
	KindRename:     {"OldName", "NewName"},
	KindComment:    {"Task", "Comment"},
	KindReposition: {"Task", "Position"},
}

var kindAliases = map[string]Kind{
	"create": KindCreate, "add": KindCreate, "new": KindCreate,
	"update": KindUpdate, "edit": KindUpdate, "change": KindUpdate, "modify": KindUpdate, "move status": KindUpdate,
	"delete": KindDelete, "remove": KindDelete, "archive": KindDelete,
	"rename": KindRename,
	"comment": KindComment, "note": KindComment,
	"reposition": KindReposition, "move": KindReposition, "reorder": KindReposition,
}

// nullish values mean "no value" wherever a field is optional.
var nullish = map[string]bool{
	"":                true,
	"none":            true,
	"null":            true,
	"nil":             true,
	"unknown":         true,
	"no deadline":     true,
	"n/a":             true,
	"na":              true,
	"tbd":             true,
	"not specified":   true,
	"unspecified":     true,
	"unassigned":      true,
	"nobody":          true,
	"no one":          true,
	"no assignee":     true,
	"no date":         true,
	"not applicable":  true,
	"to be announced": true,
}

// IsNullish reports whether s is a placeholder meaning "no value".
func IsNullish(s string) bool {
	return nullish[strings.ToLower(strings.TrimSpace(s))]
}

// Validator enforces the per-kind required-field contract and normalises fields.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a validator.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, logger: logger}
}

// Validate converts candidates into operations, in order. Invalid candidates are
// dropped with a logged reason and returned as rejections; an operation identical
// to the one kept right before it is collapsed.
func (v *Validator) Validate(candidates []RawCandidate) ([]Operation, []Rejection) {
	ops := make([]Operation, 0, len(candidates))
	var rejections []Rejection
	var last string

	for i, c := range candidates {
		op, err := v.one(c)
		if err != nil {
			v.logger.Warn("dropping operation", "index", i, "kind", kindOf(c), "reason", err.Error())
			rejections = append(rejections, reject(i, c, err))
			continue
		}
		key := dedupeKey(op)
		if key == last {
			v.logger.Info("collapsing duplicate operation", "index", i, "kind", op.Kind, "task", op.Target())
			continue
		}
		last = key
		ops = append(ops, op)
	}
	return ops, rejections
}

func (v *Validator) one(c RawCandidate) (Operation, error) {
	if c == nil {
		return Operation{}, &ValidationError{Reason: "candidate is not an object"}
	}

	kind, err := parseKind(kindOf(c))
	if err != nil {
		return Operation{}, err
	}
	op := Operation{
		Kind:          kind,
		Task:          str(c, "task", "name", "title", "task_name"),
		OldName:       str(c, "old_name", "oldName", "from"),
		NewName:       str(c, "new_name", "newName", "to"),
		Comment:       str(c, "comment", "text", "note"),
		ReferenceTask: str(c, "reference_task", "referenceTask", "reference"),
		Position:      Position(strings.ToLower(str(c, "position"))),
	}

	if kind == KindCreate || kind == KindUpdate {
		if err := v.optionalFields(c, &op); err != nil {
			return Operation{}, err
		}
	}
	if kind == KindRename {
		if op.OldName == "" {
			op.OldName = op.Task
		}
		op.Task = ""
	} else {
		op.OldName, op.NewName = "", ""
	}
	if kind != KindComment {
		op.Comment = ""
	}
	if kind != KindReposition {
		op.Position = ""
	}
	if !op.Position.NeedsReference() {
		op.ReferenceTask = ""
	}

	fields := requiredFields[kind]
	if kind == KindReposition && op.Position.NeedsReference() {
		fields = append(fields[:len(fields):len(fields)], "ReferenceTask")
	}
	if err := v.validate.StructPartial(&op, fields...); err != nil {
		return Operation{}, v.toValidationError(kind, err)
	}
	return op, nil
}

func (v *Validator) optionalFields(c RawCandidate, op *Operation) error {
	if s := str(c, "status"); !IsNullish(s) {
		status, err := board.ParseStatus(s)
		if err != nil {
			return &ValidationError{Kind: op.Kind, Reason: err.Error()}
		}
		op.Status = &status
	} else if op.Kind == KindCreate {
		status := board.StatusNotStarted
		op.Status = &status
		op.StatusDefaulted = true
	}

	if s := str(c, "deadline", "due", "due_date"); !IsNullish(s) {
		d, err := board.ParseDate(s)
		if err != nil {
			msg := fmt.Sprintf("ignored deadline %q: not a YYYY-MM-DD date", s)
			v.logger.Warn("dropping deadline", "kind", op.Kind, "task", op.Task, "value", s)
			op.Warnings = append(op.Warnings, msg)
		} else {
			op.Deadline = &d
		}
	}

	if s := str(c, "assignee", "assigned_to", "owner"); !IsNullish(s) {
		op.Assignee = s
	}
	return nil
}

func (v *Validator) toValidationError(kind Kind, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Kind: kind, Reason: err.Error()}
	}
	out := &ValidationError{Kind: kind}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			out.Missing = append(out.Missing, fe.Field())
		case "oneof":
			out.Reason = fmt.Sprintf("%s must be one of %s, got %q", fe.Field(), fe.Param(), fe.Value())
		default:
			out.Reason = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		}
	}
	if len(out.Missing) > 0 {
		out.Reason = ""
	}
	return out
}

func parseKind(raw string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", " ", "-", " ").Replace(key)
	if key == "" {
		return KindCreate, nil
	}
	if k, ok := kindAliases[key]; ok {
		return k, nil
	}
	return "", &ValidationError{Kind: Kind(raw), Reason: "unknown operation kind"}
}

func kindOf(c RawCandidate) string {
	return str(c, "kind", "type", "action", "operation", "op")
}

// str returns the first present key's value as trimmed text.
func str(c RawCandidate, keys ...string) string {
	for _, k := range keys {
		v, ok := c[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			return strings.TrimSpace(t)
		case float64, bool, json.Number:
			return fmt.Sprint(t)
		}
	}
	return ""
}

func dedupeKey(op Operation) string {
	key := op
	key.Warnings = nil
	b, _ := json.Marshal(struct {
		Operation
		Task    string `json:"task"`
		OldName string `json:"old_name"`
		NewName string `json:"new_name"`
	}{key, board.NameKey(op.Task), board.NameKey(op.OldName), board.NameKey(op.NewName)})
	return string(b)
}
