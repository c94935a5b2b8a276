package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/deptops/batchops/internal/domain"
)

// Transform applies the operator-selected process_mode to a validated Form
// at the transform stage. It returns the transformed Form and a log
// message to attach to the stage's StepRecord (custom mode's notes; empty
// for the other modes).
func Transform(form *Form, mode domain.ProcessMode, config map[string]any) (*Form, string, error) {
	switch mode {
	case domain.ProcessTransform:
		return transformCoerce(form), "", nil
	case domain.ProcessAppend:
		out, err := transformAppend(form, config)
		return out, "", err
	case domain.ProcessDelete:
		out, err := transformDelete(form, config)
		return out, "", err
	case domain.ProcessCustom:
		notes, _ := config["notes"].(string)
		return form.Clone(), notes, nil
	default:
		return nil, "", newStageError(domain.StageTransform, ErrPlanPayload, fmt.Sprintf("unknown process mode %q", mode))
	}
}

// transformCoerce trims strings and reformats numeric-looking cells to a
// canonical representation (no leading zeros, no trailing ".0").
func transformCoerce(form *Form) *Form {
	out := form.Clone()
	for _, row := range out.Rows {
		for col, val := range row {
			trimmed := strings.TrimSpace(val)
			if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
				row[col] = strconv.FormatFloat(f, 'f', -1, 64)
			} else {
				row[col] = trimmed
			}
		}
	}
	return out
}

// transformAppend appends process_config.records (array of objects) as
// new rows, unioning columns; fields missing from a record become an
// empty cell in that row.
func transformAppend(form *Form, config map[string]any) (*Form, error) {
	raw, ok := config["records"]
	if !ok {
		return nil, newStageError(domain.StageTransform, ErrPlanPayload, "process_config.records missing")
	}
	records, ok := raw.([]any)
	if !ok {
		return nil, newStageError(domain.StageTransform, ErrPlanPayload, "process_config.records is not an array")
	}

	out := form.Clone()
	colSet := make(map[string]bool, len(out.Columns))
	for _, c := range out.Columns {
		colSet[c] = true
	}

	for _, rawRec := range records {
		rec, ok := rawRec.(map[string]any)
		if !ok {
			return nil, newStageError(domain.StageTransform, ErrPlanPayload, "record is not an object")
		}
		row := make(map[string]string, len(out.Columns))
		for _, col := range out.Columns {
			row[col] = ""
		}
		for k, v := range rec {
			col := normalizeColumn(k)
			if !colSet[col] {
				out.Columns = append(out.Columns, col)
				colSet[col] = true
				for _, existing := range out.Rows {
					if _, present := existing[col]; !present {
						existing[col] = ""
					}
				}
			}
			row[col] = fmt.Sprintf("%v", v)
		}
		out.Rows = append(out.Rows, row)
	}

	return out, nil
}

// deleteRule is one {column, value} equality match.
type deleteRule struct {
	Column string
	Value  string
}

// transformDelete removes rows where ALL rules match by exact string
// equality after trim. Accepts either a single {column, value} payload or
// {rules: [{column, value}, ...]}.
func transformDelete(form *Form, config map[string]any) (*Form, error) {
	rules, err := parseDeleteRules(config)
	if err != nil {
		return nil, err
	}

	colSet := make(map[string]bool, len(form.Columns))
	for _, c := range form.Columns {
		colSet[c] = true
	}
	for _, rule := range rules {
		if !colSet[rule.Column] {
			return nil, newStageError(domain.StageTransform, ErrPlanPayload, fmt.Sprintf("unknown column %q", rule.Column))
		}
	}

	out := form.Clone()
	out.Rows = out.Rows[:0]
	for _, row := range form.Rows {
		if !allRulesMatch(row, rules) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func allRulesMatch(row map[string]string, rules []deleteRule) bool {
	for _, rule := range rules {
		if strings.TrimSpace(row[rule.Column]) != strings.TrimSpace(rule.Value) {
			return false
		}
	}
	return len(rules) > 0
}

func parseDeleteRules(config map[string]any) ([]deleteRule, error) {
	if rawRules, ok := config["rules"]; ok {
		list, ok := rawRules.([]any)
		if !ok {
			return nil, newStageError(domain.StageTransform, ErrPlanPayload, "process_config.rules is not an array")
		}
		rules := make([]deleteRule, 0, len(list))
		for _, rawRule := range list {
			m, ok := rawRule.(map[string]any)
			if !ok {
				return nil, newStageError(domain.StageTransform, ErrPlanPayload, "rule is not an object")
			}
			rule, err := parseSingleRule(m)
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)
		}
		return rules, nil
	}

	rule, err := parseSingleRule(config)
	if err != nil {
		return nil, err
	}
	return []deleteRule{rule}, nil
}

func parseSingleRule(m map[string]any) (deleteRule, error) {
	column, _ := m["column"].(string)
	if column == "" {
		return deleteRule{}, newStageError(domain.StageTransform, ErrPlanPayload, "rule missing column")
	}
	value := fmt.Sprintf("%v", m["value"])
	return deleteRule{Column: normalizeColumn(column), Value: value}, nil
}
