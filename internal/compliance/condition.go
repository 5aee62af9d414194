package compliance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coverwatch/coverwatch/internal/models"
)

// Outcome is the tri-state result of evaluating one rule against a snapshot.
// Missing is distinguished from fail throughout the system: missing data is a
// data-collection problem, fail is a substantive shortfall.
type Outcome string

// Evaluation outcomes.
const (
	// OutcomePass means the requirement is satisfied.
	OutcomePass Outcome = "pass"
	// OutcomeFail means the requirement is present but not met.
	OutcomeFail Outcome = "fail"
	// OutcomeMissing means the data needed to evaluate is absent.
	OutcomeMissing Outcome = "missing"
)

// ConfigError reports a rule whose type, condition, or value the evaluator
// does not recognize. Such rules are skipped and reported, never silently
// treated as pass or fail.
type ConfigError struct {
	RuleID uint64
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("compliance: rule %d misconfigured: %s", e.RuleID, e.Reason)
}

// EvaluateRule evaluates a single rule against a snapshot and returns exactly
// one of pass, fail, or missing. A *ConfigError is returned for rules outside
// the closed type/condition sets or with an unusable comparison value.
func EvaluateRule(rule *models.Rule, snap Snapshot) (Outcome, error) {
	if !models.ValidRuleType(rule.Type) {
		return "", &ConfigError{RuleID: rule.ID, Reason: fmt.Sprintf("unknown rule type %q", rule.Type)}
	}

	switch rule.Condition {
	case models.ConditionExists:
		if snap.ResolvePresence(rule.Field) {
			return OutcomePass, nil
		}
		return OutcomeMissing, nil

	case models.ConditionMissing:
		if snap.ResolvePresence(rule.Field) {
			return OutcomeFail, nil
		}
		return OutcomePass, nil

	case models.ConditionGTE, models.ConditionLTE:
		threshold, errValue := ruleNumericValue(rule)
		if errValue != nil {
			return "", errValue
		}
		value, present := snap.ResolveNumber(rule.Field)
		if !present {
			return OutcomeMissing, nil
		}
		if rule.Condition == models.ConditionGTE {
			if value >= threshold {
				return OutcomePass, nil
			}
			return OutcomeFail, nil
		}
		if value <= threshold {
			return OutcomePass, nil
		}
		return OutcomeFail, nil

	case models.ConditionRequires:
		required, errValue := ruleStringValue(rule)
		if errValue != nil {
			return "", errValue
		}
		list := snap.ResolveList(rule.Field)
		if len(list) == 0 {
			// No endorsement list supplied at all: a data-collection gap,
			// not a substantive shortfall.
			return OutcomeMissing, nil
		}
		want := NormalizeListEntry(required)
		for _, entry := range list {
			if entry == want {
				return OutcomePass, nil
			}
		}
		return OutcomeFail, nil

	case models.ConditionBefore, models.ConditionAfter:
		boundary, errValue := ruleDateValue(rule)
		if errValue != nil {
			return "", errValue
		}
		value, present := snap.ResolveDate(rule.Field)
		if !present {
			return OutcomeMissing, nil
		}
		if rule.Condition == models.ConditionBefore {
			if value.Before(boundary) {
				return OutcomePass, nil
			}
			return OutcomeFail, nil
		}
		if value.After(boundary) {
			return OutcomePass, nil
		}
		return OutcomeFail, nil

	default:
		return "", &ConfigError{RuleID: rule.ID, Reason: fmt.Sprintf("unknown condition %q", rule.Condition)}
	}
}

// ruleStringValue returns the rule's comparison value or a ConfigError when it
// is unset or blank.
func ruleStringValue(rule *models.Rule) (string, error) {
	if rule.Value == nil || strings.TrimSpace(*rule.Value) == "" {
		return "", &ConfigError{RuleID: rule.ID, Reason: fmt.Sprintf("condition %q needs a value", rule.Condition)}
	}
	return strings.TrimSpace(*rule.Value), nil
}

// ruleNumericValue parses the rule's comparison value as a number.
func ruleNumericValue(rule *models.Rule) (float64, error) {
	raw, errValue := ruleStringValue(rule)
	if errValue != nil {
		return 0, errValue
	}
	value, errParse := strconv.ParseFloat(raw, 64)
	if errParse != nil {
		return 0, &ConfigError{RuleID: rule.ID, Reason: fmt.Sprintf("non-numeric value %q", raw)}
	}
	return value, nil
}

// ruleDateValue parses the rule's comparison value as a date.
func ruleDateValue(rule *models.Rule) (time.Time, error) {
	raw, errValue := ruleStringValue(rule)
	if errValue != nil {
		return time.Time{}, errValue
	}
	parsed, ok := ParseDate(raw)
	if !ok {
		return time.Time{}, &ConfigError{RuleID: rule.ID, Reason: fmt.Sprintf("unparsable date value %q", raw)}
	}
	return parsed, nil
}
