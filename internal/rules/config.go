package rules

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/DonGar/house-monitor/internal/scheduling"
	"github.com/DonGar/house-monitor/internal/statustree"
)

var validate = validator.New()

// ruleSpec is the structural shell every rule must satisfy, independent of
// behavior. Behavior-specific requirements (which of time/value is
// required) are checked by hand below: validator's struct tags can't
// express "required depending on a sibling's value" across three distinct
// variants without contorting the tags past readability.
type ruleSpec struct {
	Behavior string `validate:"required,oneof=interval daily watch"`
}

// ParseConfig validates the raw rule value found at url and builds the
// RuleHelper it describes. A non-nil error means the rule is invalid;
// callers log and skip it rather than aborting construction of the other
// rules.
func ParseConfig(url string, raw statustree.Value, deps Deps) (*RuleHelper, error) {
	if raw.Kind() != statustree.KindMap {
		return nil, fmt.Errorf("rules: %s: rule must be a mapping", url)
	}

	behaviorVal, _ := raw.Child("behavior")
	spec := ruleSpec{Behavior: behaviorVal.StringValue()}
	if err := validate.Struct(spec); err != nil {
		return nil, fmt.Errorf("rules: %s: %w", url, err)
	}

	switch spec.Behavior {
	case "interval":
		return parseIntervalRule(url, raw, deps)
	case "daily":
		return parseDailyRule(url, raw, deps)
	case "watch":
		return parseWatchRule(url, raw, deps)
	default:
		return nil, fmt.Errorf("rules: %s: unknown behavior %q", url, spec.Behavior)
	}
}

func childString(raw statustree.Value, name string) (string, bool) {
	child, ok := raw.Child(name)
	if !ok || child.Kind() != statustree.KindString {
		return "", false
	}
	return child.StringValue(), true
}

func parseIntervalRule(url string, raw statustree.Value, deps Deps) (*RuleHelper, error) {
	timeStr, ok := childString(raw, "time")
	if !ok {
		return nil, fmt.Errorf("rules: %s: interval rule requires \"time\"", url)
	}
	d, err := scheduling.ParseIntervalDuration(timeStr)
	if err != nil {
		return nil, fmt.Errorf("rules: %s: %w", url, err)
	}
	return NewIntervalHelper(url, d, deps), nil
}

func parseDailyRule(url string, raw statustree.Value, deps Deps) (*RuleHelper, error) {
	timeStr, ok := childString(raw, "time")
	if !ok {
		return nil, fmt.Errorf("rules: %s: daily rule requires \"time\"", url)
	}
	switch timeStr {
	case "sunrise":
		event := scheduling.Sunrise
		return NewDailySunHelper(url, &event, deps), nil
	case "sunset":
		event := scheduling.Sunset
		return NewDailySunHelper(url, &event, deps), nil
	default:
		clock, err := scheduling.ParseClockOfDay(timeStr)
		if err != nil {
			return nil, fmt.Errorf("rules: %s: %w", url, err)
		}
		return NewDailyClockHelper(url, clock, deps), nil
	}
}

func parseWatchRule(url string, raw statustree.Value, deps Deps) (*RuleHelper, error) {
	valuePath, ok := childString(raw, "value")
	if !ok {
		return nil, fmt.Errorf("rules: %s: watch rule requires \"value\"", url)
	}
	var trigger *statustree.Value
	if t, ok := raw.Child("trigger"); ok {
		tc := t.Clone()
		trigger = &tc
	}
	return NewWatchHelper(url, valuePath, trigger, deps), nil
}
