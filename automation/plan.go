package automation

import (
	"math"
	"strconv"
	"strings"

	"canalpro-publisher/config"
	"canalpro-publisher/models"
)

// Value transforms a step may name.
const (
	TransformCategory       = "category"
	TransformTaxPeriod      = "iptu_period"
	TransformInteger        = "integer"
	TransformAddressDisplay = "address_display"
)

// StepValue computes the value a step applies to the form. skip is true when
// the step's condition does not hold, or when a job-sourced text or select
// value is empty or zero.
func StepValue(step config.Step, job *models.Job) (value string, skip bool) {
	if !conditionHolds(step.When, job) {
		return "", true
	}

	value = step.Value
	if step.Key != "" {
		value = strings.TrimSpace(job.Value(step.Key))
	}
	value = applyTransform(step.Transform, value)
	if step.MaxLen > 0 {
		value = truncateRunes(value, step.MaxLen)
	}

	if step.Key != "" && (step.Mode == config.ModeText || step.Mode == config.ModeSelect) {
		if value == "" || value == "0" {
			return "", true
		}
	}
	return value, false
}

func conditionHolds(c *config.Condition, job *models.Job) bool {
	if c == nil {
		return true
	}
	v := strings.TrimSpace(job.Value(c.Key))
	if c.Equals != "" && v != c.Equals {
		return false
	}
	if c.Present && (v == "" || v == "0") {
		return false
	}
	return true
}

func applyTransform(name, v string) string {
	switch name {
	case TransformCategory:
		return models.MapCategory(v)
	case TransformTaxPeriod:
		return models.MapTaxPeriod(v)
	case TransformAddressDisplay:
		return models.MapAddressDisplay(v)
	case TransformInteger:
		if v == "" {
			return ""
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return v
		}
		return strconv.FormatInt(int64(math.Round(f)), 10)
	}
	return v
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
