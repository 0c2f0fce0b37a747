package condition

import (
	"errors"
	"math"
	"strings"

	"github.com/dukex/flowbase/pkg/models"
)

// ErrUnknownOperator is reported when an operator is not part of the
// vocabulary. Callers treat it as "not satisfied".
var ErrUnknownOperator = errors.New("unknown operator")

// CompareField applies a field operator. previous is the prior value of the
// field and is only consulted by the changed operator. It never panics and
// returns ErrUnknownOperator together with false for unsupported operators.
func CompareField(operator string, actual, expected, previous models.Value) (bool, error) {
	switch operator {
	case models.OpEquals:
		return valuesEqual(actual, expected), nil
	case models.OpNotEquals:
		return !valuesEqual(actual, expected), nil
	case models.OpContains:
		return containsFold(actual, expected), nil
	case models.OpNotContains:
		return !containsFold(actual, expected), nil
	case models.OpStartsWith:
		return strings.HasPrefix(strings.ToLower(actual.Text()), strings.ToLower(expected.Text())), nil
	case models.OpEndsWith:
		return strings.HasSuffix(strings.ToLower(actual.Text()), strings.ToLower(expected.Text())), nil
	case models.OpGreaterThan:
		return compareNumbers(actual, expected, func(a, b float64) bool { return a > b }), nil
	case models.OpLessThan:
		return compareNumbers(actual, expected, func(a, b float64) bool { return a < b }), nil
	case models.OpGreaterThanOrEqual:
		return compareNumbers(actual, expected, func(a, b float64) bool { return a >= b }), nil
	case models.OpLessThanOrEqual:
		return compareNumbers(actual, expected, func(a, b float64) bool { return a <= b }), nil
	case models.OpIsEmpty:
		return actual.IsEmpty(), nil
	case models.OpIsNotEmpty:
		return !actual.IsEmpty(), nil
	case models.OpIn:
		return inList(actual, expected), nil
	case models.OpNotIn:
		return !inList(actual, expected), nil
	case models.OpChanged:
		return !valuesEqual(actual, previous), nil
	default:
		return false, ErrUnknownOperator
	}
}

// valuesEqual compares numerically when both sides read as numbers and falls
// back to text equality otherwise, so "5" equals 5.
func valuesEqual(a, b models.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsEmpty() && b.IsEmpty()
	}

	if a.Kind() == models.KindList || b.Kind() == models.KindList {
		return a.Equal(b)
	}

	af, bf := a.Float(), b.Float()
	if !math.IsNaN(af) && !math.IsNaN(bf) && a.Kind() != models.KindBool && b.Kind() != models.KindBool {
		return af == bf
	}

	return a.Text() == b.Text()
}

func containsFold(actual, expected models.Value) bool {
	if actual.Kind() == models.KindList {
		for _, item := range actual.Items() {
			if strings.EqualFold(item.Text(), expected.Text()) {
				return true
			}
		}

		return false
	}

	if actual.IsNull() {
		return false
	}

	return strings.Contains(strings.ToLower(actual.Text()), strings.ToLower(expected.Text()))
}

// compareNumbers coerces both sides; NaN on either side is false for every
// ordering operator.
func compareNumbers(actual, expected models.Value, cmp func(a, b float64) bool) bool {
	a, b := actual.Float(), expected.Float()
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}

	return cmp(a, b)
}

// inList accepts a list value or a comma separated string as the candidates.
func inList(actual, expected models.Value) bool {
	var candidates []models.Value

	switch expected.Kind() {
	case models.KindList:
		candidates = expected.Items()
	case models.KindString:
		for _, part := range strings.Split(expected.Text(), ",") {
			candidates = append(candidates, models.String(strings.TrimSpace(part)))
		}
	default:
		candidates = []models.Value{expected}
	}

	for _, candidate := range candidates {
		if valuesEqual(actual, candidate) {
			return true
		}
	}

	return false
}
