package auth

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/hashicorp/go-bexpr"
)

// bexpr parses a double-quoted value starting with "/" as a JSON pointer
// selector, so such values are rewritten to raw strings before compiling.
// slashValue finds them right of a comparison, slashNeedle left of in.
var (
	slashValue  = regexp.MustCompile("(==|!=|\\bcontains|\\bmatches)(\\s*)\"(/[^\"`\\\\]*)\"")
	slashNeedle = regexp.MustCompile("\"(/[^\"`\\\\]*)\"(\\s+(?:not\\s+)?in\\b)")
)

func rawSlashValues(expr string) string {
	expr = slashValue.ReplaceAllString(expr, "$1$2`$3`")
	return slashNeedle.ReplaceAllString(expr, "`$1`$2")
}

// filterCache stores compiled evaluators keyed by expression string.
var filterCache = &sync.Map{}

// CompileFilter parses a go-bexpr expression such as
// `action == "LOGIN" and username == "amina"`. An empty expression yields
// a nil evaluator, which MatchFilter treats as "match everything".
func CompileFilter(expr string) (*bexpr.Evaluator, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	if cached, ok := filterCache.Load(expr); ok {
		return cached.(*bexpr.Evaluator), nil
	}
	evaluator, err := bexpr.CreateEvaluator(rawSlashValues(expr))
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	filterCache.Store(expr, evaluator)
	return evaluator, nil
}

// MatchFilter evaluates a compiled filter against a flat field map.
// Evaluation errors (e.g. a selector naming a missing field) count as a
// non-match.
func MatchFilter(evaluator *bexpr.Evaluator, fields map[string]any) bool {
	if evaluator == nil {
		return true
	}
	matches, err := evaluator.Evaluate(fields)
	if err != nil {
		return false
	}
	return matches
}
