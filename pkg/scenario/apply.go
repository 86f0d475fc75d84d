package scenario

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/sirupsen/logrus"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/contract"
)

// ParamWarning records a non-fatal problem encountered while applying a
// scenario. A scenario with stale references must not block the remaining
// parameters.
type ParamWarning struct {
	Parameter string
	Path      string
	Reason    string
}

type ApplyResult struct {
	Applied  int
	Warnings []ParamWarning
}

// Apply evaluates every parameter's JSONPath expressions against model and
// overwrites each matched location with the parameter's value. The model is
// mutated in place. A missing parameters section is fatal; a path matching
// nothing is a warning. Applying the same scenario twice yields the same
// model as applying it once.
func Apply(model map[string]any, sc *Scenario) (*ApplyResult, error) {
	if sc == nil || sc.Parameters == nil {
		return nil, contract.NewError(contract.CodeInvalidInput,
			"scenario must contain a parameters section")
	}

	names := make([]string, 0, len(sc.Parameters))
	for name := range sc.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	result := &ApplyResult{}

	for _, name := range names {
		param := sc.Parameters[name]

		if param.pathsInvalid {
			result.warn(name, "", "paths must be a list")
			continue
		}
		if len(param.Paths) == 0 || !param.hasValue {
			result.warn(name, "", "missing paths or value field")
			continue
		}

		applied := false
		for _, path := range param.Paths {
			n, reason := applyPath(model, path, param.Value)
			if n > 0 {
				applied = true
				logrus.Debugf("applied %v to %d location(s) via %q", param.Value, n, path)
			} else {
				result.warn(name, path, reason)
			}
		}
		if applied {
			result.Applied++
		}
	}

	return result, nil
}

func (r *ApplyResult) warn(param, path, reason string) {
	logrus.Warnf("scenario parameter %q: %s (%s)", param, reason, path)
	r.Warnings = append(r.Warnings, ParamWarning{Parameter: param, Path: path, Reason: reason})
}

// applyPath writes value to every location matched by path, returning the
// match count. The extended grammar (filter predicates like @.id=='X') is
// tried first; if it does not parse, the path is retried as a basic dotted
// path.
func applyPath(model map[string]any, path string, value any) (int, string) {
	expr, err := jp.ParseString(path)
	if err != nil {
		return basicApply(model, path, value)
	}

	matches := expr.Get(model)
	if len(matches) == 0 {
		return 0, "no matches"
	}

	if err := expr.Set(model, value); err != nil {
		return 0, "failed to set value: " + err.Error()
	}

	return len(matches), ""
}

// basicApply is the fallback grammar: dotted keys with optional [n] index
// and * wildcard, walked as an explicit visitor over objects, arrays and
// scalars.
func basicApply(model map[string]any, path string, value any) (int, string) {
	segs := splitBasicPath(path)
	if len(segs) == 0 {
		return 0, "invalid path"
	}

	n := basicSet(model, segs, value)
	if n == 0 {
		return 0, "no matches"
	}
	return n, ""
}

type basicSegment struct {
	key      string
	index    int
	hasIndex bool
	wildcard bool
}

func splitBasicPath(path string) []basicSegment {
	path = strings.TrimPrefix(path, "$.")
	path = strings.TrimPrefix(path, "$")
	if path == "" {
		return nil
	}

	var segs []basicSegment
	for _, part := range strings.Split(path, ".") {
		index := -1
		hasIndex := false

		if open := strings.IndexByte(part, '['); open >= 0 && strings.HasSuffix(part, "]") {
			idx, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil {
				return nil
			}
			index = idx
			hasIndex = true
			part = part[:open]
		}

		switch {
		case part == "*":
			segs = append(segs, basicSegment{key: part, index: -1, wildcard: true})
		case part == "" && !hasIndex:
			return nil
		case part != "":
			segs = append(segs, basicSegment{key: part, index: -1})
		}

		// An index descends after the key: nodes[0] is two steps.
		if hasIndex {
			segs = append(segs, basicSegment{index: index, hasIndex: true})
		}
	}

	return segs
}

func basicSet(node any, segs []basicSegment, value any) int {
	seg := segs[0]
	rest := segs[1:]

	switch n := node.(type) {
	case map[string]any:
		if seg.hasIndex {
			return 0
		}
		if seg.wildcard {
			count := 0
			for key, child := range n {
				if len(rest) == 0 {
					n[key] = value
					count++
				} else {
					count += basicSet(child, rest, value)
				}
			}
			return count
		}
		child, ok := n[seg.key]
		if !ok {
			return 0
		}
		if len(rest) == 0 {
			n[seg.key] = value
			return 1
		}
		return basicSet(child, rest, value)

	case []any:
		if seg.wildcard {
			count := 0
			for i, child := range n {
				if len(rest) == 0 {
					n[i] = value
					count++
				} else {
					count += basicSet(child, rest, value)
				}
			}
			return count
		}
		if !seg.hasIndex || seg.key != "" {
			return 0
		}
		if seg.index < 0 || seg.index >= len(n) {
			return 0
		}
		if len(rest) == 0 {
			n[seg.index] = value
			return 1
		}
		return basicSet(n[seg.index], rest, value)

	default:
		// Scalar mid-path: nothing to descend into.
		return 0
	}
}
