package resolver

import (
	"errors"
	"strings"
)

var errNoSteps = errors.New("backend returned no usable steps")

// stepsFromArray converts decoded array elements into Steps. Elements may be
// step objects, JSON-encoded step objects, or plain instruction strings.
func stepsFromArray(arr []any) ([]Step, error) {
	steps := make([]Step, 0, len(arr))
	for _, el := range arr {
		if inner, ok := decodeEmbeddedObject(el); ok {
			el = inner
		}
		switch v := el.(type) {
		case map[string]any:
			if s, ok := stepFromMap(v); ok {
				steps = append(steps, s)
			}
		case string:
			if v = strings.TrimSpace(v); v != "" {
				steps = append(steps, Step{Title: "Step", Actions: []string{v}})
			}
		}
	}
	if len(steps) == 0 {
		return nil, errNoSteps
	}
	return steps, nil
}

func stepFromMap(m map[string]any) (Step, bool) {
	s := Step{
		Title:          stringField(m, "title", "name"),
		ExpectedResult: stringField(m, "expected_result", "expectedResult", "expected"),
	}
	switch a := m["actions"].(type) {
	case []any:
		for _, item := range a {
			if str, ok := item.(string); ok && strings.TrimSpace(str) != "" {
				s.Actions = append(s.Actions, str)
			}
		}
	case string:
		if strings.TrimSpace(a) != "" {
			s.Actions = []string{a}
		}
	}
	if len(s.Actions) == 0 {
		if instr := stringField(m, "instruction", "action", "description"); instr != "" {
			s.Actions = []string{instr}
		}
	}
	if s.Title == "" && len(s.Actions) == 0 {
		return Step{}, false
	}
	return s, true
}
