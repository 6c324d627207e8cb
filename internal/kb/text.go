package kb

import (
	"bufio"
	"bytes"
	"strings"
	"unicode"
)

// parseText reads a plain text guide: first line is the title, "Keywords:"
// and "Issue type:" lines are metadata, numbered or bulleted lines are steps.
func parseText(id string, data []byte) (*Article, error) {
	a := &Article{ID: id}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "keywords:"):
			for _, k := range strings.Split(line[len("keywords:"):], ",") {
				a.Keywords = append(a.Keywords, strings.TrimSpace(k))
			}
		case strings.HasPrefix(lower, "issue type:"):
			a.IssueType = strings.TrimSpace(line[len("issue type:"):])
		case strings.HasPrefix(lower, "issue_type:"):
			a.IssueType = strings.TrimSpace(line[len("issue_type:"):])
		case a.Title == "":
			a.Title = line
		default:
			if step, ok := stripListMarker(line); ok {
				a.Steps = append(a.Steps, step)
			}
		}
	}
	return a, sc.Err()
}

func stripListMarker(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "), strings.HasPrefix(line, "• "):
		_, rest, _ := strings.Cut(line, " ")
		return strings.TrimSpace(rest), true
	}
	i := 0
	for i < len(line) && unicode.IsDigit(rune(line[i])) {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:]), true
	}
	return "", false
}
