package kb

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

var frontMatterFence = []byte("---")

// parseMarkdown reads optional yaml front matter, then takes the first H1
// as title and the top-level list items as steps. Without a list, each H2
// section becomes a step.
func parseMarkdown(id string, data []byte) (*Article, error) {
	var meta articleFile
	body := data
	if fm, rest, ok := splitFrontMatter(data); ok {
		if err := yaml.Unmarshal(fm, &meta); err != nil {
			return nil, err
		}
		body = rest
	}
	a := meta.article(id)

	doc := goldmark.New().Parser().Parse(text.NewReader(body))

	var (
		listSteps    []string
		sectionSteps []string
		section      *strings.Builder
		sectionTitle string
	)
	flush := func() {
		if section != nil {
			step := "*" + sectionTitle + "*"
			if s := strings.TrimSpace(section.String()); s != "" {
				step += "\n" + s
			}
			sectionSteps = append(sectionSteps, step)
		}
		section = nil
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := nodeText(node, body)
			switch node.Level {
			case 1:
				if a.Title == "" {
					a.Title = title
				}
			case 2:
				flush()
				section = &strings.Builder{}
				sectionTitle = title
			}
		case *ast.List:
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				if t := nodeText(item, body); t != "" {
					listSteps = append(listSteps, t)
					if section != nil {
						section.WriteString("• " + t + "\n")
					}
				}
			}
		default:
			if section != nil {
				if t := nodeText(node, body); t != "" {
					section.WriteString(t + "\n")
				}
			}
		}
	}
	flush()

	if len(a.Steps) == 0 {
		if len(sectionSteps) > 0 {
			a.Steps = sectionSteps
		} else {
			a.Steps = listSteps
		}
	}
	return a, nil
}

func splitFrontMatter(data []byte) (fm, rest []byte, ok bool) {
	trimmed := bytes.TrimPrefix(data, []byte("\ufeff"))
	if !bytes.HasPrefix(trimmed, frontMatterFence) {
		return nil, data, false
	}
	lines := bytes.SplitAfter(trimmed, []byte("\n"))
	if len(lines) < 2 || !bytes.Equal(bytes.TrimSpace(lines[0]), frontMatterFence) {
		return nil, data, false
	}
	offset := len(lines[0])
	for _, line := range lines[1:] {
		if bytes.Equal(bytes.TrimSpace(line), frontMatterFence) {
			return trimmed[len(lines[0]):offset], trimmed[offset+len(line):], true
		}
		offset += len(line)
	}
	return nil, data, false
}

// nodeText concatenates the inline text below n.
func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.Paragraph, *ast.TextBlock:
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(b.String()), " ")
}
