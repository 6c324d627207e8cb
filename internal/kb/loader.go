package kb

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for file types no parser handles.
var ErrUnsupportedFormat = errors.New("unsupported article format")

// ParseFunc turns one file into an Article. id is the file name.
type ParseFunc func(id string, data []byte) (*Article, error)

var parsers = map[string]ParseFunc{
	".json":     parseJSON,
	".yaml":     parseYAML,
	".yml":      parseYAML,
	".md":       parseMarkdown,
	".markdown": parseMarkdown,
	".txt":      parseText,
}

// ParseFile picks a parser by extension.
func ParseFile(name string, data []byte) (*Article, error) {
	p, ok := parsers[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}
	a, err := p(name, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	applyDefaults(a, name)
	return a, nil
}

// LoadDir parses every article file in dir, in file name order. Files that
// fail to parse are logged and skipped. A missing dir yields no articles.
func LoadDir(dir string, log *slog.Logger) ([]*Article, error) {
	if log == nil {
		log = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("article directory missing", "dir", dir)
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []*Article
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			log.Error("read article failed", "file", e.Name(), "error", err)
			continue
		}
		a, err := ParseFile(e.Name(), data)
		if err != nil {
			if errors.Is(err, ErrUnsupportedFormat) {
				log.Warn("skipping article", "file", e.Name(), "error", err)
			} else {
				log.Error("parse article failed", "file", e.Name(), "error", err)
			}
			continue
		}
		out = append(out, a)
	}
	log.Info("knowledge base loaded", "dir", dir, "articles", len(out))
	return out, nil
}

type articleFile struct {
	Title     string     `json:"title" yaml:"title"`
	Keywords  []string   `json:"keywords" yaml:"keywords"`
	IssueType string     `json:"issue_type" yaml:"issue_type"`
	Steps     []fileStep `json:"steps" yaml:"steps"`
}

// fileStep is either a plain string or {title, instruction}.
type fileStep struct {
	Title       string `json:"title" yaml:"title"`
	Instruction string `json:"instruction" yaml:"instruction"`
}

func (s *fileStep) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		s.Instruction = str
		return nil
	}
	type plain fileStep
	return json.Unmarshal(b, (*plain)(s))
}

func (s *fileStep) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		s.Instruction = n.Value
		return nil
	}
	type plain fileStep
	return n.Decode((*plain)(s))
}

func (s fileStep) text() string {
	title := strings.TrimSpace(s.Title)
	instr := strings.TrimSpace(s.Instruction)
	switch {
	case title != "" && instr != "":
		return "*" + title + "*\n" + instr
	case instr != "":
		return instr
	default:
		return title
	}
}

func (f articleFile) article(id string) *Article {
	a := &Article{ID: id, Title: f.Title, Keywords: f.Keywords, IssueType: f.IssueType}
	for _, s := range f.Steps {
		if t := s.text(); t != "" {
			a.Steps = append(a.Steps, t)
		}
	}
	return a
}

func parseJSON(id string, data []byte) (*Article, error) {
	var f articleFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.article(id), nil
}

func parseYAML(id string, data []byte) (*Article, error) {
	var f articleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.article(id), nil
}

func applyDefaults(a *Article, name string) {
	if strings.TrimSpace(a.Title) == "" {
		a.Title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if strings.TrimSpace(a.IssueType) == "" {
		a.IssueType = "general"
	}
	a.IssueType = strings.ToLower(strings.TrimSpace(a.IssueType))
	kws := a.Keywords[:0]
	for _, k := range a.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kws = append(kws, k)
		}
	}
	a.Keywords = kws
}
