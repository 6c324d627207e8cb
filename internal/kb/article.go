package kb

// Article is a remediation guide. Articles are read-only once loaded.
type Article struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Keywords  []string `json:"keywords"`
	IssueType string   `json:"issue_type"`
	Steps     []string `json:"steps"`
	// Synthetic marks an article generated on demand rather than loaded.
	Synthetic bool `json:"synthetic,omitempty"`
}

func (a *Article) Clone() *Article {
	if a == nil {
		return nil
	}
	c := *a
	c.Keywords = append([]string(nil), a.Keywords...)
	c.Steps = append([]string(nil), a.Steps...)
	return &c
}
