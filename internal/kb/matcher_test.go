package kb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testArticles() []*Article {
	return []*Article{
		{ID: "vpn.json", Title: "VPN Connection Issues", Keywords: []string{"vpn", "tunnel", "remote access"}, IssueType: "vpn", Steps: []string{"a", "b"}},
		{ID: "printer.json", Title: "Printer Jam", Keywords: []string{"printer", "paper jam"}, IssueType: "printer", Steps: []string{"a", "b", "c"}},
		{ID: "wifi.json", Title: "WiFi Troubleshooting", Keywords: []string{"wifi", "wireless", "network"}, IssueType: "network", Steps: []string{"a"}},
	}
}

func TestFind_ExactIssueTypeWins(t *testing.T) {
	// "printer jam" is the exact title of printer.json (score 25+15), but an
	// article whose issue type equals the query must still win.
	articles := append(testArticles(), &Article{ID: "jam.json", Title: "x", IssueType: "printer jam"})
	ix := NewIndex(articles, Weights{})

	got := ix.Find("Printer Jam")
	require.NotNil(t, got)
	assert.Equal(t, "jam.json", got.ID)

	got = ix.Find("network")
	require.NotNil(t, got)
	assert.Equal(t, "wifi.json", got.ID)
}

func TestFind_ScoredMatch(t *testing.T) {
	ix := NewIndex(testArticles(), Weights{})

	got := ix.Find("my vpn tunnel keeps dropping")
	require.NotNil(t, got)
	assert.Equal(t, "vpn.json", got.ID)

	assert.Nil(t, ix.Find("lunch menu"))
	assert.Nil(t, ix.Find("   "))
}

func TestFind_Threshold(t *testing.T) {
	a := []*Article{{ID: "a", Title: "Zzz", Keywords: []string{"printing"}, IssueType: "x"}}

	// keyword contains query: default weight 5 meets the threshold
	got := NewIndex(a, Weights{}).Find("print")
	require.NotNil(t, got)
	assert.Equal(t, 5, NewIndex(a, Weights{}).Score(a[0], "print"))

	// same article scoring exactly 4 is rejected
	ix := NewIndex(a, Weights{QueryInKeyword: 4})
	assert.Equal(t, 4, ix.Score(a[0], "print"))
	assert.Nil(t, ix.Find("print"))
}

func TestScore_KeywordsAreAdditive(t *testing.T) {
	ix := NewIndex(nil, Weights{})
	a := &Article{Title: "Qqq", Keywords: []string{"vpn", "vpn client", "client"}}

	// exact "vpn client" (15) + "vpn" in query (10) + "client" in query (10)
	assert.Equal(t, 35, ix.Score(a, "vpn client"))
}

func TestScore_TitleBonusFirstApplicableWins(t *testing.T) {
	ix := NewIndex(nil, Weights{})

	tests := []struct {
		name  string
		title string
		query string
		want  int
	}{
		{"exact title", "printer jam", "printer jam", 25},
		{"title word in query", "Printer Jam", "the printer is stuck", 15},
		{"query word in title", "Printers", "printer", 12},
		{"short words ignored", "Go to", "go to", 25},
		{"no bonus", "Outlook", "vpn", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ix.Score(&Article{Title: tt.title}, tt.query))
		})
	}
}

func TestFindByName(t *testing.T) {
	ix := NewIndex(testArticles(), Weights{})
	assert.Equal(t, "printer.json", ix.FindByName("printer jam").ID)
	assert.Equal(t, "wifi.json", ix.FindByName("WIFI").ID)
	assert.Nil(t, ix.FindByName("citrix"))
}

func TestAll_ReturnsCopies(t *testing.T) {
	ix := NewIndex(testArticles(), Weights{})
	all := ix.All()
	all[0].Steps[0] = "mutated"
	assert.Equal(t, "a", ix.All()[0].Steps[0])
}
