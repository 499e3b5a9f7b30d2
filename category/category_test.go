package category

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCategorize_Default(t *testing.T) {
	c := Default()

	tests := []struct {
		title string
		want  string
	}{
		{"Senior Data Analyst", "Data Analyst"},
		{"Software Engineer", "Data Engineer"},
		{"Lead Data Engineer - Azure", "Data Engineer"},
		{"Business Analyst (Contract)", "Business Analyst"},
		{"Analytics Analyst", "Analytcis Engineer"},
		{"Data Scientist", "Data Scientist"},
		{"Power BI Report Developer", "Report Developer"},
		{"SEO Specialist", "SEO Specialist"},
		{"Marketing Manager - APAC", "Marketing Manager"},
		{"Barista", Unknown},
		{"", Unknown},
		// The broad "engineer" rule sits above the marketing rules.
		{"Marketing Engineer", "Data Engineer"},
		// "data analyst" is checked before "marketing analyst".
		{"Marketing Data Analyst", "Data Analyst"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := c.Categorize(tt.title); got != tt.want {
				t.Errorf("Categorize(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestDefault_RuleOrder(t *testing.T) {
	rules := Default().Rules()
	if len(rules) != 25 {
		t.Fatalf("expected 25 rules, got %d", len(rules))
	}
	if rules[0].Category != "Data Analyst" || rules[2].Any[0] != "engineer" || rules[24].Category != "Marketing Analyst" {
		t.Errorf("unexpected rule order: first=%q third=%v last=%q",
			rules[0].Category, rules[2].Any, rules[24].Category)
	}
}

// For every pair of rules i < j, a title containing both keywords lands on i.
func TestCategorize_EarlierRuleWins(t *testing.T) {
	c := Default()
	rules := c.Rules()

	for i := 0; i < len(rules); i++ {
		for j := i + 1; j < len(rules); j++ {
			title := rules[j].Any[0] + " and " + rules[i].Any[0]
			got := c.Categorize(title)
			// A rule before i may also match the combined title; it must
			// then be no later than i.
			idx := indexOf(rules, got)
			if idx < 0 || idx > i {
				t.Errorf("title %q: got %q (rule %d), want rule %d or earlier", title, got, idx, i)
			}
		}
	}
}

func indexOf(rules []Rule, category string) int {
	for i, r := range rules {
		if r.Category == category {
			return i
		}
	}
	return -1
}

func TestLoad_Override(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	body := []byte("rules:\n  - category: Platform\n    any: [\"SRE\", \"platform\"]\n  - category: Other\n    any: [\"engineer\"]\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.Categorize("Senior SRE Engineer"); got != "Platform" {
		t.Errorf("got %q, want Platform", got)
	}
	if got := c.Categorize("Civil Engineer"); got != "Other" {
		t.Errorf("got %q, want Other", got)
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse([]byte("rules: []\n")); err == nil {
		t.Error("expected error for empty rule table")
	}
}
