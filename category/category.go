// Package category maps listing titles to a fixed label set using an
// ordered keyword table.
package category

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Unknown is returned when no rule matches.
const Unknown = "unknown"

//go:embed rules.yaml
var defaultRules []byte

// Rule assigns Category when any keyword occurs in the lower-cased title.
type Rule struct {
	Category string   `yaml:"category"`
	Any      []string `yaml:"any"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Categorizer walks its rules in order; the first match wins.
type Categorizer struct {
	rules []Rule
}

// New returns a Categorizer over rules. Keywords are lower-cased once here.
func New(rules []Rule) *Categorizer {
	rs := make([]Rule, 0, len(rules))
	for _, r := range rules {
		kws := make([]string, 0, len(r.Any))
		for _, k := range r.Any {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kws = append(kws, k)
			}
		}
		if r.Category == "" || len(kws) == 0 {
			continue
		}
		rs = append(rs, Rule{Category: r.Category, Any: kws})
	}
	return &Categorizer{rules: rs}
}

// Default returns the built-in rule table.
func Default() *Categorizer {
	c, err := Parse(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("category: embedded rules: %v", err))
	}
	return c
}

// Parse reads a YAML rule table.
func Parse(b []byte) (*Categorizer, error) {
	var f ruleFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("category: parse rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("category: rule table is empty")
	}
	return New(f.Rules), nil
}

// Load reads a rule table from path, or returns the built-in table when
// path is empty.
func Load(path string) (*Categorizer, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("category: read %s: %w", path, err)
	}
	return Parse(b)
}

// Categorize returns the label of the first rule matching title, or Unknown.
func (c *Categorizer) Categorize(title string) string {
	t := strings.ToLower(title)
	for _, r := range c.rules {
		for _, k := range r.Any {
			if strings.Contains(t, k) {
				return r.Category
			}
		}
	}
	return Unknown
}

// Rules returns a copy of the table in precedence order.
func (c *Categorizer) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}
