package schema

import (
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Case is one evaluation fixture: a ticket and the outcome it should reach.
type Case struct {
	Name     string   `yaml:"name,omitempty"   json:"name,omitempty"`
	Ticket   string   `yaml:"ticket"           json:"ticket"`
	Expected Expected `yaml:"expected"         json:"expected"`
	Checks   []string `yaml:"checks,omitempty" json:"checks,omitempty"`
}

// Expected is the functional outcome a case should reach.
type Expected struct {
	Priority              string `yaml:"priority"                 json:"priority"`
	ShouldAlert           bool   `yaml:"should_alert"             json:"should_alert"`
	ShouldMatchKnownIssue bool   `yaml:"should_match_known_issue" json:"should_match_known_issue"`
}

const displayNameLen = 40

// DisplayName returns the case name, or the start of the ticket when the
// case is unnamed.
func (c Case) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	r := []rune(c.Ticket)
	if len(r) > displayNameLen {
		r = r[:displayNameLen]
	}
	return string(r) + "..."
}

// ParseCases decodes a YAML or JSON list of cases.
func ParseCases(data []byte) ([]Case, error) {
	var cases []Case
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("decode cases: %w", err)
	}
	for i, c := range cases {
		if c.Ticket == "" {
			return nil, fmt.Errorf("case %d (%s): empty ticket", i, c.Name)
		}
	}
	return cases, nil
}

// LoadCasesFile reads the cases in a single fixture file.
func LoadCasesFile(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}
	cases, err := ParseCases(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cases, nil
}

// LoadCases expands each pattern as a doublestar glob and loads every
// matching file. Files are read once each, in sorted path order; case
// order within a file is kept.
func LoadCases(patterns ...string) ([]Case, error) {
	seen := map[string]bool{}
	var paths []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no case files match %q", p)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)

	var all []Case
	for _, path := range paths {
		cases, err := LoadCasesFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, cases...)
	}
	return all, nil
}
