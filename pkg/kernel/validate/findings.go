package validate

// Check is a single named pass/fail finding.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// Checker is a finding set that can be scored.
type Checker interface {
	Checks() []Check
}

// Score returns the fraction of checks that passed. An empty set scores 0.
func Score(c Checker) float64 {
	checks := c.Checks()
	if len(checks) == 0 {
		return 0
	}
	passed := 0
	for _, ch := range checks {
		if ch.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(checks))
}

// Failed returns the names of the checks that did not pass.
func Failed(c Checker) []string {
	var names []string
	for _, ch := range c.Checks() {
		if !ch.Passed {
			names = append(names, ch.Name)
		}
	}
	return names
}
