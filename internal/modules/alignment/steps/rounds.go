package steps

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MergeRound is one pass of the escalating consolidation. Rounds run in
// order; each round's output concept set feeds the next.
type MergeRound struct {
	Number   int    `yaml:"number"`
	Name     string `yaml:"name"`
	Criteria string `yaml:"criteria"`
}

// DefaultMergeRounds is the built-in escalation table.
func DefaultMergeRounds() []MergeRound {
	return []MergeRound{
		{
			Number:   1,
			Name:     "exact matching",
			Criteria: "Merge ONLY concepts whose labels are near-duplicates of each other (same name, plural/singular, trivial wording differences). When in doubt, do not merge.",
		},
		{
			Number:   2,
			Name:     "thematic matching",
			Criteria: "Merge concepts that clearly belong to the same functional domain or describe the same capability, even under different names.",
		},
		{
			Number:   3,
			Name:     "aggressive consolidation",
			Criteria: "Consolidate toward 5-15 broad categories. Prefer merging when the relationship is plausible; only leave a concept alone if it fits nothing.",
		},
	}
}

type roundsFile struct {
	Rounds []MergeRound `yaml:"rounds"`
}

// LoadMergeRounds returns the round table, applying overrides from the YAML
// file named by ALIGNMENT_ROUNDS_FILE when set.
func LoadMergeRounds() ([]MergeRound, error) {
	path := strings.TrimSpace(os.Getenv("ALIGNMENT_ROUNDS_FILE"))
	if path == "" {
		return DefaultMergeRounds(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rounds config: %w", err)
	}
	var parsed roundsFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse rounds config: %w", err)
	}
	if len(parsed.Rounds) == 0 {
		return nil, fmt.Errorf("rounds config %s defines no rounds", path)
	}
	for i, r := range parsed.Rounds {
		if strings.TrimSpace(r.Criteria) == "" {
			return nil, fmt.Errorf("rounds config %s: round %d has empty criteria", path, i+1)
		}
		if r.Number == 0 {
			parsed.Rounds[i].Number = i + 1
		}
	}
	return parsed.Rounds, nil
}
