// Package rules loads the declarative requirement rule table. The defaults
// ship embedded in the binary; an operator can point RULES_PATH at an
// override file with the same shape.
package rules

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
)

//go:embed ruleset.yaml
var defaultRuleset []byte

type hsPrefixRuleYAML struct {
	Prefixes []string `yaml:"prefixes"`
	Document string   `yaml:"document"`
}

type rulesetYAML struct {
	HSPrefixRules    []hsPrefixRuleYAML `yaml:"hs_prefix_rules"`
	InsuredIncoterms []string           `yaml:"insured_incoterms"`
	DeclarationModes []string           `yaml:"declaration_modes"`
}

// LoadDefault parses the embedded rule table.
func LoadDefault() (domain.RuleTable, error) {
	return parse(defaultRuleset)
}

// LoadFile parses an operator-provided rule table override.
func LoadFile(path string) (domain.RuleTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.RuleTable{}, fmt.Errorf("read ruleset %s: %w", path, err)
	}
	return parse(raw)
}

func parse(raw []byte) (domain.RuleTable, error) {
	var doc rulesetYAML
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return domain.RuleTable{}, fmt.Errorf("parse ruleset yaml: %w", err)
	}

	table := domain.RuleTable{
		InsuredIncoterms: doc.InsuredIncoterms,
	}
	for _, rule := range doc.HSPrefixRules {
		key, ok := domain.ParseDocumentKey(rule.Document)
		if !ok {
			return domain.RuleTable{}, fmt.Errorf("ruleset references unknown document key %q", rule.Document)
		}
		if len(rule.Prefixes) == 0 {
			return domain.RuleTable{}, fmt.Errorf("ruleset rule for %q has no prefixes", rule.Document)
		}
		table.HSPrefixRules = append(table.HSPrefixRules, domain.HSPrefixRule{
			Prefixes: rule.Prefixes,
			Document: key,
		})
	}
	for _, raw := range doc.DeclarationModes {
		mode, ok := domain.ParseTransportMode(raw)
		if !ok {
			return domain.RuleTable{}, fmt.Errorf("ruleset references unknown transport mode %q", raw)
		}
		table.DeclarationModes = append(table.DeclarationModes, mode)
	}
	return table, nil
}
