package domain

import "strings"

// HSPrefixRule maps a set of harmonized-system code prefixes to the document
// the classification triggers.
type HSPrefixRule struct {
	Prefixes []string
	Document DocumentKey
}

// Matches reports whether the HS code falls under any of the rule's prefixes.
func (r HSPrefixRule) Matches(hsCode string) bool {
	code := strings.TrimSpace(hsCode)
	if code == "" {
		return false
	}
	for _, prefix := range r.Prefixes {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	return false
}

// RuleTable is the declarative part of requirement evaluation. It is loaded
// once at startup and treated as immutable afterwards.
type RuleTable struct {
	HSPrefixRules    []HSPrefixRule
	InsuredIncoterms []string
	DeclarationModes []TransportMode
}

func (t RuleTable) InsuredIncoterm(incoterm string) bool {
	for _, term := range t.InsuredIncoterms {
		if strings.EqualFold(term, incoterm) {
			return true
		}
	}
	return false
}

func (t RuleTable) DeclarationMode(mode TransportMode) bool {
	for _, m := range t.DeclarationModes {
		if m == mode {
			return true
		}
	}
	return false
}
