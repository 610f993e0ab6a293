package model

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FilterCondition is a single admission rule.
// Every present field must match (AND). A field holding several values
// matches when any one of them matches.
type FilterCondition struct {
	// Domain matches by substring of the URL's hostname,
	// so "example.com" also matches "sub.example.com".
	Domain StringList `json:"domain,omitempty" yaml:"domain,omitempty"`

	// PathPrefix matches by case-sensitive literal prefix of the URL path.
	PathPrefix StringList `json:"pathPrefix,omitempty" yaml:"pathPrefix,omitempty"`

	// Regex matches by testing the pattern against the full URL string.
	Regex StringList `json:"regex,omitempty" yaml:"regex,omitempty"`

	// Keywords matches by substring anywhere in the full URL string.
	Keywords StringList `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// IsEmpty reports whether the condition has no fields set.
// An empty condition matches every URL.
func (c FilterCondition) IsEmpty() bool {
	return len(c.Domain) == 0 && len(c.PathPrefix) == 0 && len(c.Regex) == 0 && len(c.Keywords) == 0
}

// StringList is a list of strings that also accepts a single scalar
// string when decoded from YAML or JSON.
//
//	domain: example.com
//	domain: [example.com, example.org]
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*s = StringList{single}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringList{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected a string or a list of strings: %w", err)
	}
	*s = list
	return nil
}
