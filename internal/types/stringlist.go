package types

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// StringList allows unmarshalling a string or a slice of strings.
type StringList []string

// UnmarshalYAML makes StringList accept a string or a slice.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var v string
		if err := value.Decode(&v); err != nil {
			return err
		}
		if v != "" {
			*s = []string{v}
		}
		return nil
	case yaml.SequenceNode:
		var vals []string
		if err := value.Decode(&vals); err != nil {
			return err
		}
		*s = vals
		return nil
	case 0:
		// missing field is fine
		return nil
	default:
		return fmt.Errorf("expected string or list, got %v", value.Kind)
	}
}
