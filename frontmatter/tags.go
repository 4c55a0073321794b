package frontmatter

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tags accepts either a YAML sequence or a comma separated scalar.
type Tags []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Tags) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := n.Decode(&list); err != nil {
			return err
		}
		*t = clean(list)
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			*t = nil
			return nil
		}
		*t = clean(strings.Split(n.Value, ","))
	default:
		return fmt.Errorf("line %d: tags must be a list or a string", n.Line)
	}
	return nil
}

func clean(list []string) Tags {
	out := make(Tags, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
