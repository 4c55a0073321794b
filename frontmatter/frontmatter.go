// Package frontmatter splits Markdown documents into YAML metadata and body.
package frontmatter

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// Delimiter opens and closes a front-matter block.
const Delimiter = "---"

// ExcerptLength is the number of body characters kept by Excerpt.
const ExcerptLength = 150

// ErrMalformed is returned when a document opens a front-matter block that
// cannot be read, either because it is never closed or because it is not
// valid YAML. The body returned alongside it is the unmodified input.
var ErrMalformed = errors.New("malformed front matter")

var yamlFormat = frontmatter.NewFormat(Delimiter, Delimiter, unmarshalMatter)

// Matter is decoded front-matter metadata. It is never nil when returned
// from Parse.
type Matter map[string]any

// Parse splits raw into metadata and body. A document without a front-matter
// block yields empty metadata and raw unchanged.
func Parse(raw string) (Matter, string, error) {
	switch detect(raw) {
	case blockNone:
		return Matter{}, raw, nil
	case blockUnclosed:
		return Matter{}, raw, fmt.Errorf("%w: no closing %q", ErrMalformed, Delimiter)
	}

	var m Matter
	body, err := frontmatter.Parse(strings.NewReader(raw), &m, yamlFormat)
	if err != nil {
		return Matter{}, raw, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m == nil {
		m = Matter{}
	}
	return m, string(body), nil
}

// unmarshalMatter decodes a front-matter block into *Matter as plain maps,
// slices and scalars. Timestamps keep their source text.
func unmarshalMatter(data []byte, v any) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	m, ok := v.(*Matter)
	if !ok {
		return doc.Decode(v)
	}
	if len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.ShortTag() == "!!null" {
		return nil
	}
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: front matter is not a mapping", root.Line)
	}
	val, err := plain(root)
	if err != nil {
		return err
	}
	*m = Matter(val.(map[string]any))
	return nil
}

func plain(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return plain(n.Content[0])
	case yaml.AliasNode:
		return plain(n.Alias)
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			val, err := plain(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[n.Content[i].Value] = val
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			val, err := plain(c)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	}

	if n.ShortTag() == "!!timestamp" {
		return n.Value, nil
	}
	var val any
	if err := n.Decode(&val); err != nil {
		return nil, err
	}
	return val, nil
}

type block int

const (
	blockNone block = iota
	blockUnclosed
	blockClosed
)

func detect(raw string) block {
	lines := strings.Split(raw, "\n")
	if strings.TrimRight(lines[0], " \t\r") != Delimiter {
		return blockNone
	}
	for _, line := range lines[1:] {
		if strings.TrimRight(line, " \t\r") == Delimiter {
			return blockClosed
		}
	}
	return blockUnclosed
}

// Excerpt returns the first ExcerptLength characters of body, trimmed, with
// an ellipsis appended.
func Excerpt(body string) string {
	r := []rune(body)
	if len(r) > ExcerptLength {
		r = r[:ExcerptLength]
	}
	return strings.TrimSpace(string(r)) + "..."
}

// Decode copies the metadata into the struct pointed to by v using its yaml
// tags. Keys with no matching field are returned sorted. A type mismatch on
// one field leaves that field unset and is reported as an error while the
// remaining fields are still decoded.
func (m Matter) Decode(v any) (unknown []string, err error) {
	known := yamlFields(reflect.TypeOf(v))
	for k := range m {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	slices.Sort(unknown)

	b, err := yaml.Marshal(map[string]any(m))
	if err != nil {
		return unknown, fmt.Errorf("encoding front matter: %w", err)
	}
	if err := yaml.Unmarshal(b, v); err != nil {
		return unknown, fmt.Errorf("decoding front matter: %w", err)
	}
	return unknown, nil
}

func yamlFields(t reflect.Type) map[string]bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	fields := map[string]bool{}
	if t.Kind() != reflect.Struct {
		return fields
	}
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = strings.ToLower(f.Name)
		}
		fields[name] = true
	}
	return fields
}
