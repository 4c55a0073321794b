// Package config loads the repository locations each content domain reads
// from.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rootsecops/folio/content"
	"github.com/rootsecops/folio/github"
	"gopkg.in/yaml.v3"
)

// DefaultBranch is used when a source names no branch.
const DefaultBranch = "main"

// Sources maps each content domain to its repository.
type Sources struct {
	Blogs    content.Source `yaml:"blogs"`
	Projects content.Source `yaml:"projects"`
	Programs content.Source `yaml:"programs"`
	Codes    content.Source `yaml:"codes"`
	Notes    content.Source `yaml:"notes"`
}

// DefaultSources returns the repositories the site was built against.
func DefaultSources() Sources {
	repo := func(name string) github.Repo {
		return github.Repo{Owner: "rootsecops", Name: name, Branch: DefaultBranch}
	}
	return Sources{
		Blogs:    content.Source{Repo: repo("rootsecops.dev"), Path: "blogs"},
		Projects: content.Source{Repo: repo("rootsecops.io"), Path: "projects"},
		Programs: content.Source{Repo: repo("academic_coursework")},
		Codes:    content.Source{Repo: repo("academic_coursework"), Prefix: "academics/codes"},
		Notes:    content.Source{Repo: repo("academic_notes"), Prefix: "academics/classnotes"},
	}
}

// LoadSources reads a YAML sources file over the defaults. Keys left out of
// the file keep their default values. An empty path returns the defaults.
func LoadSources(path string) (Sources, error) {
	src := DefaultSources()
	if path == "" {
		return src, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Sources{}, fmt.Errorf("reading sources: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&src); err != nil && !errors.Is(err, io.EOF) {
		return Sources{}, fmt.Errorf("parsing sources %s: %w", path, err)
	}

	if err := src.normalize(); err != nil {
		return Sources{}, fmt.Errorf("sources %s: %w", path, err)
	}
	return src, nil
}

func (s *Sources) normalize() error {
	for _, d := range s.domains() {
		src := d.src
		if src.Branch == "" {
			src.Branch = DefaultBranch
		}
		src.Path = strings.Trim(src.Path, "/")
		src.Prefix = strings.Trim(src.Prefix, "/")
		if src.Owner == "" {
			return fmt.Errorf("%s.owner is required", d.name)
		}
		if src.Name == "" {
			return fmt.Errorf("%s.repo is required", d.name)
		}
	}
	return nil
}

type namedSource struct {
	name string
	src  *content.Source
}

func (s *Sources) domains() []namedSource {
	return []namedSource{
		{"blogs", &s.Blogs},
		{"projects", &s.Projects},
		{"programs", &s.Programs},
		{"codes", &s.Codes},
		{"notes", &s.Notes},
	}
}
