// Package folio holds the types shared by the content packages: directory
// entries produced by listings and searches, and parsed documents.
package folio

import "strings"

// EntryKind is the kind of a directory entry.
type EntryKind string

const (
	KindFile EntryKind = "file"
	KindDir  EntryKind = "dir"
)

// Entry is one child of a remote directory listing or one search hit.
//
// Path is prefixed with the site section root (for example
// "academics/classnotes/os/lecture1.md") so it can be used as an internal route.
type Entry struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Kind        EntryKind `json:"type"`
	ViewURL     string    `json:"html_url"`
	DownloadURL *string   `json:"download_url"`
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDir
}

// Document is a single remote file split into front matter and body.
type Document struct {
	Name        string         `json:"name"`
	ViewURL     string         `json:"html_url"`
	Body        string         `json:"content"`
	FrontMatter map[string]any `json:"frontmatter"`
	HTML        string         `json:"html,omitempty"`
}

// JoinPath joins a site section prefix and a repository path. An empty prefix
// leaves the path untouched.
func JoinPath(prefix, path string) string {
	prefix = strings.Trim(prefix, "/")
	path = strings.TrimPrefix(path, "/")
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	default:
		return prefix + "/" + path
	}
}
