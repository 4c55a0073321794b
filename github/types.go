package github

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Repo identifies a branch of a GitHub repository.
type Repo struct {
	Owner  string `yaml:"owner"`
	Name   string `yaml:"repo"`
	Branch string `yaml:"branch"`
}

// String returns owner/name@branch.
func (r Repo) String() string {
	return r.Owner + "/" + r.Name + "@" + r.Branch
}

// RawEntry is one item of a contents API directory listing.
type RawEntry struct {
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	Type        string  `json:"type"`
	SHA         string  `json:"sha"`
	Size        int64   `json:"size"`
	HTMLURL     string  `json:"html_url"`
	DownloadURL *string `json:"download_url"`
}

// FileContent is the contents API response for a single file.
type FileContent struct {
	RawEntry
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Text returns the file body, decoding base64 when the API encoded it.
func (f *FileContent) Text() (string, error) {
	switch f.Encoding {
	case "base64":
		// The API wraps encoded content at 60 columns.
		b, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(f.Content, "\n", ""))
		if err != nil {
			return "", fmt.Errorf("decoding %s: %w", f.Path, err)
		}
		return string(b), nil
	case "", "utf-8":
		return f.Content, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q for %s", f.Encoding, f.Path)
	}
}

// Branch is the subset of the branches API used to resolve a head commit.
type Branch struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// Tree is a git tree listing. Truncated is set when the tree exceeded the
// API's size limits and Nodes is partial.
type Tree struct {
	SHA       string     `json:"sha"`
	Nodes     []TreeNode `json:"tree"`
	Truncated bool       `json:"truncated"`
}

// TreeNode is one blob or tree in a recursive tree listing.
type TreeNode struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

// Repository is the subset of repository metadata shown on project pages.
type Repository struct {
	FullName        string    `json:"full_name"`
	HTMLURL         string    `json:"html_url"`
	Description     string    `json:"description"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	PushedAt        time.Time `json:"pushed_at"`
}
