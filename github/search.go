package github

import (
	"context"
	"path"
	"strings"

	"github.com/rootsecops/folio"
)

// Search returns every node in the repository whose full path contains
// query, case-insensitively. A blank query returns nil without touching the
// network.
func (c *Client) Search(ctx context.Context, repo Repo, prefix, query string) ([]folio.Entry, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	tree, err := c.GetTree(ctx, repo)
	if err != nil {
		return nil, err
	}
	if tree.Truncated {
		c.logger.Warn("tree truncated, search results are partial",
			"repo", repo.String(),
			"nodes", len(tree.Nodes))
	}
	return c.FilterTree(tree, repo, prefix, query), nil
}

// FilterTree matches query against the tree's paths and maps hits to entries.
// Trees become directories and everything else a file. Only blobs carry a
// download URL; submodule commits have no raw content.
func (c *Client) FilterTree(tree *Tree, repo Repo, prefix, query string) []folio.Entry {
	if strings.TrimSpace(query) == "" || tree == nil {
		return nil
	}
	needle := strings.ToLower(query)
	var hits []folio.Entry
	for _, n := range tree.Nodes {
		if n.Path == "" || !strings.Contains(strings.ToLower(n.Path), needle) {
			continue
		}
		e := folio.Entry{
			Name:    path.Base(n.Path),
			Path:    folio.JoinPath(prefix, n.Path),
			Kind:    folio.KindFile,
			ViewURL: c.BlobURL(repo, n.Path),
		}
		switch n.Type {
		case "tree":
			e.Kind = folio.KindDir
		case "blob":
			dl := c.RawFileURL(repo, n.Path)
			e.DownloadURL = &dl
		}
		hits = append(hits, e)
	}
	return hits
}
