package github

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/rootsecops/folio"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DecodeListing decodes a contents API response. Only an array is a
// directory listing; any other JSON value yields no entries.
func DecodeListing(body []byte) ([]RawEntry, error) {
	if !isJSONArray(body) {
		return nil, nil
	}
	var entries []RawEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decoding listing: %w", err)
	}
	return entries, nil
}

func isJSONArray(body []byte) bool {
	body = bytes.TrimSpace(body)
	return len(body) > 0 && body[0] == '['
}

// Normalize converts raw entries into site entries under prefix, directories
// first and then by name.
func Normalize(raw []RawEntry, prefix string) []folio.Entry {
	entries := make([]folio.Entry, 0, len(raw))
	for _, r := range raw {
		kind := folio.KindFile
		if r.Type == "dir" {
			kind = folio.KindDir
		}
		entries = append(entries, folio.Entry{
			Name:        r.Name,
			Path:        folio.JoinPath(prefix, r.Path),
			Kind:        kind,
			ViewURL:     r.HTMLURL,
			DownloadURL: r.DownloadURL,
		})
	}
	SortEntries(entries)
	return entries
}

// SortEntries orders entries directories first, then by locale-aware name
// comparison. Names that collate equal fall back to byte order.
func SortEntries(entries []folio.Entry) {
	// A Collator keeps scratch buffers and must not be shared.
	col := collate.New(language.English)
	slices.SortStableFunc(entries, func(a, b folio.Entry) int {
		if a.IsDir() != b.IsDir() {
			if a.IsDir() {
				return -1
			}
			return 1
		}
		if c := col.CompareString(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}
