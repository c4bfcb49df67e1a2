// Package index implements the out-of-scope inverted-index contract named
// by the search cycle: build-or-open(root, dir, ext_filter) -> { search(query,
// limit) -> [path] }. It backs the orchestrator's index-fallback stage
// with github.com/blugelabs/bluge, a pure-Go full-text
// engine with no cgo dependency.
package index

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/blugelabs/bluge"
)

// Index is the contract the orchestrator depends on.
type Index interface {
	// Search returns up to limit paths, relative to root, whose indexed
	// content contains query.
	Search(ctx context.Context, query string, limit int) ([]string, error)
	Close() error
}

type blugeIndex struct {
	root   string
	reader *bluge.Reader
	writer *bluge.Writer
}

// BuildOrOpen opens the bluge index rooted at dir if one already exists
// (detected by a non-empty directory), otherwise builds it by walking root
// and indexing every file whose extension is in extFilter (all files when
// extFilter is empty).
func BuildOrOpen(root, dir string, extFilter []string) (Index, error) {
	needsBuild, err := isEmptyOrMissingDir(dir)
	if err != nil {
		return nil, err
	}

	cfg := bluge.DefaultConfig(dir)
	writer, err := bluge.OpenWriter(cfg)
	if err != nil {
		return nil, err
	}

	if needsBuild {
		if err := populate(writer, root, extFilter); err != nil {
			_ = writer.Close()
			return nil, err
		}
	}

	reader, err := writer.Reader()
	if err != nil {
		_ = writer.Close()
		return nil, err
	}

	return &blugeIndex{root: root, reader: reader, writer: writer}, nil
}

func isEmptyOrMissingDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

func populate(writer *bluge.Writer, root string, extFilter []string) error {
	filterSet := make(map[string]bool, len(extFilter))
	for _, e := range extFilter {
		filterSet[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if len(filterSet) > 0 {
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
			if !filterSet[ext] {
				return nil
			}
		}

		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}

		doc := bluge.NewDocument(rel)
		doc.AddField(bluge.NewTextField("body", string(raw)).StoreValue())
		if batchErr := writer.Update(doc.ID(), doc); batchErr != nil {
			return nil
		}
		return nil
	})
}

func (idx *blugeIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	q := bluge.NewMatchQuery(query).SetField("body")
	req := bluge.NewTopNSearch(limit, q)

	matches, err := idx.reader.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	var out []string
	match, err := matches.Next()
	for err == nil && match != nil {
		out = append(out, match.ID)
		if len(out) >= limit {
			break
		}
		match, err = matches.Next()
	}
	return out, nil
}

func (idx *blugeIndex) Close() error {
	if idx.reader != nil {
		_ = idx.reader.Close()
	}
	if idx.writer != nil {
		return idx.writer.Close()
	}
	return nil
}
