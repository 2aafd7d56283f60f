// Package corpus finds the text documents a knowledge base is built from.
package corpus

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/go-enry/go-enry/v2"
	gitignore "github.com/sabhiram/go-gitignore"

	"ragchat/internal/domain"
)

// DefaultIgnoreFile is read from the corpus root when present.
const DefaultIgnoreFile = ".kbignore"

// DefaultExtensions lists the document types picked up when none are configured.
var DefaultExtensions = []string{".md", ".txt"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options controls discovery.
type Options struct {
	// Extensions are matched case-insensitively, with or without the leading dot.
	Extensions []string
	// IgnoreFile is a gitignore-style file name relative to the root.
	IgnoreFile string
	Logger     *slog.Logger
}

// Discover walks root and returns every eligible document sorted by its
// slash-separated relative path. Hidden files and directories are skipped, as
// is content that is binary or not valid UTF-8.
func Discover(root string, opts Options) ([]domain.Document, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, domain.NewError("discover corpus", domain.ErrConfiguration, root, "%v", err)
	}
	if !info.IsDir() {
		return nil, domain.NewError("discover corpus", domain.ErrConfiguration, root, "not a directory")
	}

	exts := normalizeExtensions(opts.Extensions)
	ignore, err := loadIgnore(root, opts.IgnoreFile)
	if err != nil {
		return nil, err
	}

	var docs []domain.Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ignore != nil && ignore.MatchesPath(rel) {
			log.Debug("ignored by rule", "path", rel)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !slices.Contains(exts, strings.ToLower(filepath.Ext(path))) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		data = bytes.TrimPrefix(data, utf8BOM)
		if enry.IsBinary(data) || !utf8.Valid(data) {
			log.Debug("skipping non-text file", "path", rel)
			return nil
		}
		docs = append(docs, domain.Document{
			Path:    path,
			RelPath: rel,
			Name:    filepath.Base(path),
			Content: string(data),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(docs, func(a, b domain.Document) int { return strings.Compare(a.RelPath, b.RelPath) })
	disambiguate(docs)
	log.Debug("corpus discovered", "root", root, "documents", len(docs))
	return docs, nil
}

// disambiguate gives documents whose basename is shared with another document
// their relative path as name.
func disambiguate(docs []domain.Document) {
	seen := make(map[string]int, len(docs))
	for _, d := range docs {
		seen[d.Name]++
	}
	for i := range docs {
		if seen[docs[i].Name] > 1 {
			docs[i].Name = docs[i].RelPath
		}
	}
}

func normalizeExtensions(in []string) []string {
	if len(in) == 0 {
		in = DefaultExtensions
	}
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func loadIgnore(root, name string) (*gitignore.GitIgnore, error) {
	if name == "" {
		name = DefaultIgnoreFile
	}
	path := filepath.Join(root, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	ig, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		return nil, domain.NewError("discover corpus", domain.ErrConfiguration, path, "%v", err)
	}
	return ig, nil
}
