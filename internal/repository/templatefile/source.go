package templatefile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kailas-cloud/sieve/internal/domain/template"
)

// Source serves templates loaded from a file or from every template file
// of a directory. Reload swaps the whole set atomically.
type Source struct {
	path  string
	isDir bool

	mu        sync.RWMutex
	files     []File
	templates map[int64]template.Template
}

// NewSource loads templates from path.
func NewSource(path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	s := &Source{path: path, isDir: info.IsDir()}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the watched file or directory.
func (s *Source) Path() string { return s.path }

// IsDir reports whether the source is a directory of template files.
func (s *Source) IsDir() bool { return s.isDir }

// Reload re-reads every file. On error the previous set stays in place.
func (s *Source) Reload() error {
	paths, err := s.filePaths()
	if err != nil {
		return err
	}

	files := make([]File, 0, len(paths))
	byID := make(map[int64]template.Template)
	owner := make(map[int64]string)
	for _, p := range paths {
		f, err := Load(p)
		if err != nil {
			return err
		}
		for _, t := range f.Templates {
			if prev, dup := owner[t.ID()]; dup {
				return fmt.Errorf("template id %d defined in %s and %s", t.ID(), prev, p)
			}
			owner[t.ID()] = p
			byID[t.ID()] = t
		}
		files = append(files, f)
	}

	s.mu.Lock()
	s.files = files
	s.templates = byID
	s.mu.Unlock()
	return nil
}

func (s *Source) filePaths() ([]string, error) {
	if !s.isDir {
		return []string{s.path}, nil
	}
	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", s.path, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(s.path, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Templates returns the templates with the given ids in id order; unknown
// ids are ignored.
func (s *Source) Templates(_ context.Context, ids []int64) ([]template.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]template.Template, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.templates[id]; ok {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// ListTemplates returns every loaded template in id order.
func (s *Source) ListTemplates(_ context.Context) ([]template.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]template.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// Files returns the parsed files of the last successful load.
func (s *Source) Files() []File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]File(nil), s.files...)
}
