package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/plinth-dev/plinth/internal/domain"
)

// FileService reads the shared files directory, typically a mounted
// volume. All operations work on the directory's top level only.
type FileService struct {
	dir string
}

// NewFileService creates a FileService over dir. The directory is not
// required to exist yet; each call checks for it.
func NewFileService(dir string) *FileService {
	return &FileService{dir: dir}
}

// Dir returns the configured directory.
func (s *FileService) Dir() string {
	return s.dir
}

// ListTxtFiles returns the names of all .txt files, sorted.
func (s *FileService) ListTxtFiles() ([]string, error) {
	return s.ListByExtension("txt")
}

// ListByExtension returns the names of files with the given extension,
// sorted. The extension is matched case-insensitively and may be given
// with or without a leading dot.
func (s *FileService) ListByExtension(ext string) ([]string, error) {
	entries, err := s.readDir()
	if err != nil {
		return nil, err
	}
	suffix := "." + normalizeExt(ext)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), suffix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Extensions returns the distinct file extensions present, sorted and
// without the leading dot. Files without an extension are skipped.
func (s *FileService) Extensions() ([]string, error) {
	entries, err := s.readDir()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(entry.Name())), ".")
		if ext == "" {
			continue
		}
		seen[ext] = struct{}{}
	}

	exts := make([]string, 0, len(seen))
	for ext := range seen {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts, nil
}

// Count returns the number of regular files in the directory.
func (s *FileService) Count() (int, error) {
	entries, err := s.readDir()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			n++
		}
	}
	return n, nil
}

// ReadTxtFiles returns the contents of every .txt file keyed by name.
func (s *FileService) ReadTxtFiles() (map[string]string, error) {
	return s.ReadByExtension("txt")
}

// ReadByExtension returns the contents of every file with the given
// extension, keyed by name.
func (s *FileService) ReadByExtension(ext string) (map[string]string, error) {
	names, err := s.ListByExtension(ext)
	if err != nil {
		return nil, err
	}

	files := make(map[string]string, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		files[name] = string(data)
	}
	return files, nil
}

func (s *FileService) readDir() ([]os.DirEntry, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: mount path %s", domain.ErrNotFound, s.dir)
		}
		return nil, fmt.Errorf("read files directory: %w", err)
	}
	return entries, nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimLeft(ext, "."))
}
