package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery resolves source paths and glob patterns against a base directory
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

// BasePath returns the directory relative paths are resolved against
func (d *Discovery) BasePath() string {
	return d.basePath
}

// Resolve returns path unchanged when absolute, otherwise joined to the base path
func (d *Discovery) Resolve(path string) string {
	if filepath.IsAbs(path) || d.basePath == "" {
		return path
	}
	return filepath.Join(d.basePath, path)
}

// FindFilesByPattern returns the regular files matching a glob pattern,
// sorted by name so that every run reads sources in the same order.
// A pattern without glob metacharacters must name an existing file.
func (d *Discovery) FindFilesByPattern(pattern string) ([]FileInfo, error) {
	searchPattern := d.Resolve(pattern)

	if !hasMeta(searchPattern) {
		info, err := os.Stat(searchPattern)
		if err != nil {
			return nil, fmt.Errorf("source file %s: %w", searchPattern, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("source path %s is a directory", searchPattern)
		}
		return []FileInfo{toFileInfo(searchPattern, info)}, nil
	}

	matches, err := filepath.Glob(searchPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
	}

	var files []FileInfo
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		if strings.HasPrefix(filepath.Base(match), "~$") {
			// Excel lock file
			continue
		}
		files = append(files, toFileInfo(match, info))
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}

func toFileInfo(path string, info os.FileInfo) FileInfo {
	return FileInfo{
		Path:    path,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, "*?[")
}
