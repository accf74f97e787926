package main

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode"
)

type ImagePath struct {
	Path        string // Local file path or archive:entry format
	ArchivePath string // Empty for regular files, path to archive for entries
	EntryPath   string // Empty for regular files, path within archive for entries
}

// DisplayName returns the name shown to the user for this entry
func (p ImagePath) DisplayName() string {
	if p.ArchivePath != "" {
		return p.EntryPath
	}
	return filepath.Base(p.Path)
}

func isArchiveExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".zip", ".rar", ".7z":
		return true
	default:
		return false
	}
}

func isSupportedExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp", ".bmp", ".gif":
		return true
	default:
		return false
	}
}

// DirectoryIndex is an immutable, ordered view of the images in one folder
// (or one archive). A rescan builds a new index.
type DirectoryIndex struct {
	source    string
	paths     []ImagePath
	positions map[string]int
}

func newDirectoryIndex(source string, paths []ImagePath) *DirectoryIndex {
	positions := make(map[string]int, len(paths))
	for i, p := range paths {
		positions[p.Path] = i
	}
	return &DirectoryIndex{
		source:    source,
		paths:     paths,
		positions: positions,
	}
}

// BuildDirectoryIndex lists the image files of folder in strategy order.
// Entries that cannot be inspected are skipped; failing to list the folder
// itself is an IoError.
func BuildDirectoryIndex(folder string, strategy SortStrategy) (*DirectoryIndex, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, &IoError{Path: folder, Err: err}
	}

	var images []ImagePath
	for _, entry := range entries {
		if entry.IsDir() {
			continue // Skip directories
		}

		fullPath := filepath.Join(folder, entry.Name())
		if !isSupportedExt(fullPath) {
			continue
		}

		// Follow symlinks; dangling or unreadable entries are skipped
		info, err := os.Stat(fullPath)
		if err != nil {
			debugLog("Skipping unreadable entry %s: %v", fullPath, err)
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		images = append(images, ImagePath{Path: fullPath})
	}

	return newDirectoryIndex(folder, strategy.Sort(images)), nil
}

// BuildArchiveIndex lists the image entries of a zip, rar or 7z archive as a
// virtual folder.
func BuildArchiveIndex(archivePath string, strategy SortStrategy) (*DirectoryIndex, error) {
	var images []ImagePath
	var err error

	ext := strings.ToLower(filepath.Ext(archivePath))
	switch ext {
	case ".zip":
		images, err = extractImagesFromZip(archivePath)
	case ".rar":
		images, err = extractImagesFromRar(archivePath)
	case ".7z":
		images, err = extractImagesFrom7z(archivePath)
	default:
		return nil, fmt.Errorf("unsupported archive format: %s", ext)
	}
	if err != nil {
		return nil, &IoError{Path: archivePath, Err: err}
	}

	return newDirectoryIndex(archivePath, strategy.Sort(images)), nil
}

// BuildIndexFromTarget opens whatever the user pointed at: a folder, an
// archive, or a single image whose folder is browsed starting at that image.
// It returns the index and the starting position.
func BuildIndexFromTarget(target string, strategy SortStrategy) (*DirectoryIndex, int, error) {
	target = filepath.Clean(target)
	info, err := os.Stat(target)
	if err != nil {
		return nil, 0, &IoError{Path: target, Err: err}
	}

	switch {
	case info.IsDir():
		index, err := BuildDirectoryIndex(target, strategy)
		return index, 0, err
	case isArchiveExt(target):
		index, err := BuildArchiveIndex(target, strategy)
		return index, 0, err
	case isSupportedExt(target):
		index, err := BuildDirectoryIndex(filepath.Dir(target), strategy)
		if err != nil {
			return nil, 0, err
		}
		start, err := index.Locate(target)
		if err != nil {
			start = 0
		}
		return index, start, nil
	default:
		return nil, 0, fmt.Errorf("%s is not an image, archive or folder", target)
	}
}

// Source returns the folder or archive the index was built from
func (d *DirectoryIndex) Source() string {
	return d.source
}

// IsArchive reports whether the index is a virtual folder inside an archive
func (d *DirectoryIndex) IsArchive() bool {
	return isArchiveExt(d.source)
}

func (d *DirectoryIndex) Len() int {
	return len(d.paths)
}

// At returns the entry at index i
func (d *DirectoryIndex) At(i int) (ImagePath, bool) {
	if i < 0 || i >= len(d.paths) {
		return ImagePath{}, false
	}
	return d.paths[i], true
}

// Paths returns a copy of the ordered entries
func (d *DirectoryIndex) Paths() []ImagePath {
	out := make([]ImagePath, len(d.paths))
	copy(out, d.paths)
	return out
}

// Locate returns the position of path in the ordering
func (d *DirectoryIndex) Locate(path string) (int, error) {
	if idx, ok := d.positions[path]; ok {
		return idx, nil
	}
	if idx, ok := d.positions[filepath.Clean(path)]; ok {
		return idx, nil
	}
	return -1, ErrNotFound
}

// Navigate moves delta positions from index. With wrap, moving past either
// end continues from the other end; without it the move fails with
// ErrNotFound and nothing changes.
func (d *DirectoryIndex) Navigate(index, delta int, wrap bool) (int, error) {
	n := len(d.paths)
	if n == 0 || index < 0 || index >= n {
		return -1, ErrNotFound
	}

	target := index + delta
	if target >= 0 && target < n {
		return target, nil
	}
	if !wrap {
		return -1, ErrNotFound
	}
	return ((target % n) + n) % n, nil
}

// Archive enumeration

func extractImagesFromZip(archivePath string) ([]ImagePath, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var images []ImagePath
	for _, f := range r.File {
		if !f.FileInfo().IsDir() && isSupportedExt(f.Name) {
			images = append(images, archiveEntry(archivePath, f.Name))
		}
	}
	return images, nil
}

func extractImagesFromRar(archivePath string) ([]ImagePath, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := rardecode.NewReader(f, "")
	if err != nil {
		return nil, err
	}

	var images []ImagePath
	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if !header.IsDir && isSupportedExt(header.Name) {
			images = append(images, archiveEntry(archivePath, header.Name))
		}
	}
	return images, nil
}

func extractImagesFrom7z(archivePath string) ([]ImagePath, error) {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var images []ImagePath
	for _, f := range r.File {
		if !f.FileInfo().IsDir() && isSupportedExt(f.Name) {
			images = append(images, archiveEntry(archivePath, f.Name))
		}
	}
	return images, nil
}

func archiveEntry(archivePath, entryPath string) ImagePath {
	return ImagePath{
		Path:        archivePath + ":" + entryPath,
		ArchivePath: archivePath,
		EntryPath:   entryPath,
	}
}
