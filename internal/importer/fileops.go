package importer

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// PlaceOptions control how a file enters the library.
type PlaceOptions struct {
	// Hardlink links instead of copying when source and destination are
	// on the same filesystem. Failure falls back to copy.
	Hardlink bool
	// Move renames the source away. Cross-device renames fall back to
	// copy then delete.
	Move bool
}

// placeFile puts src at dst. Priority: hardlink, move, copy. Every
// failure path degrades to copy so an import always makes progress.
// The destination parent is created before the same-device check because
// the check stats that parent.
func placeFile(src, dst string, opts PlaceOptions) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("%w: create directory: %v", ErrPlaceFailed, err)
	}

	if opts.Hardlink && sameDevice(src, filepath.Dir(dst)) {
		if err := os.Link(src, dst); err == nil {
			fi, err := os.Stat(dst)
			if err != nil {
				return 0, fmt.Errorf("%w: stat link: %v", ErrPlaceFailed, err)
			}
			return fi.Size(), nil
		}
		// Hardlink refused (permissions, filesystem quirks): copy instead.
	}

	if opts.Move {
		if err := os.Rename(src, dst); err == nil {
			fi, err := os.Stat(dst)
			if err != nil {
				return 0, fmt.Errorf("%w: stat moved file: %v", ErrPlaceFailed, err)
			}
			return fi.Size(), nil
		}
		size, err := copyFile(src, dst)
		if err != nil {
			return 0, err
		}
		if err := os.Remove(src); err != nil {
			return 0, fmt.Errorf("%w: remove source after copy: %v", ErrPlaceFailed, err)
		}
		return size, nil
	}

	return copyFile(src, dst)
}

// sameDevice reports whether two paths live on the same filesystem,
// compared by stat device number.
func sameDevice(a, b string) bool {
	sa, err := os.Stat(a)
	if err != nil {
		return false
	}
	sb, err := os.Stat(b)
	if err != nil {
		return false
	}
	statA, okA := sa.Sys().(*syscall.Stat_t)
	statB, okB := sb.Sys().(*syscall.Stat_t)
	return okA && okB && statA.Dev == statB.Dev
}

func copyFile(src, dst string) (int64, error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("%w: open source: %v", ErrPlaceFailed, err)
	}
	defer func() { _ = srcFile.Close() }()

	dstFile, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("%w: create destination: %v", ErrPlaceFailed, err)
	}
	defer func() { _ = dstFile.Close() }()

	size, err := io.Copy(dstFile, srcFile)
	if err != nil {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("%w: copy content: %v", ErrPlaceFailed, err)
	}
	if err := dstFile.Sync(); err != nil {
		return 0, fmt.Errorf("%w: sync: %v", ErrPlaceFailed, err)
	}
	return size, nil
}

// collectFiles returns the regular files rooted at path: the path itself
// when it is a file, a recursive walk when it is a directory.
func collectFiles(path string) ([]string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", path, err)
	}
	return files, nil
}

// uniquify inserts a timestamp before the extension so a conflicting
// destination never blocks an import.
func uniquify(rel string) string {
	ext := filepath.Ext(rel)
	stem := rel[:len(rel)-len(ext)]
	return fmt.Sprintf("%s.%s%s", stem, time.Now().Format("20060102150405"), ext)
}
