package importer

import "errors"

var (
	// ErrLibraryTypeMismatch indicates a file's media kind does not fit
	// the target library type. Terminal: retrying cannot fix it.
	ErrLibraryTypeMismatch = errors.New("media kind does not match library type")

	// ErrPlaceFailed indicates the file operation into the library failed.
	ErrPlaceFailed = errors.New("failed to place file")

	// ErrPathTraversal indicates a computed destination would escape the
	// library root.
	ErrPathTraversal = errors.New("path traversal detected")
)
