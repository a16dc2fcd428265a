package ingest

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"coursebridge/apperr"
)

// Extract unpacks the zip at archivePath into dest, preserving its tree.
// Entries that would land outside dest are rejected.
func Extract(archivePath, dest string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return apperr.Validation("package invalid: archive is not a readable zip")
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return apperr.Storage(err, "create package directory")
	}
	root := filepath.Clean(dest) + string(os.PathSeparator)

	for _, f := range r.File {
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if target == filepath.Clean(dest) {
			continue
		}
		if !strings.HasPrefix(target, root) {
			return apperr.Validation("package invalid: entry %q escapes the archive root", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return apperr.Storage(err, "create directory %s", f.Name)
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return apperr.Storage(err, "create directory for %s", f.Name)
	}
	src, err := f.Open()
	if err != nil {
		return apperr.Validation("package invalid: cannot read %q", f.Name)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return apperr.Storage(err, "create %s", f.Name)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return apperr.Storage(fmt.Errorf("copy %s: %w", f.Name, err), "extract package")
	}
	if err := dst.Close(); err != nil {
		return apperr.Storage(err, "close %s", f.Name)
	}
	return nil
}
