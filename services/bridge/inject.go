// Package bridge rewrites a package's entry document so the content inside it
// can reach the runtime endpoints.
package bridge

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"

	"coursebridge/apperr"

	"golang.org/x/net/html"
)

// InjectFile inserts the shim before the closing head tag of the document at
// path. A document that already carries the shim is left untouched.
func InjectFile(path string, opts Options) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return apperr.Storage(err, "read entry document")
	}
	out, changed, err := Inject(src, opts)
	if err != nil || !changed {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return apperr.Storage(err, "stat entry document")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return apperr.Storage(err, "write entry document")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return apperr.Storage(err, "write entry document")
	}
	if err := tmp.Close(); err != nil {
		return apperr.Storage(err, "write entry document")
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return apperr.Storage(err, "write entry document")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperr.Storage(err, "replace entry document")
	}
	return nil
}

// Inject returns src with the shim inserted immediately before the first
// closing head tag. changed is false when the shim is already present.
func Inject(src []byte, opts Options) (out []byte, changed bool, err error) {
	if bytes.Contains(src, []byte(Marker)) {
		return src, false, nil
	}

	offset, err := headCloseOffset(src)
	if err != nil {
		return nil, false, err
	}

	shim, err := Render(opts)
	if err != nil {
		return nil, false, err
	}

	out = make([]byte, 0, len(src)+len(shim))
	out = append(out, src[:offset]...)
	out = append(out, shim...)
	out = append(out, src[offset:]...)
	return out, true, nil
}

// headCloseOffset finds the byte offset of the first </head> token, skipping
// look-alikes inside comments and scripts.
func headCloseOffset(src []byte) (int, error) {
	z := html.NewTokenizer(bytes.NewReader(src))
	offset := 0
	for {
		tt := z.Next()
		raw := z.Raw()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return 0, apperr.Validation("package invalid: entry document has no </head>")
			}
			return 0, apperr.Validation("package invalid: entry document is not readable html")
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "head" {
				return offset, nil
			}
		}
		offset += len(raw)
	}
}
