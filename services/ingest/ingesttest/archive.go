// Package ingesttest builds courseware archives for tests.
package ingesttest

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Manifest returns a minimal manifest declaring one resource with href.
func Manifest(href string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<manifest identifier="course" version="1.0" xmlns="http://www.imsproject.org/xsd/imscp_rootv1p1p2">
  <organizations default="org">
    <organization identifier="org"><title>Course</title>
      <item identifier="item1" identifierref="res1"><title>Lesson</title></item>
    </organization>
  </organizations>
  <resources>
    <resource identifier="res1" type="webcontent" href="%s">
      <file href="%s"/>
    </resource>
  </resources>
</manifest>`, href, href)
}

// Page is a small entry document with a head.
const Page = `<!DOCTYPE html><html><head><title>Lesson</title></head><body>lesson</body></html>`

// Course returns the files of a valid single-resource package with entry index.html.
func Course() map[string]string {
	return map[string]string{
		"imsmanifest.xml": Manifest("index.html"),
		"index.html":      Page,
		"assets/app.js":   "console.log('lesson')",
	}
}

// WriteZip writes files into a zip inside a temp dir and returns its path.
func WriteZip(t testing.TB, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "course.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}
