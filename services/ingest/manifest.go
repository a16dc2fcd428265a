package ingest

import (
	"encoding/xml"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"coursebridge/apperr"
)

// ManifestName is the well-known manifest path at the archive root.
const ManifestName = "imsmanifest.xml"

type manifest struct {
	Resources struct {
		Resource []struct {
			Identifier string `xml:"identifier,attr"`
			Href       string `xml:"href,attr"`
		} `xml:"resource"`
	} `xml:"resources"`
}

// ResolveEntryPoint reads the manifest under root and returns the href of the
// first declared resource, relative to root. Only single-resource packages are
// supported; further resources are ignored.
func ResolveEntryPoint(root string) (string, error) {
	f, err := os.Open(filepath.Join(root, ManifestName))
	if errors.Is(err, fs.ErrNotExist) {
		return "", apperr.Validation("package invalid: %s not found at archive root", ManifestName)
	}
	if err != nil {
		return "", apperr.Storage(err, "open manifest")
	}
	defer f.Close()

	var m manifest
	if err := xml.NewDecoder(f).Decode(&m); err != nil {
		return "", apperr.Validation("package invalid: manifest is not valid xml")
	}
	if len(m.Resources.Resource) == 0 {
		return "", apperr.Validation("package invalid: manifest declares no resource")
	}

	href := m.Resources.Resource[0].Href
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return "", apperr.Validation("package invalid: first resource has no href")
	}

	entry := path.Clean(strings.TrimPrefix(href, "/"))
	if entry == "." || strings.HasPrefix(entry, "../") {
		return "", apperr.Validation("package invalid: entry point %q escapes the package", href)
	}
	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(entry)))
	if err != nil || info.IsDir() {
		return "", apperr.Validation("package invalid: entry point %q not found in archive", entry)
	}
	return entry, nil
}
