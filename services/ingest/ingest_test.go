package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"coursebridge/apperr"
	"coursebridge/database/dbtest"
	"coursebridge/models/learning"
	"coursebridge/services/bridge"
	"coursebridge/services/ingest/ingesttest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newIngestor(t *testing.T) (*Ingestor, *gorm.DB) {
	db := dbtest.New(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewIngestor(db, t.TempDir(), bridge.Options{}, logger), db
}

func meta() Metadata {
	return Metadata{OrganizationID: 1, CreatedBy: 2, Title: "Safety basics", Tags: []string{"safety"}}
}

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func TestIngestValidPackage(t *testing.T) {
	ing, db := newIngestor(t)
	archive := ingesttest.WriteZip(t, ingesttest.Course())

	pkg, err := ing.Ingest(context.Background(), archive, meta())
	require.NoError(t, err)
	assert.Equal(t, learning.PackageDraft, pkg.Status)
	assert.Equal(t, "index.html", pkg.EntryPoint)
	assert.NotEmpty(t, pkg.StoragePath)

	root := filepath.Join(ing.UploadDir(), pkg.StoragePath)
	entry, err := os.ReadFile(filepath.Join(root, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(entry), bridge.Marker)
	assert.FileExists(t, filepath.Join(root, "assets", "app.js"))

	var stored learning.ContentPackage
	require.NoError(t, db.First(&stored, pkg.ID).Error)
	assert.Equal(t, []string{"safety"}, []string(stored.Tags))
}

func TestIngestNestedEntryPoint(t *testing.T) {
	ing, _ := newIngestor(t)
	archive := ingesttest.WriteZip(t, map[string]string{
		"imsmanifest.xml":    ingesttest.Manifest("content/start.html?lang=en"),
		"content/start.html": ingesttest.Page,
		"content/style.css":  "body{}",
	})

	pkg, err := ing.Ingest(context.Background(), archive, meta())
	require.NoError(t, err)
	assert.Equal(t, "content/start.html", pkg.EntryPoint)
}

func TestIngestFailuresLeaveNothingBehind(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		kind  apperr.Kind
	}{
		{"missing manifest", map[string]string{"index.html": ingesttest.Page}, apperr.KindValidation},
		{"manifest without resource", map[string]string{
			"imsmanifest.xml": `<manifest><resources></resources></manifest>`,
			"index.html":      ingesttest.Page,
		}, apperr.KindValidation},
		{"entry missing from archive", map[string]string{
			"imsmanifest.xml": ingesttest.Manifest("index.html"),
		}, apperr.KindValidation},
		{"entry without head", map[string]string{
			"imsmanifest.xml": ingesttest.Manifest("index.html"),
			"index.html":      "<html><body>x</body></html>",
		}, apperr.KindValidation},
		{"zip slip", map[string]string{
			"imsmanifest.xml": ingesttest.Manifest("index.html"),
			"index.html":      ingesttest.Page,
			"../../evil.html": "x",
		}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing, db := newIngestor(t)
			archive := ingesttest.WriteZip(t, tt.files)

			_, err := ing.Ingest(context.Background(), archive, meta())
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Empty(t, dirEntries(t, ing.UploadDir()))

			var n int64
			require.NoError(t, db.Model(&learning.ContentPackage{}).Count(&n).Error)
			assert.Zero(t, n)
		})
	}
}

func TestIngestNotAZip(t *testing.T) {
	ing, _ := newIngestor(t)
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := ing.Ingest(context.Background(), path, meta())
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "not a readable zip")
	assert.Empty(t, dirEntries(t, ing.UploadDir()))
}

func TestIngestInvalidMetadata(t *testing.T) {
	ing, _ := newIngestor(t)
	archive := ingesttest.WriteZip(t, ingesttest.Course())

	m := meta()
	m.Title = " "
	m.Status = "ARCHIVED"
	_, err := ing.Ingest(context.Background(), archive, m)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "Title")
	assert.Contains(t, err.Error(), "Status")
}

func TestIngestAcceptsShortTitle(t *testing.T) {
	ing, _ := newIngestor(t)
	archive := ingesttest.WriteZip(t, ingesttest.Course())

	m := meta()
	m.Title = "AI"
	pkg, err := ing.Ingest(context.Background(), archive, m)
	require.NoError(t, err)
	assert.Equal(t, "AI", pkg.Title)
}

func TestPoolRunsJobs(t *testing.T) {
	ing, db := newIngestor(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := NewPool(ing, db, 2, 8, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	good := ingesttest.WriteZip(t, ingesttest.Course())
	bad := ingesttest.WriteZip(t, map[string]string{"index.html": ingesttest.Page})

	okJob, err := pool.Submit(ctx, good, meta())
	require.NoError(t, err)
	assert.Equal(t, learning.JobPending, okJob.Status)
	badJob, err := pool.Submit(ctx, bad, meta())
	require.NoError(t, err)

	waitFor := func(id string) *learning.IngestJob {
		var job *learning.IngestJob
		require.Eventually(t, func() bool {
			j, err := pool.Job(ctx, id)
			if err != nil || j.Status == learning.JobPending {
				return false
			}
			job = j
			return true
		}, 5*time.Second, 20*time.Millisecond)
		return job
	}

	done := waitFor(okJob.ID)
	assert.Equal(t, learning.JobSucceeded, done.Status)
	require.NotNil(t, done.ContentPackageID)
	assert.NoFileExists(t, good)

	failed := waitFor(badJob.ID)
	assert.Equal(t, learning.JobFailed, failed.Status)
	assert.Contains(t, failed.Error, ManifestName)
	assert.Nil(t, failed.ContentPackageID)

	var n int64
	require.NoError(t, db.Model(&learning.ContentPackage{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	_, err = pool.Job(ctx, "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	cancel()
	pool.Stop()
}

func TestPoolRejectsInvalidMetadataUpFront(t *testing.T) {
	ing, db := newIngestor(t)
	pool := NewPool(ing, db, 1, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := pool.Submit(context.Background(), "unused.zip", Metadata{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
