package bridge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coursebridge/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html>
<html>
<HEAD>
  <title>Lesson</title>
  <!-- </head> in a comment -->
  <script>var s = "</he" + "ad>";</script>
</HEAD>
<body><p>hello</p></body>
</html>`

func TestInjectBeforeHeadClose(t *testing.T) {
	out, changed, err := Inject([]byte(page), Options{RuntimeBasePath: "/api/runtime"})
	require.NoError(t, err)
	assert.True(t, changed)

	s := string(out)
	shimAt := strings.Index(s, Marker)
	closeAt := strings.Index(s, "</HEAD>")
	require.Positive(t, shimAt)
	assert.Less(t, shimAt, closeAt)
	// the comment and inline script stay ahead of the shim
	assert.Less(t, strings.Index(s, "<!-- </head>"), shimAt)
	assert.Contains(t, s, `"/api/runtime"`)
	assert.Contains(t, s, `.get("rid")`)
	for _, op := range []string{"Initialize", "GetValue", "SetValue", "Commit", "Finish"} {
		assert.Contains(t, s, op+":")
	}
	// untouched around the insertion point
	assert.True(t, strings.HasPrefix(s, "<!DOCTYPE html>"))
	assert.True(t, strings.HasSuffix(s, "</html>"))
}

func TestInjectIsIdempotent(t *testing.T) {
	once, _, err := Inject([]byte(page), Options{})
	require.NoError(t, err)
	twice, changed, err := Inject(once, Options{})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, once, twice)
}

func TestInjectWithoutHead(t *testing.T) {
	_, _, err := Inject([]byte("<html><body>no head</body></html>"), Options{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestInjectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(path, []byte(page), 0o644))

	require.NoError(t, InjectFile(path, Options{}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), Marker)

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	err = InjectFile(filepath.Join(dir, "missing.html"), Options{})
	assert.ErrorIs(t, err, apperr.ErrStorage)
}

func TestRenderDefaults(t *testing.T) {
	b, err := Render(Options{})
	require.NoError(t, err)
	s := string(b)
	assert.Contains(t, s, `"/runtime"`)
	assert.Contains(t, s, `.get("rid")`)
	assert.Contains(t, s, "API_1484_11")
}
