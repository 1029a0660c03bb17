package template

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icubam/icubam/internal/shared/logger"
	"github.com/icubam/icubam/internal/shared/services/markdown"
)

func TestPageLoader_LoadsPagesAndDisclaimer(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "disclaimer.md")
	require.NoError(t, os.WriteFile(p, []byte("Figures are **self-reported**."), 0o600))

	l := NewPageLoader(p, markdown.NewRenderer(), logger.NewNop())
	require.NoError(t, l.Load())

	assert.True(t, l.HasPage(PageHome))
	assert.True(t, l.HasPage(PageUpdate))
	assert.Contains(t, string(l.Disclaimer()), "<strong>self-reported</strong>")

	var buf bytes.Buffer
	require.NoError(t, l.Render(&buf, PageHome, map[string]interface{}{"Disclaimer": l.Disclaimer()}))
	assert.Contains(t, buf.String(), "<strong>self-reported</strong>")
}

func TestPageLoader_MissingDisclaimer(t *testing.T) {
	l := NewPageLoader(filepath.Join(t.TempDir(), "absent.md"), markdown.NewRenderer(), logger.NewNop())
	require.NoError(t, l.Load())
	assert.Empty(t, l.Disclaimer())
}

func TestPageLoader_UnknownPage(t *testing.T) {
	l := NewPageLoader("", markdown.NewRenderer(), logger.NewNop())
	require.NoError(t, l.Load())
	assert.Error(t, l.Render(&bytes.Buffer{}, "nope", nil))
}
