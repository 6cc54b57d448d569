package markup

import (
	"testing"

	"github.com/emrgen/wikinote/internal/apperr"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoldmark_Render(t *testing.T) {
	r := NewGoldmark()

	out, err := r.Render("# Title\n\nsome *text*", model.MarkupWiki)
	require.NoError(t, err)
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<em>text</em>")

	out, err = r.Render("<p>raw</p>", model.MarkupHTML)
	require.NoError(t, err)
	assert.Equal(t, "<p>raw</p>", out)

	_, err = r.Render("x", model.Markup("TEX"))
	assert.ErrorIs(t, err, apperr.ErrRender)
}

func TestFallback(t *testing.T) {
	assert.Equal(t, "<pre>a &lt;b&gt;</pre>", Fallback("a <b>"))
}
