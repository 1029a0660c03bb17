package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSafeHTML(t *testing.T) {
	r := NewRenderer()

	out, err := r.ToSafeHTML("# Notice\n\nData is **provisional**.<script>alert(1)</script>")
	require.NoError(t, err)
	assert.Contains(t, out, "<h1 id=\"notice\">Notice</h1>")
	assert.Contains(t, out, "<strong>provisional</strong>")
	assert.NotContains(t, out, "<script>")
}

func TestStripTags(t *testing.T) {
	r := NewRenderer()

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"<b>beds</b> ready", "beds ready"},
		{"  <img src=x onerror=alert(1)>Tom &amp; Jerry ", "Tom & Jerry"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, r.StripTags(tt.in))
		})
	}
}
