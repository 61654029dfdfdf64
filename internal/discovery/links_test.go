package discovery

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipeLinks(t *testing.T) {
	base, err := url.Parse("https://marleyspoon.de")
	require.NoError(t, err)

	tests := []struct {
		name string
		html string
		want []string
	}{
		{
			name: "bare menu path excluded",
			html: `<a href="/menu/a">A</a><a href="/menu/">Menu</a><a href="/menu/b">B</a>`,
			want: []string{"https://marleyspoon.de/menu/a", "https://marleyspoon.de/menu/b"},
		},
		{
			name: "duplicates keep first position",
			html: `<a href="/menu/b">B</a><a href="/menu/a">A</a><a href="https://marleyspoon.de/menu/b">B again</a>`,
			want: []string{"https://marleyspoon.de/menu/b", "https://marleyspoon.de/menu/a"},
		},
		{
			name: "absolute links kept as-is",
			html: `<a href="https://marleyspoon.de/menu/12345-pasta">P</a>`,
			want: []string{"https://marleyspoon.de/menu/12345-pasta"},
		},
		{
			name: "unrelated links ignored",
			html: `<a href="/about">About</a><a href="/menu">Menu</a><a>no href</a><a href="mailto:x@y.de">Mail</a>`,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RecipeLinks(tt.html, base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
