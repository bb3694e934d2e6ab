package content

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"Café au Lait!", "cafe-au-lait"},
		{"  spaced   out  ", "spaced-out"},
		{"Über-Größe", "uber-grosse"},
		{"already-slugged", "already-slugged"},
		{"Release v1.2.3", "release-v1-2-3"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Slugify(tc.in), "input %q", tc.in)
	}
}
