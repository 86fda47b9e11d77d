package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMapAspectRatio(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   float64
		want float64
	}{
		{0.5, 1.0},
		{2.0, 1.5},
		{1.25, 1.25},
		{0.1, 1.0},
		{5.0, 1.5},
	}
	for _, tc := range cases {
		require.InDelta(t, tc.want, MapAspectRatio(tc.in), 1e-9, "input %v", tc.in)
	}
}

func TestViewProjections(t *testing.T) {
	t.Parallel()

	ratio := 1.25
	a := Article{
		URL:         "https://example.com",
		Title:       "Title",
		CoverURL:    "https://pub.example.dev/screenshots/x.jpg",
		Summary:     "summary text",
		AspectRatio: &ratio,
		CreatedAt:   time.Unix(1700000000, 0).UTC(),
	}

	basic := a.View(false)
	require.Equal(t, a.URL, basic.URL)
	require.Empty(t, basic.Summary)
	require.Nil(t, basic.AspectRatio)

	detailed := a.View(true)
	require.Equal(t, "summary text", detailed.Summary)
	require.NotNil(t, detailed.AspectRatio)
	require.InDelta(t, 1.25, *detailed.AspectRatio, 1e-9)
}

func TestViewDetailedWithoutRatio(t *testing.T) {
	t.Parallel()

	a := Article{URL: "https://example.com"}
	v := a.View(true)
	require.Nil(t, v.AspectRatio)
}
