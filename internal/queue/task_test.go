package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTaskValidate(t *testing.T) {
	t.Parallel()

	valid := Task{ID: "1", URL: "https://example.com/post"}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name string
		task Task
	}{
		{"missing id", Task{URL: "https://example.com"}},
		{"missing url", Task{ID: "1"}},
		{"relative url", Task{ID: "1", URL: "/just/a/path"}},
		{"no host", Task{ID: "1", URL: "https://"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.task.Validate()
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestParsedCreatedAt(t *testing.T) {
	t.Parallel()

	fallback := time.Unix(1700000000, 0).UTC()

	ts := Task{CreatedAt: "2024-07-20T12:30:00Z"}.ParsedCreatedAt(fallback)
	require.Equal(t, time.Date(2024, 7, 20, 12, 30, 0, 0, time.UTC), ts)

	require.Equal(t, fallback, Task{}.ParsedCreatedAt(fallback))
	require.Equal(t, fallback, Task{CreatedAt: "yesterday"}.ParsedCreatedAt(fallback))
}
