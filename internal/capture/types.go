// Package capture orchestrates the capture workflow: navigate a URL with a
// leased browser session, read the rendered DOM, and produce a stored
// screenshot cover image.
package capture

import (
	"time"

	"github.com/advx24/snapmark/internal/store"
)

// Result is the outcome of one full capture. It is transient: consumers
// persist it as an article immediately or drop it.
type Result struct {
	URL       string    `json:"url"`
	RawHTML   string    `json:"raw_html"`
	Content   string    `json:"content"`
	Title     string    `json:"title"`
	CoverURL  string    `json:"cover_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Article converts the result into a persistable article row.
func (r Result) Article() store.Article {
	return store.Article{
		URL:       r.URL,
		RawHTML:   r.RawHTML,
		Content:   r.Content,
		Title:     r.Title,
		CoverURL:  r.CoverURL,
		CreatedAt: r.CreatedAt,
	}
}

// PageSnapshot holds the rendered DOM reads from one navigation.
type PageSnapshot struct {
	Title string
	Text  string
	HTML  string
}
