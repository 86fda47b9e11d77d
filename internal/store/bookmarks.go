package store

import "time"

// Aspect-ratio presentation mapping: stored ratios in [0.5, 2.0] map linearly
// onto [1.0, 1.5]; out-of-domain inputs clamp to the nearest bound first.
const (
	aspectMinInput  = 0.5
	aspectMaxInput  = 2.0
	aspectMinOutput = 1.0
	aspectMaxOutput = 1.5
)

// MapAspectRatio converts a stored aspect ratio into its presentation value.
func MapAspectRatio(ratio float64) float64 {
	clamped := ratio
	if clamped < aspectMinInput {
		clamped = aspectMinInput
	}
	if clamped > aspectMaxInput {
		clamped = aspectMaxInput
	}
	return aspectMinOutput + (clamped-aspectMinInput)*(aspectMaxOutput-aspectMinOutput)/(aspectMaxInput-aspectMinInput)
}

// BookmarkView is the listing projection of an Article. Summary and
// AspectRatio are only populated for the detailed projection.
type BookmarkView struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
	CoverURL    string    `json:"cover_url"`
	Summary     string    `json:"summary,omitempty"`
	AspectRatio *float64  `json:"aspect_ratio,omitempty"`
}

// View projects the article for listing responses.
func (a Article) View(detailed bool) BookmarkView {
	v := BookmarkView{
		URL:       a.URL,
		Title:     a.Title,
		CreatedAt: a.CreatedAt,
		CoverURL:  a.CoverURL,
	}
	if !detailed {
		return v
	}
	v.Summary = a.Summary
	if a.AspectRatio != nil {
		mapped := MapAspectRatio(*a.AspectRatio)
		v.AspectRatio = &mapped
	}
	return v
}
