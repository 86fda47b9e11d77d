package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/advx24/snapmark/internal/browser"
	"github.com/advx24/snapmark/internal/enrich"
	"github.com/advx24/snapmark/internal/queue"
	"github.com/advx24/snapmark/internal/store"
)

func (s *Server) captureScreenshot(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		s.writeError(w, http.StatusBadRequest, "url query parameter required")
		return
	}
	coverURL, err := s.capturer.Screenshot(r.Context(), url)
	if err != nil {
		s.writeError(w, captureStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"cover_url": coverURL})
}

func (s *Server) captureText(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		s.writeError(w, http.StatusBadRequest, "url query parameter required")
		return
	}
	content, err := s.capturer.ExtractText(r.Context(), url)
	if err != nil {
		s.writeError(w, captureStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

// captureInfo runs a full capture and persists the result synchronously. A
// URL that was captured before reports "already exists" rather than an error.
func (s *Server) captureInfo(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		s.writeError(w, http.StatusBadRequest, "url query parameter required")
		return
	}
	result, err := s.capturer.Capture(r.Context(), url)
	if err != nil {
		s.writeError(w, captureStatus(err), err.Error())
		return
	}
	saved, err := s.articles.Save(r.Context(), result.Article())
	switch {
	case errors.Is(err, store.ErrDuplicateURL):
		s.writeError(w, http.StatusConflict, "already exists")
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.notify(r.Context())
	s.writeJSON(w, http.StatusCreated, saved)
}

func captureStatus(err error) int {
	if errors.Is(err, browser.ErrResourceExhausted) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type bookmarkRequest struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	RawHTML   string `json:"raw_html,omitempty"`
	Content   string `json:"content,omitempty"`
}

type bookmarkOutcome struct {
	URL    string `json:"url"`
	Status string `json:"status"`
	TaskID string `json:"taskId,omitempty"`
	Error  string `json:"error,omitempty"`
}

// createBookmarks accepts a data array. Items carrying their own raw_html and
// content are saved directly; thin items are enqueued for the capture
// consumer. Each item succeeds or fails on its own.
func (s *Server) createBookmarks(w http.ResponseWriter, r *http.Request) {
	var items []bookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(items) == 0 {
		s.writeError(w, http.StatusBadRequest, "at least one bookmark required")
		return
	}

	outcomes := make([]bookmarkOutcome, 0, len(items))
	for _, item := range items {
		outcomes = append(outcomes, s.createOne(r, item))
	}
	s.notify(r.Context())
	s.writeJSON(w, http.StatusOK, outcomes)
}

func (s *Server) createOne(r *http.Request, item bookmarkRequest) bookmarkOutcome {
	out := bookmarkOutcome{URL: item.URL}
	if item.URL == "" {
		out.Status = "invalid"
		out.Error = "url is required"
		return out
	}

	if item.RawHTML != "" && item.Content != "" {
		_, err := s.articles.Save(r.Context(), store.Article{
			URL:       item.URL,
			Title:     item.Title,
			RawHTML:   item.RawHTML,
			Content:   item.Content,
			CreatedAt: s.parseCreatedAt(item.CreatedAt),
		})
		switch {
		case errors.Is(err, store.ErrDuplicateURL):
			out.Status = "duplicate"
		case err != nil:
			out.Status = "error"
			out.Error = err.Error()
		default:
			out.Status = "saved"
		}
		return out
	}

	id, err := s.ids.NewID()
	if err != nil {
		out.Status = "error"
		out.Error = err.Error()
		return out
	}
	task := queue.Task{
		ID:        id,
		URL:       item.URL,
		Title:     item.Title,
		CreatedAt: item.CreatedAt,
	}
	if task.CreatedAt == "" {
		task.CreatedAt = s.clock.Now().Format(time.RFC3339)
	}
	if err := s.publisher.Publish(r.Context(), task); err != nil {
		out.Status = "error"
		out.Error = err.Error()
		return out
	}
	out.Status = "queued"
	out.TaskID = id
	return out
}

func (s *Server) parseCreatedAt(raw string) time.Time {
	if raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts
		}
		s.logger.Warn("unparseable created_at, using current time", zap.String("created_at", raw))
	}
	return s.clock.Now()
}

type updateBookmarkRequest struct {
	URL string `json:"url"`
	store.Patch
}

func (s *Server) updateBookmark(w http.ResponseWriter, r *http.Request) {
	var req updateBookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	article, err := s.articles.Update(r.Context(), req.URL, req.Patch)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "bookmark not found")
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.notify(r.Context())
	s.writeJSON(w, http.StatusOK, article)
}

func (s *Server) deleteBookmark(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	article, err := s.articles.SoftDelete(r.Context(), req.URL)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "bookmark not found")
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.notify(r.Context())
	s.writeJSON(w, http.StatusOK, article)
}

// listBookmarks returns the active bookmarks, or, when a query is supplied,
// proxies a similar-articles search to the enrichment service and relays its
// JSON verbatim.
func (s *Server) listBookmarks(w http.ResponseWriter, r *http.Request) {
	if query := r.URL.Query().Get("query"); query != "" {
		s.searchBookmarks(w, r, query)
		return
	}

	detailed := r.URL.Query().Get("detailed") == "true"
	articles, err := s.articles.ListActive(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]store.BookmarkView, 0, len(articles))
	for _, a := range articles {
		views = append(views, a.View(detailed))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) searchBookmarks(w http.ResponseWriter, r *http.Request, query string) {
	if s.search == nil {
		s.writeError(w, http.StatusNotImplemented, "search is not configured")
		return
	}
	body, err := s.search.Search(r.Context(), query)
	var se *enrich.SearchError
	switch {
	case errors.As(err, &se):
		// Relay the upstream status, as the failure belongs to the search
		// service, not this one.
		s.writeError(w, se.Status, "error fetching similar articles")
		return
	case err != nil:
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Error("write search response failed", zap.Error(err))
	}
}

// submitTaskBatch validates every task before enqueuing any, so a malformed
// entry rejects the whole batch without side effects.
func (s *Server) submitTaskBatch(w http.ResponseWriter, r *http.Request) {
	var tasks []queue.Task
	if err := json.NewDecoder(r.Body).Decode(&tasks); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(tasks) == 0 {
		s.writeError(w, http.StatusBadRequest, "at least one task required")
		return
	}
	for i, task := range tasks {
		if err := task.Validate(); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("task %d: %s", i, err))
			return
		}
	}
	for i, task := range tasks {
		if task.CreatedAt == "" {
			task.CreatedAt = s.clock.Now().Format(time.RFC3339)
		}
		if err := s.publisher.Publish(r.Context(), task); err != nil {
			s.writeError(w, http.StatusInternalServerError,
				fmt.Sprintf("enqueued %d of %d tasks: %s", i, len(tasks), err))
			return
		}
	}
	s.writeJSON(w, http.StatusAccepted, map[string]int{"enqueued": len(tasks)})
}

func (s *Server) importURLs(w http.ResponseWriter, r *http.Request) {
	var urls []string
	if err := json.NewDecoder(r.Body).Decode(&urls); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(urls) == 0 {
		s.writeError(w, http.StatusBadRequest, "at least one url required")
		return
	}
	entries := s.importer.Import(r.Context(), urls)
	s.writeJSON(w, http.StatusOK, entries)
}
