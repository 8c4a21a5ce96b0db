package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yukawasensei/visual-ai-agent/internal/repository"
)

func TestSegmentStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"video not found", repository.ErrVideoNotFound, http.StatusNotFound},
		{"segment not found", repository.ErrSegmentNotFound, http.StatusNotFound},
		{"invalid range", repository.ErrInvalidRange, http.StatusBadRequest},
		{"overlap", repository.ErrOverlap, http.StatusConflict},
		{"unknown", http.ErrBodyNotAllowed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := segmentStatus(tt.err); got != tt.want {
				t.Errorf("segmentStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRespondPaginatedHeaders(t *testing.T) {
	s := &Server{}
	w := httptest.NewRecorder()
	s.respondPaginated(w, http.StatusOK, Response{Success: true}, 2, 20, 95, "/api/videos")

	if got := w.Header().Get("X-Total-Count"); got != "95" {
		t.Errorf("X-Total-Count = %q, want 95", got)
	}
	link := w.Header().Get("Link")
	for _, rel := range []string{`rel="first"`, `rel="last"`, `rel="next"`, `rel="prev"`} {
		if !strings.Contains(link, rel) {
			t.Errorf("Link header missing %s: %q", rel, link)
		}
	}
	if !strings.Contains(link, "page=5&limit=20>; rel=\"last\"") {
		t.Errorf("last page not computed from total: %q", link)
	}
}

func TestRespondPaginatedKeepsQueryFilter(t *testing.T) {
	s := &Server{}
	w := httptest.NewRecorder()
	s.respondPaginated(w, http.StatusOK, Response{Success: true}, 2, 20, 95, "/api/videos?status=completed")

	link := w.Header().Get("Link")
	if !strings.Contains(link, "/api/videos?status=completed&page=3&limit=20>; rel=\"next\"") {
		t.Errorf("rel pages dropped the status filter: %q", link)
	}
}

func TestRespondPaginatedFirstPageHasNoPrev(t *testing.T) {
	s := &Server{}
	w := httptest.NewRecorder()
	s.respondPaginated(w, http.StatusOK, Response{Success: true}, 1, 20, 10, "/api/videos")

	link := w.Header().Get("Link")
	if strings.Contains(link, `rel="prev"`) || strings.Contains(link, `rel="next"`) {
		t.Errorf("single-page listing should have no prev/next: %q", link)
	}
}
