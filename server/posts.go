package server

import (
	"fmt"
	"net/http"
	"strconv"

	"froidapi/parser"
	"froidapi/scraper"
)

// siteError maps a failed site call to an HTTP response.
func (s *Server) siteError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case parser.IsNotFound(err), scraper.IsNotFound(err):
		s.writeError(w, http.StatusNotFound, notFound)
	default:
		s.logger.Error("Site request failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "Upstream site request failed")
	}
}

func (s *Server) searchQuery(r *http.Request, param string) (scraper.SearchQuery, error) {
	q := r.URL.Query()
	query := q.Get(param)
	if err := minLength(query, param, 3); err != nil {
		return scraper.SearchQuery{}, err
	}
	page, err := positiveInt(q.Get("page"), "page", 0)
	if err != nil {
		return scraper.SearchQuery{}, err
	}
	perPage, err := positiveInt(q.Get("per_page"), "per_page", 0)
	if err != nil {
		return scraper.SearchQuery{}, err
	}
	return scraper.SearchQuery{Query: query, Page: page, PerPage: perPage}, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sq, err := s.searchQuery(r, "q")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.site.Search(r.Context(), sq)
	if err != nil {
		s.siteError(w, err, "No results")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleSearchList serves the older search route, which returns bare items.
func (s *Server) handleSearchList(w http.ResponseWriter, r *http.Request) {
	sq, err := s.searchQuery(r, "query")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.site.Search(r.Context(), sq)
	if err != nil {
		s.siteError(w, err, "No results")
		return
	}
	s.writeJSON(w, http.StatusOK, result.Items)
}

func (s *Server) handleLegacySearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if err := minLength(query, "q", 3); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := positiveInt(q.Get("page"), "page", 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.site.LegacySearch(r.Context(), query, max(page, 1))
	if err != nil {
		s.siteError(w, err, fmt.Sprintf("Page %d of results not found", max(page, 1)))
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func postID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("post_id"))
	if err != nil || id < 1 {
		return 0, invalid("post_id must be a positive integer")
	}
	return id, nil
}

func (s *Server) handleDownloadPage(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.posts.Post(r.Context(), id)
	if err != nil {
		s.siteError(w, err, fmt.Sprintf("post %d not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, page.Map())
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	cq := scraper.CommentQuery{
		PostID:  id,
		Search:  q.Get("search"),
		Order:   q.Get("order"),
		OrderBy: q.Get("order_by"),
	}
	if cq.Page, err = positiveInt(q.Get("page"), "page", 100); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if cq.PerPage, err = positiveInt(q.Get("per_page"), "per_page", 100); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Has("search") {
		if err := minLength(cq.Search, "search", 3); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := cq.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comments, err := s.site.Comments(r.Context(), cq)
	if err != nil {
		// The site answers 400 for unknown posts.
		if scraper.IsBadRequest(err) {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("post %d not found", id))
			return
		}
		s.siteError(w, err, fmt.Sprintf("post %d not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, comments)
}
