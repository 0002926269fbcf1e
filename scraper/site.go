package scraper

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"froidapi/parser"
	"froidapi/pkg/froid"
	"froidapi/textutil"

	"golang.org/x/net/html"
)

// Post fetches and parses a post download page.
func (s *Scraper) Post(ctx context.Context, id int) (*froid.PostDownloadPage, error) {
	doc, err := s.Document(ctx, "/?p="+strconv.Itoa(id))
	if err != nil {
		return nil, fmt.Errorf("fetch post %d: %w", id, err)
	}
	page, err := parser.ParsePost(doc)
	if err != nil {
		return nil, fmt.Errorf("parse post %d: %w", id, err)
	}
	s.logger.Info("Post page parsed successfully",
		"post_id", page.PostID,
		"title", page.Title,
		"media_count", len(page.Media),
		"download_links", len(page.DownloadData))
	return page, nil
}

// LegacySearch scrapes one page of the site's HTML search results.
func (s *Scraper) LegacySearch(ctx context.Context, query string, page int) (*froid.LegacySearchPage, error) {
	doc, err := s.Document(ctx, legacySearchPath(query, page))
	if err != nil {
		return nil, fmt.Errorf("fetch search %q: %w", query, err)
	}
	result, err := parser.ParseLegacySearch(doc)
	if err != nil {
		return nil, fmt.Errorf("parse search %q: %w", query, err)
	}
	s.logger.Info("Search page parsed successfully",
		"query", query,
		"page", page,
		"total_pages", result.TotalPages,
		"items", len(result.Items))
	return result, nil
}

func legacySearchPath(query string, page int) string {
	q := "?s=" + url.QueryEscape(query)
	if page <= 1 {
		return "/" + q
	}
	return fmt.Sprintf("/page/%d/%s", page, q)
}

// SearchQuery holds parameters of the JSON search endpoint.
// Zero Page or PerPage leaves the site defaults in place.
type SearchQuery struct {
	Query   string
	Page    int
	PerPage int
}

type wpSearchItem struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Search queries the site's WordPress search endpoint.
func (s *Scraper) Search(ctx context.Context, q SearchQuery) (*froid.PaginatedResult, error) {
	params := url.Values{}
	params.Set("search", q.Query)
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(q.PerPage))
	}

	var raw []wpSearchItem
	header, err := s.decodeJSON(ctx, "/wp-json/wp/v2/search?"+params.Encode(), &raw)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q.Query, err)
	}

	items := make([]froid.SearchItem, 0, len(raw))
	for _, r := range raw {
		items = append(items, froid.SearchItem{
			ID:    r.ID,
			Title: html.UnescapeString(r.Title),
			URL:   r.URL,
		})
	}

	result := &froid.PaginatedResult{
		Page:       max(q.Page, 1),
		PerPage:    cmp.Or(q.PerPage, 10),
		TotalPages: 1,
		Items:      items,
	}
	if n, err := strconv.Atoi(header.Get("X-WP-TotalPages")); err == nil && n > 0 {
		result.TotalPages = n
	}
	return result, nil
}

// Comment orderings accepted by the site.
var (
	CommentOrders   = []string{"asc", "desc"}
	CommentOrderBys = []string{"date", "date_gmt", "id"}
)

// CommentQuery holds parameters of the comments endpoint.
type CommentQuery struct {
	PostID  int
	Page    int
	PerPage int
	Search  string
	Order   string
	OrderBy string
}

// Validate checks the query against the limits of the comments endpoint.
func (q CommentQuery) Validate() error {
	switch {
	case q.PostID <= 0:
		return errors.New("post id must be positive")
	case q.Page < 0 || q.Page > 100:
		return errors.New("page must be between 1 and 100")
	case q.PerPage < 0 || q.PerPage > 100:
		return errors.New("per_page must be between 1 and 100")
	case q.Search != "" && len([]rune(q.Search)) < 3:
		return errors.New("search must be at least 3 characters")
	case q.Order != "" && !slices.Contains(CommentOrders, q.Order):
		return fmt.Errorf("order must be one of %v", CommentOrders)
	case q.OrderBy != "" && !slices.Contains(CommentOrderBys, q.OrderBy):
		return fmt.Errorf("order_by must be one of %v", CommentOrderBys)
	}
	return nil
}

type wpComment struct {
	ID         int    `json:"id"`
	Post       int    `json:"post"`
	Parent     int    `json:"parent"`
	AuthorName string `json:"author_name"`
	Date       string `json:"date"`
	Link       string `json:"link"`
	Content    struct {
		Rendered string `json:"rendered"`
	} `json:"content"`
}

// Comments fetches approved comments of a post.
func (s *Scraper) Comments(ctx context.Context, q CommentQuery) ([]froid.Comment, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("post", strconv.Itoa(q.PostID))
	params.Set("page", strconv.Itoa(max(q.Page, 1)))
	params.Set("per_page", strconv.Itoa(cmp.Or(q.PerPage, 10)))
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Order != "" {
		params.Set("order", q.Order)
	}
	if q.OrderBy != "" {
		params.Set("orderby", q.OrderBy)
	}

	var raw []wpComment
	if _, err := s.decodeJSON(ctx, "/wp-json/wp/v2/comments?"+params.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("comments of post %d: %w", q.PostID, err)
	}

	comments := make([]froid.Comment, 0, len(raw))
	for _, r := range raw {
		c := froid.Comment{
			CommentID: r.ID,
			PostID:    r.Post,
			Content:   textutil.PlainText(r.Content.Rendered),
			Link:      r.Link,
			Date:      r.Date,
			Author:    r.AuthorName,
		}
		if r.Parent != 0 {
			parent := r.Parent
			c.ParentID = &parent
		}
		comments = append(comments, c)
	}
	return comments, nil
}

