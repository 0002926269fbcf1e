// Package froid contains the core domain types for the farsroid.com API.
package froid

import (
	"strconv"
	"time"
)

// Site coordinates.
const (
	SiteURL    = "https://www.farsroid.com"
	SiteDomain = "farsroid.com"
)

// Media types.
const (
	MediaScreenshot = "screenshot"
	MediaVideo      = "video"
	MediaThumbnail  = "thumbnail"
)

// Meta keys produced by the parsers.
const (
	MetaVersion                = "version"
	MetaMode                   = "mode"
	MetaRequiredAndroidVersion = "required_android_version"
	MetaCategory               = "category"
)

// PostURL returns the canonical short link for a post.
func PostURL(id int) string {
	return SiteURL + "/?p=" + strconv.Itoa(id)
}

// PostMedia is a gallery entry or the post thumbnail.
type PostMedia struct {
	URL  string `json:"url"`
	Type string `json:"media_type"` // screenshot, video or thumbnail
}

// DownloadData is a direct download link for an app package.
type DownloadData struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// RelatedPost is a teaser for another post.
type RelatedPost struct {
	PostID    int    `json:"post_id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
}

// PostDownloadPage is everything extracted from a single post page.
// Nil slices and pointers mean the section was absent on the page.
type PostDownloadPage struct {
	PostID       int               `json:"post_id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Media        []PostMedia       `json:"media"`
	PostURL      string            `json:"post_url"`
	Meta         map[string]string `json:"meta"`
	RelatedPosts []RelatedPost     `json:"related_posts"`
	GPlayURL     *string           `json:"gplay_url"`
	DownloadData []DownloadData    `json:"download_data"`
}

// LegacySearchItem is one result scraped from the HTML search listing.
type LegacySearchItem struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Thumbnail   string            `json:"thumbnail"`
	Description string            `json:"description"`
	Meta        map[string]string `json:"meta"`
	PostID      *int              `json:"post_id"`
}

// LegacySearchPage is one page of the HTML search listing.
type LegacySearchPage struct {
	TotalPages int                `json:"total_pages"`
	Items      []LegacySearchItem `json:"items"`
}

// SearchItem is a result of the JSON search endpoint.
type SearchItem struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// PaginatedResult wraps a page of search results.
type PaginatedResult struct {
	Page       int          `json:"page"`
	PerPage    int          `json:"per_page"`
	TotalPages int          `json:"total_pages"`
	Items      []SearchItem `json:"items"`
}

// Comment is a user comment on a post.
type Comment struct {
	CommentID int    `json:"comment_id"`
	PostID    int    `json:"post_id"`
	Content   string `json:"content"`
	Link      string `json:"link"`
	Date      string `json:"date"`
	Author    string `json:"author"`
	ParentID  *int   `json:"parent_id,omitempty"`
}

// CachedPost is a stored snapshot of a parsed post page.
type CachedPost struct {
	FetchedAt time.Time         `json:"fetched_at"` // When the page was last scraped
	ChangedAt time.Time         `json:"changed_at"` // When the parsed content last differed
	Page      *PostDownloadPage `json:"page"`
}

// Map converts the page into plain nested maps and slices.
// Absent optional sections become nil values.
func (p *PostDownloadPage) Map() map[string]any {
	media := make([]any, 0, len(p.Media))
	for _, m := range p.Media {
		media = append(media, m.Map())
	}

	meta := make(map[string]any, len(p.Meta))
	for k, v := range p.Meta {
		meta[k] = v
	}

	var related any
	if p.RelatedPosts != nil {
		items := make([]any, 0, len(p.RelatedPosts))
		for _, r := range p.RelatedPosts {
			items = append(items, r.Map())
		}
		related = items
	}

	var gplay any
	if p.GPlayURL != nil {
		gplay = *p.GPlayURL
	}

	var downloads any
	if p.DownloadData != nil {
		items := make([]any, 0, len(p.DownloadData))
		for _, d := range p.DownloadData {
			items = append(items, d.Map())
		}
		downloads = items
	}

	return map[string]any{
		"post_id":       p.PostID,
		"title":         p.Title,
		"description":   p.Description,
		"media":         media,
		"post_url":      p.PostURL,
		"meta":          meta,
		"related_posts": related,
		"gplay_url":     gplay,
		"download_data": downloads,
	}
}

// Map converts the media entry into a plain map.
func (m PostMedia) Map() map[string]any {
	return map[string]any{"url": m.URL, "media_type": m.Type}
}

// Map converts the download link into a plain map.
func (d DownloadData) Map() map[string]any {
	return map[string]any{"title": d.Title, "url": d.URL}
}

// Map converts the related post into a plain map.
func (r RelatedPost) Map() map[string]any {
	return map[string]any{
		"post_id":   r.PostID,
		"title":     r.Title,
		"url":       r.URL,
		"thumbnail": r.Thumbnail,
	}
}
