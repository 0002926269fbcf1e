package parser

import (
	"regexp"
	"strconv"
	"strings"

	"froidapi/pkg/froid"
	"froidapi/textutil"

	"github.com/PuerkitoBio/goquery"
)

// Markers of a post download page.
const (
	offlineMarker = "آفلاین"
)

// PostMetaRules classifies sidebar info blocks on a post page.
var PostMetaRules = []MetaRule{
	{Pattern: regexp.MustCompile(`اندروید`), Key: froid.MetaRequiredAndroidVersion},
	{Pattern: regexp.MustCompile(`دسته بندی`), Key: froid.MetaCategory},
}

var (
	mainIDPattern      = regexp.MustCompile(`^post-(\d+)$`)
	mediaPattern       = regexp.MustCompile(`\.jpg|\.png|\.mp4|\.webm`)
	relatedPattern     = regexp.MustCompile(`^post-(\d+)`)
	downloadURLPattern = regexp.MustCompile(`\.(apk|zip|obb|rar)$`)
)

// ParsePost extracts a post download page.
// It fails with a NotFoundError when the page has no main post article.
func ParsePost(doc *goquery.Document) (*froid.PostDownloadPage, error) {
	if doc == nil {
		return nil, ErrMalformedInput
	}

	main := doc.Find("article[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return mainIDPattern.MatchString(s.AttrOr("id", ""))
	}).First()
	if main.Length() == 0 {
		return nil, &NotFoundError{What: "main content"}
	}
	postID, err := strconv.Atoi(mainIDPattern.FindStringSubmatch(main.AttrOr("id", ""))[1])
	if err != nil {
		return nil, &NotFoundError{What: "main content"}
	}

	sidebar := doc.Find("aside.sidebar-single").First()

	return &froid.PostDownloadPage{
		PostID:       postID,
		Title:        strings.TrimSpace(doc.Find("title").First().Text()),
		Description:  description(main),
		Media:        media(doc, sidebar),
		PostURL:      froid.PostURL(postID),
		Meta:         postMeta(main, sidebar),
		RelatedPosts: relatedPosts(doc),
		GPlayURL:     gplayURL(doc),
		DownloadData: downloadData(doc),
	}, nil
}

func description(main *goquery.Selection) string {
	content := main.Find("div.post-content").First()
	if content.Length() == 0 {
		return ""
	}
	return textutil.Text(content)
}

func media(doc *goquery.Document, sidebar *goquery.Selection) []froid.PostMedia {
	result := []froid.PostMedia{}

	gallery := doc.Find("section.screenshots-gallery").First()
	if gallery.Length() == 0 {
		return result
	}

	var screenshots, videos []froid.PostMedia
	gallery.Find("[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		if !mediaPattern.MatchString(href) {
			return
		}
		switch {
		case strings.HasSuffix(href, ".jpg"), strings.HasSuffix(href, ".png"):
			screenshots = append(screenshots, froid.PostMedia{URL: href, Type: froid.MediaScreenshot})
		case strings.HasSuffix(href, ".mp4"), strings.HasSuffix(href, ".webm"):
			videos = append(videos, froid.PostMedia{URL: href, Type: froid.MediaVideo})
		}
	})
	result = append(result, screenshots...)
	result = append(result, videos...)

	if sidebar.Length() == 0 {
		return result
	}
	img := sidebar.Find(".post-thumbnail").First().Find("img").First()
	if thumb, ok := img.Attr("data-src"); ok {
		result = append(result, froid.PostMedia{URL: thumb, Type: froid.MediaThumbnail})
	}
	return result
}

func postMeta(main, sidebar *goquery.Selection) map[string]string {
	meta := map[string]string{}

	if h1 := main.Find("h1").First(); h1.Length() > 0 {
		if v, ok := textutil.First(versionPattern, h1.Text()); ok {
			meta[froid.MetaVersion] = v
		}
	}

	if sidebar.Length() == 0 {
		return meta
	}

	if mode := sidebar.Find(".game-mode").First(); mode.Length() > 0 {
		if strings.Contains(mode.Text(), offlineMarker) {
			meta[froid.MetaMode] = "offline"
		} else {
			meta[froid.MetaMode] = "online"
		}
	}

	infoBlocks(sidebar, PostMetaRules, meta)
	return meta
}

func relatedPosts(doc *goquery.Document) []froid.RelatedPost {
	section := doc.Find("section.related-posts").First()
	if section.Length() == 0 {
		return nil
	}

	var posts []froid.RelatedPost
	section.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		id, ok := relatedPostID(s)
		if !ok {
			return
		}
		// Only the outermost post-<id> element of a card counts.
		if s.ParentsUntilSelection(section).FilterFunction(func(_ int, p *goquery.Selection) bool {
			_, nested := relatedPostID(p)
			return nested
		}).Length() > 0 {
			return
		}
		posts = append(posts, froid.RelatedPost{
			PostID:    id,
			Title:     textutil.Text(s),
			URL:       froid.PostURL(id),
			Thumbnail: s.Find("img").First().AttrOr("data-src", ""),
		})
	})
	return posts
}

// relatedPostID reads the id from the first post-<digits> class token.
func relatedPostID(s *goquery.Selection) (int, bool) {
	for _, c := range strings.Fields(s.AttrOr("class", "")) {
		m := relatedPattern.FindStringSubmatch(c)
		if m == nil {
			continue
		}
		if id, err := strconv.Atoi(m[1]); err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}

func gplayURL(doc *goquery.Document) *string {
	link := doc.Find(".gply-link").First()
	if link.Length() == 0 {
		return nil
	}
	// A link element without data-link yields "" rather than nil.
	u := link.AttrOr("data-link", "")
	return &u
}

func downloadData(doc *goquery.Document) []froid.DownloadData {
	box := doc.Find(".download-links").First()
	if box.Length() == 0 {
		return nil
	}

	var links []froid.DownloadData
	box.Find("[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		if !downloadURLPattern.MatchString(href) {
			return
		}
		links = append(links, froid.DownloadData{
			Title: strings.TrimSpace(s.Text()),
			URL:   href,
		})
	})
	return links
}
