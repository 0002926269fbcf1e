package parser

import (
	"iter"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"froidapi/pkg/froid"
	"froidapi/textutil"

	"github.com/PuerkitoBio/goquery"
)

// SearchMetaRules classifies info blocks of a search result.
// The Android rule must stay first: its label also contains the version word.
var SearchMetaRules = []MetaRule{
	{Pattern: regexp.MustCompile(`اندروید`), Key: froid.MetaRequiredAndroidVersion},
	{Pattern: regexp.MustCompile(`نسخه`), Key: froid.MetaVersion},
}

var leadingDigits = regexp.MustCompile(`^\d+`)

// TotalPages reads the page count from the pagination links of a search
// listing. Listings without pagination have a single page.
func TotalPages(doc *goquery.Document) int {
	if doc == nil {
		return 1
	}
	numbers := doc.Find(".page-numbers")
	if numbers.Length() < 2 {
		return 1
	}
	text := strings.ReplaceAll(strings.TrimSpace(numbers.Last().Text()), ",", "")
	m := leadingDigits.FindString(text)
	if m == "" {
		return 1
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// SearchItems yields the results of a search listing in page order.
// The sequence may be ranged over any number of times.
func SearchItems(doc *goquery.Document) iter.Seq[froid.LegacySearchItem] {
	return func(yield func(froid.LegacySearchItem) bool) {
		if doc == nil {
			return
		}
		for _, node := range doc.Find(".post-item").Nodes {
			if !yield(searchItem(doc.FindNodes(node))) {
				return
			}
		}
	}
}

// ParseLegacySearch extracts one page of the HTML search listing.
func ParseLegacySearch(doc *goquery.Document) (*froid.LegacySearchPage, error) {
	if doc == nil {
		return nil, ErrMalformedInput
	}
	items := slices.Collect(SearchItems(doc))
	if items == nil {
		items = []froid.LegacySearchItem{}
	}
	return &froid.LegacySearchPage{
		TotalPages: TotalPages(doc),
		Items:      items,
	}, nil
}

func searchItem(s *goquery.Selection) froid.LegacySearchItem {
	item := froid.LegacySearchItem{}

	s.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := a.AttrOr("href", "")
		if strings.Contains(href, froid.SiteDomain) {
			item.URL = href
			return false
		}
		return true
	})

	if h := s.Find("h2").First(); h.Length() > 0 {
		title := strings.ReplaceAll(h.Text(), "\n", "")
		item.Title = strings.TrimSpace(strings.ReplaceAll(title, "\r", ""))
	}

	item.Thumbnail = s.Find("img").First().AttrOr("data-src", "")

	if excerpt := s.Find(".post-excerpt").First(); excerpt.Length() > 0 {
		item.Description = textutil.Text(excerpt)
	}

	meta := map[string]string{}
	infoBlocks(s, SearchMetaRules, meta)
	if len(meta) > 0 {
		item.Meta = meta
	}

	if id, ok := s.Find(".bookmark-btn").First().Attr("data-id"); ok {
		if n, ok := firstDigits(id); ok {
			item.PostID = &n
		}
	}

	return item
}
