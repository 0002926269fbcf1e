package parser

import (
	"slices"
	"testing"

	"froidapi/pkg/froid"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchPage = `<html><body>
<div class="post-item">
  <a href="/tag/messenger/">tag</a>
  <a href="https://www.farsroid.com/telegram/"><img data-src="https://img.farsroid.com/tg.png"></a>
  <h2>
    دانلود Telegram
    10.14.5
  </h2>
  <div class="post-excerpt"><p>Fast <b>messaging</b></p></div>
  <div class="inf-cnt"><span>نسخه اندروید:</span> 5.0+</div>
  <div class="inf-cnt"><span>نسخه:</span> 10.14.5</div>
  <div class="inf-cnt"><span>حجم:</span> 50MB</div>
  <button class="bookmark-btn" data-id="12355"></button>
</div>
<div class="post-item">
  <a href="https://www.farsroid.com/whatsapp/">WhatsApp</a>
  <h2>WhatsApp</h2>
</div>
<nav>
  <a class="page-numbers" href="/page/1/">1</a>
  <a class="page-numbers" href="/page/2/">2</a>
  <span class="page-numbers dots">…</span>
  <a class="page-numbers" href="/page/12/">12,</a>
</nav>
</body></html>`

func TestParseLegacySearch(t *testing.T) {
	page, err := ParseLegacySearch(mustDoc(t, searchPage))
	require.NoError(t, err)

	id := 12355
	want := &froid.LegacySearchPage{
		TotalPages: 12,
		Items: []froid.LegacySearchItem{
			{
				URL:         "https://www.farsroid.com/telegram/",
				Title:       "دانلود Telegram    10.14.5",
				Thumbnail:   "https://img.farsroid.com/tg.png",
				Description: "Fast messaging",
				Meta: map[string]string{
					froid.MetaRequiredAndroidVersion: "5.0+",
					froid.MetaVersion:                "10.14.5",
				},
				PostID: &id,
			},
			{
				URL:   "https://www.farsroid.com/whatsapp/",
				Title: "WhatsApp",
			},
		},
	}

	if diff := cmp.Diff(want, page); diff != "" {
		t.Errorf("ParseLegacySearch() mismatch (-want +got):\n%s", diff)
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		name string
		html string
		want int
	}{
		{"no pagination", `<div></div>`, 1},
		{"single element", `<a class="page-numbers">7</a>`, 1},
		{"trailing comma", `<a class="page-numbers">1</a><a class="page-numbers">12,</a>`, 12},
		{"thousands separator", `<a class="page-numbers">1</a><a class="page-numbers">1,204</a>`, 1204},
		{"last is not a number", `<a class="page-numbers">1</a><a class="page-numbers next">بعدی</a>`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TotalPages(mustDoc(t, tt.html)))
		})
	}
}

func TestSearchItemsRestartable(t *testing.T) {
	seq := SearchItems(mustDoc(t, searchPage))

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	require.Len(t, first, 2)
	if !cmp.Equal(first, second) {
		t.Errorf("second iteration differs: %s", cmp.Diff(first, second))
	}

	count := 0
	for range seq {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestParseLegacySearchEmpty(t *testing.T) {
	page, err := ParseLegacySearch(mustDoc(t, `<html><body><p>nothing found</p></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalPages)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestParseLegacySearchNilDocument(t *testing.T) {
	_, err := ParseLegacySearch(nil)
	require.ErrorIs(t, err, ErrMalformedInput)
	assert.Equal(t, 1, TotalPages(nil))
	assert.Empty(t, slices.Collect(SearchItems(nil)))
}
