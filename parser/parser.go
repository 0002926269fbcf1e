// Package parser turns fetched farsroid.com pages into domain records.
//
// Parsers are pure functions over an already parsed document: they do no
// I/O, hold no state, and may run concurrently on distinct documents.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrMalformedInput is returned when a parser is handed no document.
var ErrMalformedInput = errors.New("parser: document is nil")

// NotFoundError indicates a page lacks the element a parse is anchored on.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not find %s", e.What)
}

// IsNotFound checks if an error is a NotFoundError.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// MetaRule maps an info block label onto a canonical meta key.
type MetaRule struct {
	Pattern *regexp.Regexp
	Key     string
}

// Classify returns the key of the first rule whose pattern matches label.
func Classify(rules []MetaRule, label string) (string, bool) {
	for _, r := range rules {
		if r.Pattern.MatchString(label) {
			return r.Key, true
		}
	}
	return "", false
}

var (
	digitsPattern  = regexp.MustCompile(`\d+`)
	versionPattern = regexp.MustCompile(`\d+(\.\d+)*`)
)

// infoBlocks reads label/value pairs from ".inf-cnt" blocks under sel and
// keeps the ones whose label classifies and whose value is non-empty.
func infoBlocks(sel *goquery.Selection, rules []MetaRule, into map[string]string) {
	sel.Find("div.inf-cnt").Each(func(_ int, block *goquery.Selection) {
		span := block.Find("span").First()
		if span.Length() == 0 {
			return
		}
		label := span.Text()
		key, ok := Classify(rules, label)
		if !ok {
			return
		}
		value := block.Text()
		if label != "" {
			value = strings.ReplaceAll(value, label, "")
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		into[key] = value
	})
}

// firstDigits parses the first run of digits in s.
func firstDigits(s string) (int, bool) {
	m := digitsPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
