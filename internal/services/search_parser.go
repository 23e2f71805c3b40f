package services

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"moodtunes/internal/models"
)

// Candidate is one video found on a result page, before history filtering
type Candidate struct {
	ID    string
	Title string
}

const minLinkTitleLength = 4

var (
	videoIDPattern = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)

	initialDataMarkers = []string{
		"var ytInitialData =",
		`window["ytInitialData"] =`,
		"ytInitialData =",
	}
)

const sectionsPath = "contents.twoColumnSearchResultsRenderer.primaryContents.sectionListRenderer.contents"

// ParseSearchPage extracts candidates in page order, deduplicated by ID.
// The embedded ytInitialData document is preferred; anchor scraping is the
// fallback when it is absent or yields nothing. Unparseable input yields nil.
func ParseSearchPage(page []byte) []Candidate {
	trimmed := bytes.TrimSpace(page)
	if len(trimmed) == 0 {
		return nil
	}

	// Some backends return the structured document on its own.
	if trimmed[0] == '{' && gjson.ValidBytes(trimmed) {
		return parseInitialData(gjson.ParseBytes(trimmed))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(trimmed))
	if err != nil {
		return nil
	}

	if data, ok := findInitialData(doc); ok {
		if candidates := parseInitialData(data); len(candidates) > 0 {
			return candidates
		}
	}

	return parseWatchLinks(doc)
}

func findInitialData(doc *goquery.Document) (gjson.Result, bool) {
	var found gjson.Result
	ok := false

	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		for _, marker := range initialDataMarkers {
			idx := strings.Index(text, marker)
			if idx < 0 {
				continue
			}
			raw, complete := extractJSONObject(text[idx+len(marker):])
			if !complete || !gjson.Valid(raw) {
				continue
			}
			found = gjson.Parse(raw)
			ok = true
			return false
		}
		return true
	})

	return found, ok
}

func parseInitialData(data gjson.Result) []Candidate {
	var candidates []Candidate
	seen := make(map[string]bool)

	data.Get(sectionsPath).ForEach(func(_, section gjson.Result) bool {
		section.Get("itemSectionRenderer.contents").ForEach(func(_, item gjson.Result) bool {
			video := item.Get("videoRenderer")
			if !video.Exists() {
				return true
			}
			id := video.Get("videoId").String()
			if id == "" || seen[id] {
				return true
			}
			seen[id] = true
			candidates = append(candidates, Candidate{ID: id, Title: videoTitle(video)})
			return true
		})
		return true
	})

	return candidates
}

func videoTitle(video gjson.Result) string {
	if title := video.Get("title.runs.0.text").String(); title != "" {
		return title
	}
	if title := video.Get("title.simpleText").String(); title != "" {
		return title
	}
	return models.UntitledVideo
}

func parseWatchLinks(doc *goquery.Document) []Candidate {
	var candidates []Candidate
	index := make(map[string]int)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		id, ok := videoIDFromHref(href)
		if !ok {
			return
		}

		title := strings.TrimSpace(s.Text())
		if title == "" {
			title = models.UntitledVideo
		}
		if len(title) < minLinkTitleLength {
			return
		}

		if i, dup := index[id]; dup {
			// Thumbnail anchors come first and carry no text.
			if candidates[i].Title == models.UntitledVideo && title != models.UntitledVideo {
				candidates[i].Title = title
			}
			return
		}
		index[id] = len(candidates)
		candidates = append(candidates, Candidate{ID: id, Title: title})
	})

	return candidates
}

// videoIDFromHref reads the v parameter of a watch link, ignoring any
// tracking parameters around it
func videoIDFromHref(href string) (string, bool) {
	if !strings.Contains(href, "/watch?") {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	id := u.Query().Get("v")
	if !videoIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

// extractJSONObject returns the first balanced {...} in s, skipping
// braces inside string literals
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
