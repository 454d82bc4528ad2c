package extractor

import (
	"strings"
	"unicode"
)

// resolveOutlinePages fills in missing bookmark pages by finding each title
// in the page texts. Pages that contain several titles look like a printed
// table of contents and are only used when nothing else matches. Search
// resumes from the previous hit so entries stay in document order.
func resolveOutlinePages(entries []OutlineEntry, pageTexts []string) []OutlineEntry {
	if len(entries) == 0 {
		return entries
	}
	normalized := make([]string, len(pageTexts))
	for i, t := range pageTexts {
		normalized[i] = normalize(t)
	}

	titles := make([]string, len(entries))
	for i, e := range entries {
		titles[i] = normalize(e.Title)
	}

	tocLike := make([]bool, len(pageTexts))
	if len(entries) >= 3 {
		for i, text := range normalized {
			hits := 0
			for _, title := range titles {
				if len(title) >= 3 && strings.Contains(text, title) {
					hits++
				}
			}
			tocLike[i] = hits >= 3
		}
	}

	out := make([]OutlineEntry, len(entries))
	cursor := 0
	for i, e := range entries {
		out[i] = e
		if e.Page > 0 {
			cursor = e.Page - 1
			continue
		}
		if len(titles[i]) < 3 {
			continue
		}
		if p := findTitle(titles[i], normalized, tocLike, cursor); p >= 0 {
			out[i].Page = p + 1
			cursor = p
		}
	}
	return out
}

func findTitle(title string, pages []string, tocLike []bool, from int) int {
	fallback := -1
	for _, start := range []int{from, 0} {
		for i := start; i < len(pages); i++ {
			if !strings.Contains(pages[i], title) {
				continue
			}
			if !tocLike[i] {
				return i
			}
			if fallback < 0 {
				fallback = i
			}
		}
	}
	return fallback
}

func normalize(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return unicode.IsSpace(r)
	}), " ")
}
