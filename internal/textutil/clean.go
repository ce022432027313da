// Package textutil holds the stateless formatting helpers applied to model
// replies before they go out over Telegram.
package textutil

import (
	"regexp"
	"strings"
)

var (
	boldRe       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe     = regexp.MustCompile(`\*(.*?)\*`)
	fencedRe     = regexp.MustCompile("(?s)```.*?```")
	inlineRe     = regexp.MustCompile("`(.*?)`")
	headingRe    = regexp.MustCompile(`(?m)^#+\s*`)
	bulletRe     = regexp.MustCompile(`(?m)^\s*[\*\-]\s`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
)

// Clean strips markdown and HTML markup the model tends to emit: bold and
// italic markers, fenced code blocks (dropped entirely), inline code
// backticks, heading markers, list bullets, HTML tags, and runs of three or
// more newlines.
func Clean(text string) string {
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = fencedRe.ReplaceAllString(text, "")
	text = inlineRe.ReplaceAllString(text, "$1")
	text = headingRe.ReplaceAllString(text, "")
	text = bulletRe.ReplaceAllString(text, "")
	text = htmlTagRe.ReplaceAllString(text, "")
	text = newlineRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Split breaks text into chunks no longer than limit bytes, preferring line
// boundaries and hard-splitting lines that are themselves over the limit.
func Split(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var parts []string
	current := ""
	for _, line := range strings.Split(text, "\n") {
		if len(current)+len(line)+1 > limit {
			if current != "" {
				parts = append(parts, current)
			}
			current = line
			for len(current) > limit {
				parts = append(parts, current[:limit])
				current = current[limit:]
			}
		} else {
			if current != "" {
				current += "\n"
			}
			current += line
		}
	}
	if current != "" {
		parts = append(parts, current)
	}
	return parts
}
