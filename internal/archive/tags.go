// Package archive indexes tags of shared files.
package archive

import (
	"regexp"
	"sort"
	"strings"
)

// TagMarker introduces a tag inside a file name.
const TagMarker = "#"

// a tag runs from its marker to the next separator, marker or extension dot
var tagPattern = regexp.MustCompile(`#([^#_\-\s.]+)`)

// ExtractTags returns the distinct tags of a file name in sorted order.
func ExtractTags(fileName string) []string {
	matches := tagPattern.FindAllStringSubmatch(fileName, -1)
	if len(matches) == 0 {
		return []string{}
	}

	seen := make(map[string]struct{}, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := strings.TrimSpace(m[1])
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
