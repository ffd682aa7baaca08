package playlist

import (
	"strings"
)

// qualityRank orders the tags used by Playerjs progressive file lists.
var qualityRank = map[string]int{
	"[360p]":  1,
	"[480p]":  2,
	"[720p]":  3,
	"[1080p]": 4,
}

// BestProgressive picks the highest quality entry of a Playerjs file list
// such as "[360p]https://a/360.mp4" and returns its URL without the tag.
func BestProgressive(entries []string) (string, bool) {
	best, bestURL := 0, ""
	for _, entry := range entries {
		for tag, rank := range qualityRank {
			if !strings.Contains(entry, tag) || rank <= best {
				continue
			}
			if _, after, ok := strings.Cut(entry, "]"); ok {
				best, bestURL = rank, strings.TrimSpace(after)
			}
		}
	}
	return bestURL, best > 0
}

// progressiveFile extracts the best direct file from a player page whose
// config lists quality-tagged URLs: file:"[480p]https://...,[720p]https://...".
func progressiveFile(body string) (string, bool) {
	for _, m := range filePattern.FindAllStringSubmatch(body, -1) {
		if url, ok := BestProgressive(strings.Split(m[1], ",")); ok {
			return url, true
		}
	}
	return "", false
}
