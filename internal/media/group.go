package media

import "github.com/samber/lo"

type groupKey struct {
	id   string
	name string
}

// GroupByDubGroup partitions a flat episode list by (dub-group id, dub-group name).
// Groups keep the order in which their key first appears. Inside a group,
// episodes sharing a label are merged: their URLs are concatenated in encounter
// order with duplicates removed, and the first episode's provider tag is kept.
func GroupByDubGroup(flat []Episode) []DubGroup {
	var groups []DubGroup
	groupIdx := make(map[groupKey]int)
	labelIdx := make(map[groupKey]map[string]int)

	for _, ep := range flat {
		key := groupKey{id: ep.DubGroupID, name: ep.DubGroupName}

		gi, ok := groupIdx[key]
		if !ok {
			gi = len(groups)
			groupIdx[key] = gi
			labelIdx[key] = make(map[string]int)
			groups = append(groups, DubGroup{ID: ep.DubGroupID, Name: ep.DubGroupName})
		}

		if ei, seen := labelIdx[key][ep.Label]; seen {
			merged := &groups[gi].Episodes[ei]
			merged.URLs = lo.Uniq(append(merged.URLs, ep.URLs...))
			continue
		}

		labelIdx[key][ep.Label] = len(groups[gi].Episodes)
		ep.URLs = lo.Uniq(lo.Compact(ep.URLs))
		groups[gi].Episodes = append(groups[gi].Episodes, ep)
	}

	return groups
}

// Flatten is the inverse of GroupByDubGroup for a single-URL view: it returns
// every episode of every group in order.
func Flatten(groups []DubGroup) []Episode {
	return lo.FlatMap(groups, func(g DubGroup, _ int) []Episode {
		return g.Episodes
	})
}

// First returns the first episode of the first non-empty group.
func First(groups []DubGroup) (Episode, bool) {
	for _, g := range groups {
		if len(g.Episodes) > 0 {
			return g.Episodes[0], true
		}
	}
	return Episode{}, false
}
