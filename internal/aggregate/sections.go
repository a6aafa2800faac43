package aggregate

import (
	"sort"
	"time"

	"github.com/nhle/workfeed/internal/model"
)

const (
	maxPinned       = 3
	maxRecent       = 7
	maxPerRepoGroup = 3
)

// Group is a set of notifications sharing one grouping key, currently
// GitHub items grouped by repository.
type Group struct {
	Key   string
	Items []model.Notification
}

// computeSections partitions a round's merged pool into the display
// sections. Deterministic for a given pool: sorts are stable, ties keep
// input order.
func computeSections(pool []model.Notification, pinnedIDs map[string]bool, now time.Time) (pinned []model.Notification, groups []Group, recent, upcoming []model.Notification) {
	for _, n := range pool {
		if pinnedIDs[n.ID] {
			n.IsPinned = true
			pinned = append(pinned, n)
		}
	}
	sortNewestFirst(pinned)
	if len(pinned) > maxPinned {
		pinned = pinned[:maxPinned]
	}

	for _, n := range pool {
		if pinnedIDs[n.ID] {
			continue
		}
		if n.Service.IsCalendar() {
			if !n.Timestamp.Before(now) {
				upcoming = append(upcoming, n)
			}
			continue
		}
		recent = append(recent, n)
	}

	groups = groupByRepo(recent)

	sortNewestFirst(recent)
	if len(recent) > maxRecent {
		recent = recent[:maxRecent]
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].Timestamp.Before(upcoming[j].Timestamp)
	})

	return pinned, groups, recent, upcoming
}

// groupByRepo buckets non-pinned GitHub items by repository. Groups are
// ordered by their newest item, each capped to a few entries.
func groupByRepo(pool []model.Notification) []Group {
	index := make(map[string]int)
	var groups []Group

	for _, n := range pool {
		if n.Service != model.ServiceGitHub {
			continue
		}
		key := n.Subtitle
		if key == "" {
			key = "other"
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Items = append(groups[i].Items, n)
	}

	for i := range groups {
		sortNewestFirst(groups[i].Items)
		if len(groups[i].Items) > maxPerRepoGroup {
			groups[i].Items = groups[i].Items[:maxPerRepoGroup]
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Items[0].Timestamp.After(groups[j].Items[0].Timestamp)
	})
	return groups
}

func sortNewestFirst(notifications []model.Notification) {
	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].Timestamp.After(notifications[j].Timestamp)
	})
}
