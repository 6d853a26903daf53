package feed

// ItemUpdate pairs a feed item with the stored episode it refreshes.
type ItemUpdate struct {
	EpisodeID string
	Item
}

// Diff is the set of changes that makes stored episodes match a feed
// snapshot exactly: guids absent from KeepGUIDs are deleted, Updates refresh
// existing rows, Inserts add unseen guids.
type Diff struct {
	KeepGUIDs []string
	Updates   []ItemUpdate
	Inserts   []Item
}

// Reconcile partitions the current feed items against the stored
// guid -> episode id map. The feed is authoritative for existence; when a
// guid appears more than once in one snapshot only the first occurrence
// counts.
func Reconcile(items []Item, existing map[string]string) Diff {
	var diff Diff
	seen := make(map[string]bool, len(items))

	for _, item := range items {
		if seen[item.GUID] {
			continue
		}
		seen[item.GUID] = true
		diff.KeepGUIDs = append(diff.KeepGUIDs, item.GUID)

		if episodeID, ok := existing[item.GUID]; ok {
			diff.Updates = append(diff.Updates, ItemUpdate{EpisodeID: episodeID, Item: item})
		} else {
			diff.Inserts = append(diff.Inserts, item)
		}
	}

	return diff
}
