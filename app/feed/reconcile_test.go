package feed

import (
	"testing"
	"time"
)

func reconcileItem(guid string) Item {
	return Item{
		GUID:     guid,
		Title:    "Episode " + guid,
		PubDate:  time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC),
		MediaURL: "https://example.com/" + guid + ".mp3",
	}
}

func TestReconcile(t *testing.T) {
	items := []Item{reconcileItem("B"), reconcileItem("C"), reconcileItem("D")}
	existing := map[string]string{
		"A": "id-a",
		"B": "id-b",
		"C": "id-c",
	}

	diff := Reconcile(items, existing)

	expectedKeep := []string{"B", "C", "D"}
	if len(diff.KeepGUIDs) != len(expectedKeep) {
		t.Fatalf("Expected %d kept guids, got %d", len(expectedKeep), len(diff.KeepGUIDs))
	}
	for i, guid := range expectedKeep {
		if diff.KeepGUIDs[i] != guid {
			t.Errorf("Expected kept guid '%s', got '%s'", guid, diff.KeepGUIDs[i])
		}
	}

	if len(diff.Updates) != 2 {
		t.Fatalf("Expected 2 updates, got %d", len(diff.Updates))
	}
	if diff.Updates[0].EpisodeID != "id-b" || diff.Updates[0].GUID != "B" {
		t.Errorf("Expected update for B/id-b, got %s/%s", diff.Updates[0].GUID, diff.Updates[0].EpisodeID)
	}
	if diff.Updates[1].EpisodeID != "id-c" || diff.Updates[1].GUID != "C" {
		t.Errorf("Expected update for C/id-c, got %s/%s", diff.Updates[1].GUID, diff.Updates[1].EpisodeID)
	}

	if len(diff.Inserts) != 1 {
		t.Fatalf("Expected 1 insert, got %d", len(diff.Inserts))
	}
	if diff.Inserts[0].GUID != "D" {
		t.Errorf("Expected insert for D, got '%s'", diff.Inserts[0].GUID)
	}
}

func TestReconcileDuplicateGUIDs(t *testing.T) {
	first := reconcileItem("A")
	first.Title = "First occurrence"
	second := reconcileItem("A")
	second.Title = "Second occurrence"

	diff := Reconcile([]Item{first, second}, map[string]string{})

	if len(diff.KeepGUIDs) != 1 {
		t.Fatalf("Expected 1 kept guid, got %d", len(diff.KeepGUIDs))
	}
	if len(diff.Inserts) != 1 {
		t.Fatalf("Expected 1 insert, got %d", len(diff.Inserts))
	}
	if diff.Inserts[0].Title != "First occurrence" {
		t.Errorf("Expected first occurrence to win, got '%s'", diff.Inserts[0].Title)
	}
}

func TestReconcileEmptyStore(t *testing.T) {
	items := []Item{reconcileItem("A"), reconcileItem("B")}

	diff := Reconcile(items, nil)

	if len(diff.Updates) != 0 {
		t.Errorf("Expected no updates, got %d", len(diff.Updates))
	}
	if len(diff.Inserts) != 2 {
		t.Errorf("Expected 2 inserts, got %d", len(diff.Inserts))
	}
}
