package recon

import "testing"

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil, nil)
	if stats.Total != 0 || stats.Completed != 0 || stats.Pending != 0 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.CompletionRate != 0 {
		t.Fatalf("completion rate for empty set must be 0, got %d", stats.CompletionRate)
	}
}

func TestComputeStatsRounding(t *testing.T) {
	tasks := []Task{
		{ID: 1, Title: "a", Completed: true},
		{ID: 2, Title: "b"},
		{ID: 3, Title: "c"},
	}
	stats := ComputeStats(tasks, nil)
	if stats.CompletionRate != 33 {
		t.Fatalf("expected 33, got %d", stats.CompletionRate)
	}

	tasks[1].Completed = true
	stats = ComputeStats(tasks, nil)
	if stats.CompletionRate != 67 {
		t.Fatalf("expected 67, got %d", stats.CompletionRate)
	}
	if stats.Completed != 2 || stats.Pending != 1 || stats.Total != 3 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
}

func TestComputeStatsGeneratedNotSaved(t *testing.T) {
	tasks := []Task{
		{ID: 1, Title: "Read the tour"},
		{ID: 2, Title: "Write a CLI", Completed: true},
	}
	suggestions := []string{"read the tour", "Learn Goroutines", "Profile a service"}

	stats := ComputeStats(tasks, suggestions)
	if stats.GeneratedNotSaved != 2 {
		t.Fatalf("expected 2 unsaved suggestions, got %d", stats.GeneratedNotSaved)
	}
}

func TestGroupByTopicDiscoveryOrder(t *testing.T) {
	tasks := []Task{
		{ID: 1, Title: "a", Topic: "Go"},
		{ID: 2, Title: "b", Topic: "Baking"},
		{ID: 3, Title: "c", Topic: "Go"},
		{ID: 4, Title: "d"},
		{ID: 5, Title: "e", Topic: "Baking"},
	}

	groups := GroupByTopic(tasks)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	wantOrder := []string{"Go", "Baking", UncategorizedTopic}
	for i, want := range wantOrder {
		if groups[i].Topic != want {
			t.Fatalf("group %d: expected %q, got %q", i, want, groups[i].Topic)
		}
	}
	if len(groups[0].Tasks) != 2 || groups[0].Tasks[0].ID != 1 || groups[0].Tasks[1].ID != 3 {
		t.Fatalf("Go group out of order: %+v", groups[0].Tasks)
	}
	if len(groups[2].Tasks) != 1 || groups[2].Tasks[0].ID != 4 {
		t.Fatalf("unexpected uncategorized group: %+v", groups[2].Tasks)
	}
}

func TestGroupByTopicEmpty(t *testing.T) {
	if groups := GroupByTopic(nil); len(groups) != 0 {
		t.Fatalf("expected no groups, got %d", len(groups))
	}
}
