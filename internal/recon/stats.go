package recon

import "math"

// UncategorizedTopic is the group label for tasks with an empty topic.
const UncategorizedTopic = "Uncategorized"

// Stats is a read-only projection of the task set and suggestion list,
// recomputed on demand rather than maintained incrementally.
type Stats struct {
	Completed         int `json:"completed"`
	Pending           int `json:"pending"`
	Total             int `json:"total"`
	GeneratedNotSaved int `json:"generatedNotSaved"`
	CompletionRate    int `json:"completionRate"`
}

// TopicGroup is one partition of the task set, in topic discovery order.
type TopicGroup struct {
	Topic string `json:"topic"`
	Tasks []Task `json:"tasks"`
}

// ComputeStats derives counts and completion rate. The rate is
// round(100 * completed / total), 0 for an empty set.
func ComputeStats(tasks []Task, suggestions []string) Stats {
	stats := Stats{Total: len(tasks)}
	for _, task := range tasks {
		if task.Completed {
			stats.Completed++
		} else {
			stats.Pending++
		}
	}
	for _, suggestion := range suggestions {
		if !taskExists(tasks, suggestion) {
			stats.GeneratedNotSaved++
		}
	}
	if stats.Total > 0 {
		stats.CompletionRate = int(math.Round(float64(stats.Completed) / float64(stats.Total) * 100))
	}
	return stats
}

// GroupByTopic partitions tasks by topic label, preserving the order in
// which topics are first seen. Empty topics fall into UncategorizedTopic.
func GroupByTopic(tasks []Task) []TopicGroup {
	index := make(map[string]int)
	groups := make([]TopicGroup, 0)
	for _, task := range tasks {
		topic := task.Topic
		if topic == "" {
			topic = UncategorizedTopic
		}
		i, ok := index[topic]
		if !ok {
			i = len(groups)
			index[topic] = i
			groups = append(groups, TopicGroup{Topic: topic})
		}
		groups[i].Tasks = append(groups[i].Tasks, task)
	}
	return groups
}
