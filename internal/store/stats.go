package store

import (
	"math"

	"todoTracker/internal/models/task"
)

type Stats struct {
	Completed int `json:"completedCount"`
	Total     int `json:"totalCount"`
	Percent   int `json:"percent"`
}

// CompletionStats — чистая функция над любой последовательностью задач,
// применяется и к категории, и ко всему списку. Пустой список даёт percent=0.
func CompletionStats(tasks []*task.Task) Stats {
	stats := Stats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			stats.Completed++
		}
	}

	if stats.Total > 0 {
		stats.Percent = int(math.Round(float64(stats.Completed) / float64(stats.Total) * 100))
	}
	return stats
}
