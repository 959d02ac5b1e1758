package status

import (
	"math"

	"github.com/romanzh1/course-player/internal/models"
	"github.com/romanzh1/course-player/internal/progression"
)

// PercentComplete sums the durations of complete modules plus, for the active
// module when it is not complete, the chapters ordered before chapterOrder.
// A course without duration reports 0%.
func (s *Store) PercentComplete(course *models.Course, moduleIdx, chapterOrder int) models.Progress {
	var p models.Progress
	if course == nil {
		return p
	}

	for _, m := range course.Modules {
		p.Total += m.Duration
		if s.IsComplete(m.ID) {
			p.Current += m.Duration
		}
	}

	if active := progression.ModuleAt(course, moduleIdx); active != nil && !s.IsComplete(active.ID) {
		for _, c := range active.Chapters {
			if c.Order < chapterOrder {
				p.Current += c.Duration
			}
		}
	}

	if p.Total > 0 {
		p.Percent = int(math.Round(float64(p.Current) / float64(p.Total) * 100))
	}

	return p
}
