package wargame

import "github.com/ashureev/wargame/internal/domain"

// Partition splits the queue into world-truth interactions (FEED) and
// forecastable ones (INFO, ACTION). Relative order is preserved within each
// partition and every interaction lands in exactly one of them.
func Partition(queue domain.Queue) (worldTruth, forecastable []domain.Interaction) {
	for _, in := range queue {
		if in.Kind.IsWorldTruth() {
			worldTruth = append(worldTruth, in)
		} else {
			forecastable = append(forecastable, in)
		}
	}
	return worldTruth, forecastable
}
