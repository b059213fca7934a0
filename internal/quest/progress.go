package quest

import "time"

// computeProgress mirrors internal/goal's hybrid formula (spec.md §4.5: 0.7 task-completion weight, 0.3
// elapsed-time weight). Both packages must stay in agreement on this shape since a quest's progress is always
// derived from its referenced goal.
func computeProgress(taskCount, doneCount int, startedAt, dueAt, now time.Time) float64 {
	var taskProgress float64
	if taskCount > 0 {
		taskProgress = float64(doneCount) / float64(taskCount)
	}

	var timeProgress float64
	if dueAt.After(startedAt) {
		timeProgress = clamp01(now.Sub(startedAt).Seconds() / dueAt.Sub(startedAt).Seconds())
	}

	return 0.7*taskProgress + 0.3*timeProgress
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// crossedMilestones returns the thresholds that progress has newly crossed upward since the last check, skipping
// any threshold already present in hit. Crossings are keyed by threshold alone (milestoneKey) in the quest's own
// milestonesHit set, so repeated calls with the same hit set are naturally idempotent.
func crossedMilestones(progress float64, hit map[string]bool) []float64 {
	var crossed []float64
	for _, threshold := range milestoneThresholds {
		key := milestoneKey(threshold)
		if progress >= threshold && !hit[key] {
			crossed = append(crossed, threshold)
		}
	}
	return crossed
}

func milestoneKey(threshold float64) string {
	switch threshold {
	case 0.25:
		return "0.25"
	case 0.5:
		return "0.5"
	case 0.75:
		return "0.75"
	case 1.0:
		return "1.0"
	default:
		return ""
	}
}
