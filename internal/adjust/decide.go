// Package adjust tunes the current sets/reps of exercise instances from
// their recent session reports.
package adjust

import (
	"math"

	"github.com/meltforce/freecoach/internal/models"
)

// Action is the result of one adjustment evaluation.
type Action string

const (
	Deload   Action = "deload"
	Progress Action = "progress"
	Maintain Action = "maintain"
	// Skipped means there were too few reports to judge.
	Skipped Action = "skipped"
	// Missing means the instance no longer exists.
	Missing Action = "missing"
	// Failed is only used for metrics and logs; Adjust returns an error instead.
	Failed Action = "failed"
)

// Decision thresholds.
const (
	MinReports = 2

	DeloadRPE         = 8.5
	DeloadSuccessRate = 0.4
	DeloadRepFactor   = 0.9

	ProgressRPE         = 4.0
	ProgressSuccessRate = 0.9
	ProgressRepStep     = 2
	// ProgressRepCap bounds current reps at this multiple of the target.
	ProgressRepCap = 1.3
)

// Prescription is a sets x reps pair.
type Prescription struct {
	Sets int `json:"sets"`
	Reps int `json:"reps"`
}

// Signals summarizes a window of reports.
type Signals struct {
	Reports     int     `json:"reports"`
	AvgRPE      float64 `json:"avg_rpe"`
	SuccessRate float64 `json:"success_rate"`
	// AvgCompletion is the mean of reps/sets per report. It does not feed
	// the decision.
	AvgCompletion float64 `json:"avg_completion"`
}

// Summarize computes the signals of a non-empty report window.
func Summarize(reports []models.SessionReport) Signals {
	s := Signals{Reports: len(reports)}
	if len(reports) == 0 {
		return s
	}
	var rpe, success, completion float64
	for _, r := range reports {
		rpe += r.RPE
		if r.Success {
			success++
		}
		completion += float64(r.RepsCompleted) / float64(max(r.SetsCompleted, 1))
	}
	n := float64(len(reports))
	s.AvgRPE = rpe / n
	s.SuccessRate = success / n
	s.AvgCompletion = completion / n
	return s
}

// Decide picks the action for s and the resulting prescription. The first
// matching rule wins: deload, then progress, otherwise maintain.
func Decide(s Signals, current Prescription, targetReps int) (Action, Prescription) {
	switch {
	case s.AvgRPE >= DeloadRPE || s.SuccessRate <= DeloadSuccessRate:
		next := Prescription{
			Sets: current.Sets,
			Reps: max(1, int(math.Floor(float64(current.Reps)*DeloadRepFactor))),
		}
		if current.Sets > 2 {
			next.Sets = current.Sets - 1
		}
		return Deload, next

	case s.AvgRPE <= ProgressRPE && s.SuccessRate >= ProgressSuccessRate:
		limit := RepCeiling(targetReps)
		return Progress, Prescription{
			Sets: current.Sets,
			Reps: max(1, min(current.Reps+ProgressRepStep, limit)),
		}

	default:
		return Maintain, current
	}
}

// RepCeiling is the highest current reps progression can reach for a target.
func RepCeiling(targetReps int) int {
	return int(math.Floor(float64(targetReps) * ProgressRepCap))
}
