package adjust

import (
	"math/rand"
	"testing"

	"github.com/meltforce/freecoach/internal/models"
)

func reportsOf(pairs ...any) []models.SessionReport {
	var out []models.SessionReport
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.SessionReport{
			RPE:           pairs[i].(float64),
			Success:       pairs[i+1].(bool),
			RepsCompleted: 10,
			SetsCompleted: 3,
		})
	}
	return out
}

// TestDecide verifies each rule and its boundary values.
func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		reports []models.SessionReport
		current Prescription
		target  int
		action  Action
		want    Prescription
	}{
		{
			name:    "deload on high exertion",
			reports: reportsOf(9.0, false, 8.8, true),
			current: Prescription{3, 10}, target: 10,
			action: Deload, want: Prescription{2, 9},
		},
		{
			name:    "progress on easy sessions",
			reports: reportsOf(3.5, true, 3.0, true),
			current: Prescription{3, 10}, target: 10,
			action: Progress, want: Prescription{3, 12},
		},
		{
			name:    "deload on low success at moderate exertion",
			reports: reportsOf(6.0, false, 6.0, false, 6.0, true),
			current: Prescription{4, 12}, target: 12,
			action: Deload, want: Prescription{3, 10},
		},
		{
			name:    "deload keeps two sets",
			reports: reportsOf(9.0, true, 9.0, true),
			current: Prescription{2, 5}, target: 5,
			action: Deload, want: Prescription{2, 4},
		},
		{
			name:    "deload never below one rep",
			reports: reportsOf(10.0, false, 10.0, false),
			current: Prescription{1, 1}, target: 1,
			action: Deload, want: Prescription{1, 1},
		},
		{
			name:    "exactly 8.5 deloads",
			reports: reportsOf(8.5, true, 8.5, true),
			current: Prescription{3, 10}, target: 10,
			action: Deload, want: Prescription{2, 9},
		},
		{
			name:    "exactly 4.0 progresses",
			reports: reportsOf(4.0, true, 4.0, true),
			current: Prescription{3, 10}, target: 10,
			action: Progress, want: Prescription{3, 12},
		},
		{
			name:    "progress capped at 1.3 times target",
			reports: reportsOf(2.0, true, 2.0, true),
			current: Prescription{3, 12}, target: 10,
			action: Progress, want: Prescription{3, 13},
		},
		{
			name:    "progress pulls excess reps back to the cap",
			reports: reportsOf(2.0, true, 2.0, true),
			current: Prescription{3, 20}, target: 10,
			action: Progress, want: Prescription{3, 13},
		},
		{
			name:    "maintain in between",
			reports: reportsOf(6.0, true, 7.0, true),
			current: Prescription{3, 10}, target: 10,
			action: Maintain, want: Prescription{3, 10},
		},
		{
			name:    "low exertion with a miss maintains",
			reports: reportsOf(3.0, true, 3.0, true, 3.0, false),
			current: Prescription{3, 10}, target: 10,
			action: Maintain, want: Prescription{3, 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, got := Decide(Summarize(tt.reports), tt.current, tt.target)
			if action != tt.action || got != tt.want {
				t.Errorf("Decide = %s %+v, want %s %+v", action, got, tt.action, tt.want)
			}
		})
	}
}

// TestSummarize verifies the means, including the completion ratio with zero sets.
func TestSummarize(t *testing.T) {
	s := Summarize([]models.SessionReport{
		{RPE: 6, Success: true, RepsCompleted: 30, SetsCompleted: 3},
		{RPE: 8, Success: false, RepsCompleted: 4, SetsCompleted: 0},
	})
	if s.Reports != 2 || s.AvgRPE != 7 || s.SuccessRate != 0.5 {
		t.Errorf("Summarize = %+v", s)
	}
	// (30/3 + 4/1) / 2
	if s.AvgCompletion != 7 {
		t.Errorf("AvgCompletion = %v, want 7", s.AvgCompletion)
	}
	if empty := Summarize(nil); empty != (Signals{}) {
		t.Errorf("Summarize(nil) = %+v, want zero", empty)
	}
}

// TestDecideRepBounds verifies reps stay within [1, floor(target*1.3)] over
// arbitrary sequences of adjustments starting from the target.
func TestDecideRepBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		target := 1 + rng.Intn(100)
		cur := Prescription{Sets: 1 + rng.Intn(10), Reps: target}
		ceiling := RepCeiling(target)

		for step := 0; step < 50; step++ {
			var reports []models.SessionReport
			for i := 0; i < MinReports+rng.Intn(3); i++ {
				reports = append(reports, models.SessionReport{
					RPE:     1 + rng.Float64()*9,
					Success: rng.Intn(2) == 0,
				})
			}
			_, cur = Decide(Summarize(reports), cur, target)
			if cur.Reps < 1 || cur.Reps > ceiling {
				t.Fatalf("target %d step %d: reps %d outside [1, %d]", target, step, cur.Reps, ceiling)
			}
			if cur.Sets < 1 {
				t.Fatalf("target %d step %d: sets %d below 1", target, step, cur.Sets)
			}
		}
	}
}
