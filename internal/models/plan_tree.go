package models

// PlanTree is a plan with its days and their exercises, as returned by
// plan detail queries and by plan normalization.
type PlanTree struct {
	Plan Plan          `json:"plan"`
	Days []PlanDayTree `json:"days"`
}

// PlanDayTree is one day with its exercises ordered by OrderIndex.
type PlanDayTree struct {
	Day       PlanDay            `json:"day"`
	Exercises []ExerciseWithType `json:"exercises"`
}

// ExerciseWithType pairs an instance with the type it references.
type ExerciseWithType struct {
	Instance     ExerciseInstance `json:"instance"`
	ExerciseType ExerciseType     `json:"exercise_type"`
}

// InstanceCount returns the number of exercise instances in the tree.
func (t *PlanTree) InstanceCount() int {
	n := 0
	for _, d := range t.Days {
		n += len(d.Exercises)
	}
	return n
}
