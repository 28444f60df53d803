package models

import (
	"time"
)

// FitnessLevel is the self-reported training experience of a user.
type FitnessLevel string

const (
	Beginner     FitnessLevel = "beginner"
	Intermediate FitnessLevel = "intermediate"
	Advanced     FitnessLevel = "advanced"
)

// FitnessLevels lists the accepted fitness levels.
var FitnessLevels = []FitnessLevel{Beginner, Intermediate, Advanced}

// Genders lists the accepted gender values.
var Genders = []string{"male", "female", "other"}

// User is a person following one or more plans.
type User struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Email        *string       `json:"email"`
	Age          *int          `json:"age"`
	Gender       *string       `json:"gender"`
	FitnessLevel *FitnessLevel `json:"fitness_level"`
	Goals        *string       `json:"goals"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Level returns the user's fitness level, defaulting to beginner.
func (u *User) Level() FitnessLevel {
	if u.FitnessLevel == nil || *u.FitnessLevel == "" {
		return Beginner
	}
	return *u.FitnessLevel
}

// ExerciseType is a named movement template shared across plans.
// Name is the dedup key.
type ExerciseType struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	PrimaryMuscle   *string `json:"primary_muscle"`
	EquipmentNeeded bool    `json:"equipment_needed"`
	DefaultSets     int     `json:"default_sets"`
	DefaultReps     int     `json:"default_reps"`
	Notes           *string `json:"notes"`
}

// Plan is a multi-day program owned by one user.
type Plan struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	TotalDays   int       `json:"total_days"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// PlanDay is one day of a plan. DayNumber is unique within the plan.
type PlanDay struct {
	ID        int64   `json:"id"`
	PlanID    int64   `json:"plan_id"`
	DayNumber int     `json:"day_number"`
	Title     *string `json:"title"`
	RestDay   bool    `json:"rest_day"`
}

// ExerciseInstance is one prescribed exercise on a plan day.
// TargetSets/TargetReps never change after creation; CurrentSets/CurrentReps
// are rewritten by the adjustment engine.
type ExerciseInstance struct {
	ID             int64      `json:"id"`
	PlanDayID      int64      `json:"plan_day_id"`
	ExerciseTypeID int64      `json:"exercise_type_id"`
	OrderIndex     int        `json:"order_index"`
	TargetSets     int        `json:"target_sets"`
	TargetReps     int        `json:"target_reps"`
	CurrentSets    int        `json:"current_sets"`
	CurrentReps    int        `json:"current_reps"`
	RestSeconds    int        `json:"rest_seconds"`
	Notes          *string    `json:"notes"`
	LastRPE        *float64   `json:"last_rpe"`
	LastReportedAt *time.Time `json:"last_reported_at"`
	LastAdjustedAt *time.Time `json:"last_adjusted_at"`
}

// SessionReport is an immutable record of one completed attempt at an
// exercise instance.
type SessionReport struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	PlanID             int64     `json:"plan_id"`
	ExerciseInstanceID int64     `json:"exercise_instance_id"`
	Date               time.Time `json:"date"`
	RPE                float64   `json:"rpe"`
	RepsCompleted      int       `json:"reps_completed"`
	SetsCompleted      int       `json:"sets_completed"`
	Success            bool      `json:"success"`
	DurationSeconds    *int      `json:"duration_seconds"`
}
