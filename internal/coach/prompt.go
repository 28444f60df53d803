package coach

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/meltforce/freecoach/internal/models"
)

const planSchemaExample = `{
  "plan_title": "descriptive title",
  "plan_description": "brief description",
  "days": [
    {
      "day_number": 1,
      "title": "Day 1 - Upper Body",
      "rest_day": false,
      "exercises": [
        {
          "name": "Push-ups",
          "sets": 3,
          "reps": 12,
          "rest_seconds": 60,
          "primary_muscle": "chest",
          "equipment_needed": false,
          "notes": "Keep core tight"
        }
      ]
    }
  ]
}`

type promptProfile struct {
	Name         string  `json:"name"`
	Age          *int    `json:"age"`
	Gender       *string `json:"gender"`
	FitnessLevel string  `json:"fitness_level"`
	Goals        string  `json:"goals"`
}

// BuildPrompt renders the plan-generation prompt for u.
func BuildPrompt(u *models.User, req GenerateRequest) string {
	profile := promptProfile{
		Name:         u.Name,
		Age:          u.Age,
		Gender:       u.Gender,
		FitnessLevel: string(u.Level()),
		Goals:        "general fitness",
	}
	if u.Goals != nil && *u.Goals != "" {
		profile.Goals = *u.Goals
	}
	profileJSON, _ := json.Marshal(profile)

	focus := "balanced fitness"
	if len(req.FocusAreas) > 0 {
		focus = strings.Join(req.FocusAreas, ", ")
	}
	equipment := "bodyweight/minimal equipment"
	if req.IncludeEquipment {
		equipment = "with equipment"
	}
	prefs := req.Preferences
	if prefs == "" {
		prefs = "None"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a certified personal trainer. Create a %d-day workout plan.\n\n", req.Days)
	fmt.Fprintf(&b, "User Profile: %s\n", profileJSON)
	fmt.Fprintf(&b, "Focus Areas: %s\n", focus)
	fmt.Fprintf(&b, "Equipment: %s\n", equipment)
	fmt.Fprintf(&b, "Preferences: %s\n\n", prefs)
	b.WriteString("Return a JSON response with this exact structure:\n")
	b.WriteString(planSchemaExample)
	fmt.Fprintf(&b, "\n\nEnsure exercises are appropriate for %s level. Return ONLY valid JSON.", u.Level())
	return b.String()
}
