// Package normalize turns free-text model output into a validated plan tree.
//
// Extraction is pure: Extract recovers a JSON object from the text and reads
// it into a Draft with named defaults for everything the model left out.
// Materialize then writes a Draft into the store inside the caller's unit of
// work.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/meltforce/freecoach/internal/apperr"
)

// Defaults applied when the model omits or garbles a field.
const (
	DefaultSets         = 3
	DefaultReps         = 10
	DefaultRestSeconds  = 60
	DefaultDayNumber    = 1
	UnknownExerciseName = "Unknown Exercise"
)

// Bounds applied to extracted values.
const (
	MaxDayNumber   = 30
	MinSets        = 1
	MaxSets        = 10
	MinReps        = 1
	MaxReps        = 100
	MinRestSeconds = 30
	MaxRestSeconds = 300
)

// Draft is a plan read from model output, before it has been persisted.
type Draft struct {
	Title       string
	Description string
	Days        []DraftDay
	// Dropped counts day entries left out because every day number was taken.
	Dropped int
}

// DraftDay is one extracted day. DayNumber is unique within the draft.
type DraftDay struct {
	DayNumber int
	Title     string
	RestDay   bool
	// Exercises is always empty for rest days.
	Exercises []DraftExercise
}

// DraftExercise is one extracted exercise entry. Zero Sets, Reps or
// RestSeconds mean the model gave no usable value.
type DraftExercise struct {
	Name            string
	Sets            int
	Reps            int
	RestSeconds     int
	PrimaryMuscle   string
	EquipmentNeeded bool
	Notes           string
}

// InstanceCount returns how many exercise instances the draft will produce.
func (d *Draft) InstanceCount() int {
	n := 0
	for _, day := range d.Days {
		n += len(day.Exercises)
	}
	return n
}

// Extract recovers a plan draft from raw model text. Day numbers are kept
// within 1..totalDays, capped at MaxDayNumber; a non-positive totalDays uses
// the cap alone. Days that cannot be given a free number are dropped and
// counted in Draft.Dropped. Failures are returned as apperr MalformedResponse
// errors carrying an excerpt of the text.
func Extract(raw string, totalDays int) (*Draft, error) {
	text := stripFences(raw)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return nil, apperr.Malformed("no JSON object in model output", raw, nil)
	}
	text = text[start : end+1]

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &top); err != nil {
		return nil, apperr.Malformed("decoding model output", text, err)
	}

	rawDays, ok := top["days"]
	if !ok || !isArray(rawDays) {
		return nil, apperr.Malformed("missing required field days", text, nil)
	}
	var days []json.RawMessage
	if err := json.Unmarshal(rawDays, &days); err != nil {
		return nil, apperr.Malformed("missing required field days", text, err)
	}

	d := &Draft{
		Title:       firstString(top, "plan_title", "title"),
		Description: firstString(top, "plan_description", "description"),
	}

	nums := dayNumbers{limit: totalDays, used: make(map[int]bool, len(days))}
	if nums.limit <= 0 || nums.limit > MaxDayNumber {
		nums.limit = MaxDayNumber
	}
	for _, rd := range days {
		day, ok := extractDay(rd, &nums)
		if !ok {
			d.Dropped++
			continue
		}
		d.Days = append(d.Days, day)
	}
	return d, nil
}

// dayNumbers hands out unique day numbers in 1..limit.
type dayNumbers struct {
	limit int
	used  map[int]bool
}

// assign returns n when it is free and in range, otherwise the lowest free
// number. ok is false when every number is taken.
func (dn *dayNumbers) assign(n int, valid bool) (int, bool) {
	if !valid || n < 1 || n > dn.limit {
		n = DefaultDayNumber
	}
	if dn.used[n] {
		n = 0
		for i := 1; i <= dn.limit; i++ {
			if !dn.used[i] {
				n = i
				break
			}
		}
		if n == 0 {
			return 0, false
		}
	}
	dn.used[n] = true
	return n, true
}

type rawDay struct {
	DayNumber flexInt         `json:"day_number"`
	Title     flexString      `json:"title"`
	RestDay   flexBool        `json:"rest_day"`
	Exercises json.RawMessage `json:"exercises"`
}

type rawExercise struct {
	Name            flexString `json:"name"`
	Sets            flexInt    `json:"sets"`
	Reps            flexInt    `json:"reps"`
	RestSeconds     flexInt    `json:"rest_seconds"`
	PrimaryMuscle   flexString `json:"primary_muscle"`
	EquipmentNeeded flexBool   `json:"equipment_needed"`
	Notes           flexString `json:"notes"`
}

// extractDay reads one day entry. An entry that is not an object is taken
// as an empty training day. ok is false when no day number is left.
func extractDay(b json.RawMessage, nums *dayNumbers) (DraftDay, bool) {
	var rd rawDay
	if err := json.Unmarshal(b, &rd); err != nil {
		rd = rawDay{}
	}

	num, ok := nums.assign(rd.DayNumber.n, rd.DayNumber.ok)
	if !ok {
		return DraftDay{}, false
	}

	day := DraftDay{
		DayNumber: num,
		Title:     rd.Title.s,
		RestDay:   rd.RestDay.b,
	}
	if day.Title == "" {
		day.Title = fmt.Sprintf("Day %d", num)
	}
	if day.RestDay || !isArray(rd.Exercises) {
		return day, true
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(rd.Exercises, &entries); err != nil {
		return day, true
	}
	for _, e := range entries {
		day.Exercises = append(day.Exercises, extractExercise(e))
	}
	return day, true
}

// extractExercise never fails: an entry that is a bare string is taken as
// the exercise name, anything else unreadable becomes an unknown exercise.
func extractExercise(b json.RawMessage) DraftExercise {
	var re rawExercise
	if err := json.Unmarshal(b, &re); err != nil {
		var name flexString
		_ = name.UnmarshalJSON(b)
		re = rawExercise{Name: name}
	}

	ex := DraftExercise{
		Name:            re.Name.s,
		PrimaryMuscle:   re.PrimaryMuscle.s,
		EquipmentNeeded: re.EquipmentNeeded.b,
		Notes:           re.Notes.s,
	}
	if ex.Name == "" {
		ex.Name = UnknownExerciseName
	}
	if re.Sets.ok {
		ex.Sets = clamp(re.Sets.n, MinSets, MaxSets)
	}
	if re.Reps.ok {
		ex.Reps = clamp(re.Reps.n, MinReps, MaxReps)
	}
	if re.RestSeconds.ok {
		ex.RestSeconds = clamp(re.RestSeconds.n, MinRestSeconds, MaxRestSeconds)
	}
	return ex
}

// stripFences removes a leading ```json (or bare ```) fence and a trailing ``` fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func isArray(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '['
}

func firstString(top map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		var fs flexString
		if b, ok := top[k]; ok {
			_ = fs.UnmarshalJSON(b)
			if fs.s != "" {
				return fs.s
			}
		}
	}
	return ""
}

func clamp(n, lo, hi int) int {
	return max(lo, min(n, hi))
}

var leadingInt = regexp.MustCompile(`-?\d+`)

// flexInt accepts JSON numbers, numeric strings and ranges like "8-12"
// (first number wins). Anything else leaves ok false.
type flexInt struct {
	n  int
	ok bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	*f = flexInt{}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return nil
		}
		x = math.Max(-1e6, math.Min(x, 1e6))
		f.n, f.ok = int(math.Round(x)), true
	case string:
		m := leadingInt.FindString(x)
		if m == "" {
			return nil
		}
		if n, err := strconv.Atoi(m); err == nil {
			f.n, f.ok = n, true
		}
	}
	return nil
}

// flexString accepts a JSON string and trims it; other types read as empty.
type flexString struct {
	s string
}

func (f *flexString) UnmarshalJSON(b []byte) error {
	*f = flexString{}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		f.s = strings.TrimSpace(s)
	}
	return nil
}

// flexBool accepts booleans, "true"/"yes"/"1" strings and non-zero numbers.
type flexBool struct {
	b bool
}

func (f *flexBool) UnmarshalJSON(b []byte) error {
	*f = flexBool{}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case bool:
		f.b = x
	case float64:
		f.b = x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "1":
			f.b = true
		}
	}
	return nil
}
