package coach

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/meltforce/freecoach/internal/apperr"
	"github.com/meltforce/freecoach/internal/models"
	"github.com/meltforce/freecoach/internal/storage"
)

const (
	DefaultUserLimit = 50
	MaxUserLimit     = 500
)

// UserInput is the profile accepted by CreateUser.
type UserInput struct {
	Name         string  `json:"name"`
	Email        *string `json:"email,omitempty"`
	Age          *int    `json:"age,omitempty"`
	Gender       *string `json:"gender,omitempty"`
	FitnessLevel *string `json:"fitness_level,omitempty"`
	Goals        *string `json:"goals,omitempty"`
}

// ExerciseTypeInput is the definition accepted by CreateExerciseType.
type ExerciseTypeInput struct {
	Name            string  `json:"name"`
	PrimaryMuscle   *string `json:"primary_muscle,omitempty"`
	EquipmentNeeded bool    `json:"equipment_needed"`
	DefaultSets     *int    `json:"default_sets,omitempty"`
	DefaultReps     *int    `json:"default_reps,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

// CreateUser validates and stores a user. Gender and fitness level are
// stored lower case.
func (s *Service) CreateUser(ctx context.Context, in UserInput) (*models.User, error) {
	u, err := in.toUser()
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, func(tx storage.Tx) error {
		return tx.InsertUser(ctx, u)
	}); err != nil {
		return nil, classify("creating user", err)
	}
	s.log.Info("user created", "user_id", u.ID)
	return u, nil
}

func (in UserInput) toUser() (*models.User, error) {
	u := &models.User{Name: strings.TrimSpace(in.Name)}
	if n := utf8.RuneCountInString(u.Name); n < 2 || n > 100 {
		return nil, apperr.Invalid("name", "must be 2 to 100 characters")
	}

	if e := optional(in.Email); e != nil {
		if utf8.RuneCountInString(*e) > 128 {
			return nil, apperr.Invalid("email", "must be at most 128 characters")
		}
		if !strings.Contains(*e, "@") {
			return nil, apperr.Invalid("email", "invalid email format")
		}
		u.Email = e
	}

	if in.Age != nil {
		if *in.Age < 10 || *in.Age > 120 {
			return nil, apperr.Invalid("age", "must be between 10 and 120")
		}
		u.Age = in.Age
	}

	if g := optional(in.Gender); g != nil {
		v := strings.ToLower(*g)
		if !slices.Contains(models.Genders, v) {
			return nil, apperr.Invalid("gender", "must be male, female, or other")
		}
		u.Gender = &v
	}

	if l := optional(in.FitnessLevel); l != nil {
		v := models.FitnessLevel(strings.ToLower(*l))
		if !slices.Contains(models.FitnessLevels, v) {
			return nil, apperr.Invalid("fitness_level", "must be beginner, intermediate, or advanced")
		}
		u.FitnessLevel = &v
	}

	if g := optional(in.Goals); g != nil {
		if utf8.RuneCountInString(*g) > 500 {
			return nil, apperr.Invalid("goals", "must be at most 500 characters")
		}
		u.Goals = g
	}
	return u, nil
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u *models.User
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		u, err = tx.GetUser(ctx, id)
		return missing(err, "user %d not found", id)
	})
	if err != nil {
		return nil, classify("reading user", err)
	}
	return u, nil
}

// ListUsers returns up to limit users by id. Zero means DefaultUserLimit.
func (s *Service) ListUsers(ctx context.Context, limit int) ([]models.User, error) {
	if limit == 0 {
		limit = DefaultUserLimit
	}
	if limit < 1 || limit > MaxUserLimit {
		return nil, apperr.Invalid("limit", "must be between 1 and %d", MaxUserLimit)
	}
	users := []models.User{}
	err := s.store.View(ctx, func(tx storage.Tx) error {
		list, err := tx.ListUsers(ctx, limit)
		users = append(users, list...)
		return err
	})
	if err != nil {
		return nil, classify("listing users", err)
	}
	return users, nil
}

// CreateExerciseType stores a new type. Names are unique.
func (s *Service) CreateExerciseType(ctx context.Context, in ExerciseTypeInput) (*models.ExerciseType, error) {
	et, err := in.toExerciseType()
	if err != nil {
		return nil, err
	}
	name := et.Name
	err = s.store.Update(ctx, func(tx storage.Tx) error {
		created, err := tx.EnsureExerciseType(ctx, et)
		if err != nil {
			return err
		}
		if !created {
			return apperr.Invalid("name", "exercise type %q already exists", name)
		}
		return nil
	})
	if err != nil {
		return nil, classify("creating exercise type", err)
	}
	s.log.Info("exercise type created", "exercise_type_id", et.ID, "name", et.Name)
	return et, nil
}

func (in ExerciseTypeInput) toExerciseType() (*models.ExerciseType, error) {
	et := &models.ExerciseType{
		Name:            strings.TrimSpace(in.Name),
		EquipmentNeeded: in.EquipmentNeeded,
		DefaultSets:     3,
		DefaultReps:     10,
	}
	if n := utf8.RuneCountInString(et.Name); n < 2 || n > 100 {
		return nil, apperr.Invalid("name", "must be 2 to 100 characters")
	}
	if m := optional(in.PrimaryMuscle); m != nil {
		if utf8.RuneCountInString(*m) > 50 {
			return nil, apperr.Invalid("primary_muscle", "must be at most 50 characters")
		}
		et.PrimaryMuscle = m
	}
	if in.DefaultSets != nil {
		if *in.DefaultSets < 1 || *in.DefaultSets > 10 {
			return nil, apperr.Invalid("default_sets", "must be between 1 and 10")
		}
		et.DefaultSets = *in.DefaultSets
	}
	if in.DefaultReps != nil {
		if *in.DefaultReps < 1 || *in.DefaultReps > 100 {
			return nil, apperr.Invalid("default_reps", "must be between 1 and 100")
		}
		et.DefaultReps = *in.DefaultReps
	}
	if n := optional(in.Notes); n != nil {
		if utf8.RuneCountInString(*n) > 500 {
			return nil, apperr.Invalid("notes", "must be at most 500 characters")
		}
		et.Notes = n
	}
	return et, nil
}

// ListExerciseTypes returns every type by name.
func (s *Service) ListExerciseTypes(ctx context.Context) ([]models.ExerciseType, error) {
	types := []models.ExerciseType{}
	err := s.store.View(ctx, func(tx storage.Tx) error {
		list, err := tx.ListExerciseTypes(ctx)
		types = append(types, list...)
		return err
	})
	if err != nil {
		return nil, classify("listing exercise types", err)
	}
	return types, nil
}

// optional returns nil for absent or blank strings and a trimmed copy otherwise.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
