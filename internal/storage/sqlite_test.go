package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/meltforce/freecoach/internal/models"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "coach.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func ptr[T any](v T) *T { return &v }

// seedPlan creates a user, one type and a two-day plan with one instance on day 1.
func seedPlan(t *testing.T, s Store) (userID, planID, instanceID int64) {
	t.Helper()
	ctx := context.Background()
	err := s.Update(ctx, func(tx Tx) error {
		u := &models.User{Name: "Ada", FitnessLevel: ptr(models.Intermediate)}
		if err := tx.InsertUser(ctx, u); err != nil {
			return err
		}
		et := &models.ExerciseType{Name: "Squat", DefaultSets: 3, DefaultReps: 10}
		if _, err := tx.EnsureExerciseType(ctx, et); err != nil {
			return err
		}
		p := &models.Plan{UserID: u.ID, Title: "Plan", TotalDays: 2, IsActive: true}
		if err := tx.InsertPlan(ctx, p); err != nil {
			return err
		}
		d1 := &models.PlanDay{PlanID: p.ID, DayNumber: 1}
		if err := tx.InsertPlanDay(ctx, d1); err != nil {
			return err
		}
		d2 := &models.PlanDay{PlanID: p.ID, DayNumber: 2, RestDay: true}
		if err := tx.InsertPlanDay(ctx, d2); err != nil {
			return err
		}
		ei := &models.ExerciseInstance{
			PlanDayID: d1.ID, ExerciseTypeID: et.ID,
			TargetSets: 3, TargetReps: 10, CurrentSets: 3, CurrentReps: 10, RestSeconds: 60,
		}
		if err := tx.InsertExerciseInstance(ctx, ei); err != nil {
			return err
		}
		userID, planID, instanceID = u.ID, p.ID, ei.ID
		return nil
	})
	if err != nil {
		t.Fatalf("seeding plan: %v", err)
	}
	return userID, planID, instanceID
}

// TestUserRoundTrip verifies optional user fields survive a write and read.
func TestUserRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	in := &models.User{
		Name:         "Grace",
		Email:        ptr("grace@example.com"),
		Age:          ptr(41),
		Gender:       ptr("female"),
		FitnessLevel: ptr(models.Advanced),
	}
	if err := s.Update(ctx, func(tx Tx) error { return tx.InsertUser(ctx, in) }); err != nil {
		t.Fatalf("inserting user: %v", err)
	}
	if in.ID == 0 {
		t.Fatal("expected id to be assigned")
	}

	var got *models.User
	err := s.View(ctx, func(tx Tx) error {
		var err error
		got, err = tx.GetUser(ctx, in.ID)
		return err
	})
	if err != nil {
		t.Fatalf("getting user: %v", err)
	}
	if got.Name != "Grace" || *got.Email != "grace@example.com" || *got.Age != 41 {
		t.Errorf("got %+v", got)
	}
	if got.Goals != nil {
		t.Errorf("goals = %v, want nil", *got.Goals)
	}
	if got.Level() != models.Advanced {
		t.Errorf("level = %q, want advanced", got.Level())
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

// TestGetUserNotFound verifies absence is reported as ErrNotFound.
func TestGetUserNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	err := s.View(ctx, func(tx Tx) error {
		_, err := tx.GetUser(ctx, 42)
		return err
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// TestEnsureExerciseType verifies a new name is inserted and a known name
// resolves to the stored row without touching it.
func TestEnsureExerciseType(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := &models.ExerciseType{Name: "Plank", DefaultSets: 3, DefaultReps: 10, PrimaryMuscle: ptr("core")}
	second := &models.ExerciseType{Name: "Plank", DefaultSets: 5, DefaultReps: 20}
	var created1, created2 bool
	err := s.Update(ctx, func(tx Tx) error {
		var err error
		if created1, err = tx.EnsureExerciseType(ctx, first); err != nil {
			return err
		}
		created2, err = tx.EnsureExerciseType(ctx, second)
		return err
	})
	if err != nil {
		t.Fatalf("EnsureExerciseType: %v", err)
	}
	if !created1 || created2 {
		t.Errorf("created = %v/%v, want true/false", created1, created2)
	}
	if second.ID != first.ID {
		t.Errorf("second id = %d, want %d", second.ID, first.ID)
	}
	if second.DefaultSets != 3 || second.DefaultReps != 10 || second.PrimaryMuscle == nil || *second.PrimaryMuscle != "core" {
		t.Errorf("second = %+v, want the stored row", second)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM exercise_types`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("got %d types, want 1", n)
	}
}

// TestUpdateRollsBackOnError verifies nothing from a failed unit of work is visible.
func TestUpdateRollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx Tx) error {
		if err := tx.InsertUser(ctx, &models.User{Name: "Temp"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	var users []models.User
	if err := s.View(ctx, func(tx Tx) error {
		var err error
		users, err = tx.ListUsers(ctx, 10)
		return err
	}); err != nil {
		t.Fatal(err)
	}
	if len(users) != 0 {
		t.Errorf("got %d users after rollback, want 0", len(users))
	}
}

// TestUpdateRollsBackOnPanic verifies a panicking callback rolls back and re-panics.
func TestUpdateRollsBackOnPanic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = s.Update(ctx, func(tx Tx) error {
			if err := tx.InsertUser(ctx, &models.User{Name: "Temp"}); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var users []models.User
	if err := s.View(ctx, func(tx Tx) error {
		var err error
		users, err = tx.ListUsers(ctx, 10)
		return err
	}); err != nil {
		t.Fatal(err)
	}
	if len(users) != 0 {
		t.Errorf("got %d users after panic, want 0", len(users))
	}
}

// TestPlanTreeQueries verifies days come back by day_number and instances join their type.
func TestPlanTreeQueries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, planID, instanceID := seedPlan(t, s)

	err := s.View(ctx, func(tx Tx) error {
		days, err := tx.ListPlanDays(ctx, planID)
		if err != nil {
			return err
		}
		if len(days) != 2 || days[0].DayNumber != 1 || !days[1].RestDay {
			t.Errorf("days = %+v", days)
		}
		exs, err := tx.ListDayExercises(ctx, days[0].ID)
		if err != nil {
			return err
		}
		if len(exs) != 1 {
			t.Fatalf("got %d exercises, want 1", len(exs))
		}
		if exs[0].Instance.ID != instanceID || exs[0].ExerciseType.Name != "Squat" {
			t.Errorf("exercise = %+v", exs[0])
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// TestGetPlanInstanceMembership verifies an instance is only found through its own plan.
func TestGetPlanInstanceMembership(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, planA, instA := seedPlan(t, s)

	var planB int64
	err := s.Update(ctx, func(tx Tx) error {
		u := &models.User{Name: "Bob"}
		if err := tx.InsertUser(ctx, u); err != nil {
			return err
		}
		p := &models.Plan{UserID: u.ID, Title: "Other", TotalDays: 1, IsActive: true}
		if err := tx.InsertPlan(ctx, p); err != nil {
			return err
		}
		planB = p.ID
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.View(ctx, func(tx Tx) error {
		if _, err := tx.GetPlanInstance(ctx, planA, instA); err != nil {
			t.Errorf("own plan: %v", err)
		}
		if _, err := tx.GetPlanInstance(ctx, planB, instA); !errors.Is(err, ErrNotFound) {
			t.Errorf("other plan: err = %v, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// TestRecentReportsOrdering verifies newest-first ordering with id as tie-breaker and the limit.
func TestRecentReportsOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	userID, planID, instanceID := seedPlan(t, s)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	dates := []time.Time{base, base.Add(48 * time.Hour), base.Add(24 * time.Hour), base.Add(48 * time.Hour)}
	err := s.Update(ctx, func(tx Tx) error {
		for i, d := range dates {
			r := &models.SessionReport{
				UserID: userID, PlanID: planID, ExerciseInstanceID: instanceID,
				Date: d, RPE: float64(5 + i), RepsCompleted: 10, SetsCompleted: 3, Success: true,
			}
			if err := tx.InsertSessionReport(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	var got []models.SessionReport
	err = s.View(ctx, func(tx Tx) error {
		var err error
		got, err = tx.RecentReports(ctx, userID, instanceID, 3)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	// Two reports share the latest date; the later insert (rpe 8) wins.
	wantRPE := []float64{8, 6, 7}
	if len(got) != len(wantRPE) {
		t.Fatalf("got %d reports, want %d", len(got), len(wantRPE))
	}
	for i, r := range got {
		if r.RPE != wantRPE[i] {
			t.Errorf("report %d rpe = %v, want %v", i, r.RPE, wantRPE[i])
		}
	}
}

// TestReportsSince verifies the lower date bound is inclusive and older reports are excluded.
func TestReportsSince(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	userID, planID, instanceID := seedPlan(t, s)

	cutoff := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	err := s.Update(ctx, func(tx Tx) error {
		for _, d := range []time.Time{cutoff.Add(-time.Hour), cutoff, cutoff.Add(36 * time.Hour)} {
			r := &models.SessionReport{
				UserID: userID, PlanID: planID, ExerciseInstanceID: instanceID,
				Date: d, RPE: 6, RepsCompleted: 10, SetsCompleted: 3, Success: true,
			}
			if err := tx.InsertSessionReport(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	var got []models.SessionReport
	if err := s.View(ctx, func(tx Tx) error {
		var err error
		got, err = tx.ReportsSince(ctx, userID, cutoff)
		return err
	}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d reports, want 2", len(got))
	}
	if !got[0].Date.Equal(cutoff.Add(36 * time.Hour)) {
		t.Errorf("first report date = %v, want newest", got[0].Date)
	}
}

// TestSetPrescriptionKeepsTarget verifies adjustments only touch the current columns.
func TestSetPrescriptionKeepsTarget(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, _, instanceID := seedPlan(t, s)

	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	if err := s.Update(ctx, func(tx Tx) error {
		return tx.SetPrescription(ctx, instanceID, 2, 9, at)
	}); err != nil {
		t.Fatal(err)
	}

	var ei *models.ExerciseInstance
	if err := s.View(ctx, func(tx Tx) error {
		var err error
		ei, err = tx.LockExerciseInstance(ctx, instanceID)
		return err
	}); err != nil {
		t.Fatal(err)
	}
	if ei.CurrentSets != 2 || ei.CurrentReps != 9 {
		t.Errorf("current = %dx%d, want 2x9", ei.CurrentSets, ei.CurrentReps)
	}
	if ei.TargetSets != 3 || ei.TargetReps != 10 {
		t.Errorf("target = %dx%d, want 3x10", ei.TargetSets, ei.TargetReps)
	}
	if ei.LastAdjustedAt == nil || !ei.LastAdjustedAt.Equal(at) {
		t.Errorf("last_adjusted_at = %v, want %v", ei.LastAdjustedAt, at)
	}

	err := s.Update(ctx, func(tx Tx) error { return tx.SetPrescription(ctx, 9999, 1, 1, at) })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing instance: err = %v, want ErrNotFound", err)
	}
}

// TestDeletePlanCascades verifies deleting a plan removes its days, instances and reports.
func TestDeletePlanCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	userID, planID, instanceID := seedPlan(t, s)

	if err := s.Update(ctx, func(tx Tx) error {
		return tx.InsertSessionReport(ctx, &models.SessionReport{
			UserID: userID, PlanID: planID, ExerciseInstanceID: instanceID,
			RPE: 7, RepsCompleted: 10, SetsCompleted: 3, Success: true,
		})
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.Update(ctx, func(tx Tx) error { return tx.DeletePlan(ctx, planID) }); err != nil {
		t.Fatalf("deleting plan: %v", err)
	}

	err := s.View(ctx, func(tx Tx) error {
		if _, err := tx.GetPlan(ctx, planID); !errors.Is(err, ErrNotFound) {
			t.Errorf("plan: err = %v, want ErrNotFound", err)
		}
		if days, _ := tx.ListPlanDays(ctx, planID); len(days) != 0 {
			t.Errorf("got %d days, want 0", len(days))
		}
		if _, err := tx.LockExerciseInstance(ctx, instanceID); !errors.Is(err, ErrNotFound) {
			t.Errorf("instance: err = %v, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	var reports int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM session_reports WHERE plan_id = ?`, planID).Scan(&reports); err != nil {
		t.Fatal(err)
	}
	if reports != 0 {
		t.Errorf("got %d reports, want 0", reports)
	}

	err = s.Update(ctx, func(tx Tx) error { return tx.DeletePlan(ctx, planID) })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

// TestRebind verifies ? placeholders become numbered Postgres parameters.
func TestRebind(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM t WHERE a = ?", "SELECT * FROM t WHERE a = $1"},
		{"UPDATE t SET a = ?, b = ? WHERE id = ?", "UPDATE t SET a = $1, b = $2 WHERE id = $3"},
	}
	for _, tt := range tests {
		if got := rebind(tt.in); got != tt.want {
			t.Errorf("rebind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
