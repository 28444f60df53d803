package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meltforce/freecoach/internal/models"
)

// conn is the driver-specific half of a unit of work. Queries are written
// with ? placeholders; the Postgres adapter rebinds them to $n.
type conn interface {
	exec(ctx context.Context, query string, args ...any) (int64, error)
	queryRow(ctx context.Context, query string, args ...any) scanner
	query(ctx context.Context, query string, args ...any) (rows, error)
	// lockClause is appended to SELECTs that must hold a row lock.
	lockClause() string
}

type scanner interface {
	Scan(dest ...any) error
}

type rows interface {
	scanner
	Next() bool
	Err() error
	Close()
}

// tx implements Tx on top of a conn.
type tx struct {
	c conn
}

var _ Tx = (*tx)(nil)

const (
	userCols     = `id, name, email, age, gender, fitness_level, goals, created_at`
	typeCols     = `id, name, primary_muscle, equipment_needed, default_sets, default_reps, notes`
	planCols     = `id, user_id, title, description, total_days, is_active, created_at`
	dayCols      = `id, plan_id, day_number, title, rest_day`
	instanceCols = `id, plan_day_id, exercise_type_id, order_index, target_sets, target_reps,
		current_sets, current_reps, rest_seconds, notes, last_rpe, last_reported_at, last_adjusted_at`
	reportCols = `id, user_id, plan_id, exercise_instance_id, date, rpe, reps_completed,
		sets_completed, success, duration_seconds`
)

// --- users ---

func (t *tx) InsertUser(ctx context.Context, u *models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	var level *string
	if u.FitnessLevel != nil {
		s := string(*u.FitnessLevel)
		level = &s
	}
	err := t.c.queryRow(ctx,
		`INSERT INTO users (name, email, age, gender, fitness_level, goals, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		u.Name, u.Email, u.Age, u.Gender, level, u.Goals, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (t *tx) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(t.c.queryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("querying user %d: %w", id, err)
	}
	return u, nil
}

func (t *tx) ListUsers(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = 50
	}
	rs, err := t.c.query(ctx, `SELECT `+userCols+` FROM users ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rs.Close()

	var result []models.User
	for rs.Next() {
		u, err := scanUser(rs)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		result = append(result, *u)
	}
	return result, rs.Err()
}

func scanUser(s scanner) (*models.User, error) {
	var u models.User
	var level *string
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Age, &u.Gender, &level, &u.Goals, &u.CreatedAt); err != nil {
		return nil, err
	}
	if level != nil {
		l := models.FitnessLevel(*level)
		u.FitnessLevel = &l
	}
	return &u, nil
}

// --- exercise types ---

// EnsureExerciseType inserts et unless a type with the same name exists, in
// which case et is replaced by the stored row. created reports which one
// happened. A concurrent insert of the same name waits for the other unit of
// work and then resolves to its row.
func (t *tx) EnsureExerciseType(ctx context.Context, et *models.ExerciseType) (created bool, err error) {
	err = t.c.queryRow(ctx,
		`INSERT INTO exercise_types (name, primary_muscle, equipment_needed, default_sets, default_reps, notes)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO NOTHING
		 RETURNING id`,
		et.Name, et.PrimaryMuscle, et.EquipmentNeeded, et.DefaultSets, et.DefaultReps, et.Notes,
	).Scan(&et.ID)
	switch {
	case err == nil:
		return true, nil
	case !errors.Is(err, ErrNotFound):
		return false, fmt.Errorf("inserting exercise type %q: %w", et.Name, err)
	}

	existing, err := t.exerciseTypeByName(ctx, et.Name)
	if err != nil {
		return false, err
	}
	*et = *existing
	return false, nil
}

func (t *tx) exerciseTypeByName(ctx context.Context, name string) (*models.ExerciseType, error) {
	et, err := scanExerciseType(t.c.queryRow(ctx,
		`SELECT `+typeCols+` FROM exercise_types WHERE name = ?`, name))
	if err != nil {
		return nil, fmt.Errorf("querying exercise type %q: %w", name, err)
	}
	return et, nil
}

func (t *tx) ListExerciseTypes(ctx context.Context) ([]models.ExerciseType, error) {
	rs, err := t.c.query(ctx, `SELECT `+typeCols+` FROM exercise_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying exercise types: %w", err)
	}
	defer rs.Close()

	var result []models.ExerciseType
	for rs.Next() {
		et, err := scanExerciseType(rs)
		if err != nil {
			return nil, fmt.Errorf("scanning exercise type: %w", err)
		}
		result = append(result, *et)
	}
	return result, rs.Err()
}

func scanExerciseType(s scanner) (*models.ExerciseType, error) {
	var et models.ExerciseType
	if err := s.Scan(&et.ID, &et.Name, &et.PrimaryMuscle, &et.EquipmentNeeded,
		&et.DefaultSets, &et.DefaultReps, &et.Notes); err != nil {
		return nil, err
	}
	return &et, nil
}

// --- plans ---

func (t *tx) InsertPlan(ctx context.Context, p *models.Plan) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	err := t.c.queryRow(ctx,
		`INSERT INTO plans (user_id, title, description, total_days, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		p.UserID, p.Title, p.Description, p.TotalDays, p.IsActive, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("inserting plan: %w", err)
	}
	return nil
}

func (t *tx) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	p, err := scanPlan(t.c.queryRow(ctx, `SELECT `+planCols+` FROM plans WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("querying plan %d: %w", id, err)
	}
	return p, nil
}

func (t *tx) ListPlansByUser(ctx context.Context, userID int64) ([]models.Plan, error) {
	rs, err := t.c.query(ctx,
		`SELECT `+planCols+` FROM plans WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying plans: %w", err)
	}
	defer rs.Close()

	var result []models.Plan
	for rs.Next() {
		p, err := scanPlan(rs)
		if err != nil {
			return nil, fmt.Errorf("scanning plan: %w", err)
		}
		result = append(result, *p)
	}
	return result, rs.Err()
}

func (t *tx) UpdatePlan(ctx context.Context, p *models.Plan) error {
	n, err := t.c.exec(ctx,
		`UPDATE plans SET title = ?, description = ?, is_active = ? WHERE id = ?`,
		p.Title, p.Description, p.IsActive, p.ID)
	if err != nil {
		return fmt.Errorf("updating plan %d: %w", p.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("updating plan %d: %w", p.ID, ErrNotFound)
	}
	return nil
}

// DeletePlan removes a plan together with its reports, instances and days.
func (t *tx) DeletePlan(ctx context.Context, id int64) error {
	steps := []struct {
		what  string
		query string
	}{
		{"session reports", `DELETE FROM session_reports WHERE plan_id = ?`},
		{"exercise instances", `DELETE FROM exercise_instances
			WHERE plan_day_id IN (SELECT id FROM plan_days WHERE plan_id = ?)`},
		{"plan days", `DELETE FROM plan_days WHERE plan_id = ?`},
	}
	for _, s := range steps {
		if _, err := t.c.exec(ctx, s.query, id); err != nil {
			return fmt.Errorf("deleting %s of plan %d: %w", s.what, id, err)
		}
	}

	n, err := t.c.exec(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting plan %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("deleting plan %d: %w", id, ErrNotFound)
	}
	return nil
}

func scanPlan(s scanner) (*models.Plan, error) {
	var p models.Plan
	if err := s.Scan(&p.ID, &p.UserID, &p.Title, &p.Description, &p.TotalDays, &p.IsActive, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// --- plan days ---

func (t *tx) InsertPlanDay(ctx context.Context, d *models.PlanDay) error {
	err := t.c.queryRow(ctx,
		`INSERT INTO plan_days (plan_id, day_number, title, rest_day)
		 VALUES (?, ?, ?, ?)
		 RETURNING id`,
		d.PlanID, d.DayNumber, d.Title, d.RestDay,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("inserting day %d of plan %d: %w", d.DayNumber, d.PlanID, err)
	}
	return nil
}

func (t *tx) ListPlanDays(ctx context.Context, planID int64) ([]models.PlanDay, error) {
	rs, err := t.c.query(ctx,
		`SELECT `+dayCols+` FROM plan_days WHERE plan_id = ? ORDER BY day_number`, planID)
	if err != nil {
		return nil, fmt.Errorf("querying plan days: %w", err)
	}
	defer rs.Close()

	var result []models.PlanDay
	for rs.Next() {
		var d models.PlanDay
		if err := rs.Scan(&d.ID, &d.PlanID, &d.DayNumber, &d.Title, &d.RestDay); err != nil {
			return nil, fmt.Errorf("scanning plan day: %w", err)
		}
		result = append(result, d)
	}
	return result, rs.Err()
}

// --- exercise instances ---

func (t *tx) InsertExerciseInstance(ctx context.Context, ei *models.ExerciseInstance) error {
	err := t.c.queryRow(ctx,
		`INSERT INTO exercise_instances (plan_day_id, exercise_type_id, order_index,
		 target_sets, target_reps, current_sets, current_reps, rest_seconds, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		ei.PlanDayID, ei.ExerciseTypeID, ei.OrderIndex,
		ei.TargetSets, ei.TargetReps, ei.CurrentSets, ei.CurrentReps, ei.RestSeconds, ei.Notes,
	).Scan(&ei.ID)
	if err != nil {
		return fmt.Errorf("inserting exercise instance: %w", err)
	}
	return nil
}

// ListDayExercises returns a day's instances joined with their types, by order_index.
func (t *tx) ListDayExercises(ctx context.Context, dayID int64) ([]models.ExerciseWithType, error) {
	rs, err := t.c.query(ctx,
		`SELECT ei.id, ei.plan_day_id, ei.exercise_type_id, ei.order_index, ei.target_sets, ei.target_reps,
		 ei.current_sets, ei.current_reps, ei.rest_seconds, ei.notes, ei.last_rpe,
		 ei.last_reported_at, ei.last_adjusted_at,
		 et.id, et.name, et.primary_muscle, et.equipment_needed, et.default_sets, et.default_reps, et.notes
		 FROM exercise_instances ei
		 JOIN exercise_types et ON et.id = ei.exercise_type_id
		 WHERE ei.plan_day_id = ?
		 ORDER BY ei.order_index, ei.id`, dayID)
	if err != nil {
		return nil, fmt.Errorf("querying day exercises: %w", err)
	}
	defer rs.Close()

	var result []models.ExerciseWithType
	for rs.Next() {
		var ew models.ExerciseWithType
		ei, et := &ew.Instance, &ew.ExerciseType
		if err := rs.Scan(&ei.ID, &ei.PlanDayID, &ei.ExerciseTypeID, &ei.OrderIndex,
			&ei.TargetSets, &ei.TargetReps, &ei.CurrentSets, &ei.CurrentReps, &ei.RestSeconds,
			&ei.Notes, &ei.LastRPE, &ei.LastReportedAt, &ei.LastAdjustedAt,
			&et.ID, &et.Name, &et.PrimaryMuscle, &et.EquipmentNeeded, &et.DefaultSets,
			&et.DefaultReps, &et.Notes); err != nil {
			return nil, fmt.Errorf("scanning day exercise: %w", err)
		}
		result = append(result, ew)
	}
	return result, rs.Err()
}

// GetPlanInstance returns the instance only if it belongs to a day of planID.
func (t *tx) GetPlanInstance(ctx context.Context, planID, instanceID int64) (*models.ExerciseInstance, error) {
	ei, err := scanInstance(t.c.queryRow(ctx,
		`SELECT `+prefixed("ei", instanceCols)+`
		 FROM exercise_instances ei
		 JOIN plan_days pd ON pd.id = ei.plan_day_id
		 WHERE ei.id = ? AND pd.plan_id = ?`, instanceID, planID))
	if err != nil {
		return nil, fmt.Errorf("querying instance %d of plan %d: %w", instanceID, planID, err)
	}
	return ei, nil
}

// LockExerciseInstance reads an instance for a read-modify-write. On Postgres
// the row stays locked until the unit of work ends.
func (t *tx) LockExerciseInstance(ctx context.Context, id int64) (*models.ExerciseInstance, error) {
	ei, err := scanInstance(t.c.queryRow(ctx,
		`SELECT `+instanceCols+` FROM exercise_instances WHERE id = ?`+t.c.lockClause(), id))
	if err != nil {
		return nil, fmt.Errorf("locking instance %d: %w", id, err)
	}
	return ei, nil
}

func (t *tx) RecordInstanceReport(ctx context.Context, id int64, rpe float64, at time.Time) error {
	n, err := t.c.exec(ctx,
		`UPDATE exercise_instances SET last_rpe = ?, last_reported_at = ? WHERE id = ?`,
		rpe, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("recording report on instance %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("recording report on instance %d: %w", id, ErrNotFound)
	}
	return nil
}

// SetPrescription writes the current sets/reps. Target columns are never touched.
func (t *tx) SetPrescription(ctx context.Context, id int64, sets, reps int, at time.Time) error {
	n, err := t.c.exec(ctx,
		`UPDATE exercise_instances SET current_sets = ?, current_reps = ?, last_adjusted_at = ? WHERE id = ?`,
		sets, reps, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("updating prescription of instance %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("updating prescription of instance %d: %w", id, ErrNotFound)
	}
	return nil
}

func scanInstance(s scanner) (*models.ExerciseInstance, error) {
	var ei models.ExerciseInstance
	if err := s.Scan(&ei.ID, &ei.PlanDayID, &ei.ExerciseTypeID, &ei.OrderIndex,
		&ei.TargetSets, &ei.TargetReps, &ei.CurrentSets, &ei.CurrentReps, &ei.RestSeconds,
		&ei.Notes, &ei.LastRPE, &ei.LastReportedAt, &ei.LastAdjustedAt); err != nil {
		return nil, err
	}
	return &ei, nil
}

// --- session reports ---

func (t *tx) InsertSessionReport(ctx context.Context, r *models.SessionReport) error {
	if r.Date.IsZero() {
		r.Date = time.Now()
	}
	r.Date = r.Date.UTC()
	err := t.c.queryRow(ctx,
		`INSERT INTO session_reports (user_id, plan_id, exercise_instance_id, date, rpe,
		 reps_completed, sets_completed, success, duration_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		r.UserID, r.PlanID, r.ExerciseInstanceID, r.Date, r.RPE,
		r.RepsCompleted, r.SetsCompleted, r.Success, r.DurationSeconds,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("inserting session report: %w", err)
	}
	return nil
}

// RecentReports returns up to limit reports for (user, instance), newest first.
func (t *tx) RecentReports(ctx context.Context, userID, instanceID int64, limit int) ([]models.SessionReport, error) {
	return t.queryReports(ctx,
		`SELECT `+reportCols+` FROM session_reports
		 WHERE user_id = ? AND exercise_instance_id = ?
		 ORDER BY date DESC, id DESC
		 LIMIT ?`, userID, instanceID, limit)
}

// ReportsSince returns a user's reports dated at or after since, newest first.
func (t *tx) ReportsSince(ctx context.Context, userID int64, since time.Time) ([]models.SessionReport, error) {
	return t.queryReports(ctx,
		`SELECT `+reportCols+` FROM session_reports
		 WHERE user_id = ? AND date >= ?
		 ORDER BY date DESC, id DESC`, userID, since.UTC())
}

func (t *tx) queryReports(ctx context.Context, query string, args ...any) ([]models.SessionReport, error) {
	rs, err := t.c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying session reports: %w", err)
	}
	defer rs.Close()

	var result []models.SessionReport
	for rs.Next() {
		var r models.SessionReport
		if err := rs.Scan(&r.ID, &r.UserID, &r.PlanID, &r.ExerciseInstanceID, &r.Date, &r.RPE,
			&r.RepsCompleted, &r.SetsCompleted, &r.Success, &r.DurationSeconds); err != nil {
			return nil, fmt.Errorf("scanning session report: %w", err)
		}
		result = append(result, r)
	}
	return result, rs.Err()
}

// prefixed qualifies every column in cols with alias.
func prefixed(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
