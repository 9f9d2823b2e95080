package progress_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coursekit/coursekit-lms/internal/db"
	"github.com/coursekit/coursekit-lms/internal/progress"
)

type fixture struct {
	db           *sql.DB
	userID       string
	courseID     string
	enrollmentID string
	lessons      []string
}

// newFixture builds one course with two modules of two lessons each (four
// lessons total) and enrolls a student in it.
func newFixture(t *testing.T, name string) *fixture {
	t.Helper()
	d, err := db.Open(context.Background(), db.DriverSQLite,
		"file:"+name+"?mode=memory&cache=shared&_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	now := time.Now().Unix()
	f := &fixture{
		db:           d,
		userID:       uuid.NewString(),
		courseID:     uuid.NewString(),
		enrollmentID: uuid.NewString(),
	}

	if _, err := d.Exec(
		`INSERT INTO users (id, email, name, password_hash, role, created_at, updated_at)
		 VALUES ($1,$2,'Student','x','student',$3,$3)`,
		f.userID, f.userID+"@test.local", now); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := d.Exec(
		`INSERT INTO courses (id, title, created_at, updated_at) VALUES ($1,'Course',$2,$2)`,
		f.courseID, now); err != nil {
		t.Fatalf("seed course: %v", err)
	}
	for m := 0; m < 2; m++ {
		moduleID := uuid.NewString()
		if _, err := d.Exec(
			`INSERT INTO modules (id, course_id, title, position, created_at, updated_at)
			 VALUES ($1,$2,'Module',$3,$4,$4)`,
			moduleID, f.courseID, m, now); err != nil {
			t.Fatalf("seed module: %v", err)
		}
		for l := 0; l < 2; l++ {
			lessonID := uuid.NewString()
			if _, err := d.Exec(
				`INSERT INTO lessons (id, module_id, title, position, created_at, updated_at)
				 VALUES ($1,$2,'Lesson',$3,$4,$4)`,
				lessonID, moduleID, l, now); err != nil {
				t.Fatalf("seed lesson: %v", err)
			}
			f.lessons = append(f.lessons, lessonID)
		}
	}
	if _, err := d.Exec(
		`INSERT INTO enrollments (id, user_id, course_id, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$4)`,
		f.enrollmentID, f.userID, f.courseID, now); err != nil {
		t.Fatalf("seed enrollment: %v", err)
	}
	return f
}

func (f *fixture) progress(t *testing.T) int {
	t.Helper()
	var pct int
	if err := f.db.QueryRow(`SELECT progress FROM enrollments WHERE id=$1`, f.enrollmentID).Scan(&pct); err != nil {
		t.Fatalf("read progress: %v", err)
	}
	return pct
}

func (f *fixture) completions(t *testing.T) int {
	t.Helper()
	var n int
	if err := f.db.QueryRow(`SELECT COUNT(*) FROM lesson_progress WHERE enrollment_id=$1`, f.enrollmentID).Scan(&n); err != nil {
		t.Fatalf("count completions: %v", err)
	}
	return n
}

func TestMarkLessonCompleted_RecomputesPercentage(t *testing.T) {
	f := newFixture(t, "progress_pct")
	tr := progress.NewTracker(f.db)
	ctx := context.Background()

	if err := tr.MarkLessonCompleted(ctx, f.userID, f.lessons[0]); err != nil {
		t.Fatalf("mark 1: %v", err)
	}
	if got := f.progress(t); got != 25 {
		t.Fatalf("after 1 of 4: progress = %d, want 25", got)
	}

	if err := tr.MarkLessonCompleted(ctx, f.userID, f.lessons[1]); err != nil {
		t.Fatalf("mark 2: %v", err)
	}
	if got := f.progress(t); got != 50 {
		t.Fatalf("after 2 of 4: progress = %d, want 50", got)
	}

	if err := tr.MarkLessonCompleted(ctx, f.userID, f.lessons[2]); err != nil {
		t.Fatalf("mark 3: %v", err)
	}
	if got := f.progress(t); got != 75 {
		t.Fatalf("after 3 of 4: progress = %d, want 75", got)
	}

	if err := tr.MarkLessonCompleted(ctx, f.userID, f.lessons[3]); err != nil {
		t.Fatalf("mark 4: %v", err)
	}
	if got := f.progress(t); got != 100 {
		t.Fatalf("after 4 of 4: progress = %d, want 100", got)
	}
}

func TestMarkLessonCompleted_Idempotent(t *testing.T) {
	f := newFixture(t, "progress_idem")
	tr := progress.NewTracker(f.db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := tr.MarkLessonCompleted(ctx, f.userID, f.lessons[0]); err != nil {
			t.Fatalf("mark #%d: %v", i+1, err)
		}
	}
	if got := f.completions(t); got != 1 {
		t.Fatalf("completion rows = %d, want 1", got)
	}
	if got := f.progress(t); got != 25 {
		t.Fatalf("progress = %d, want 25", got)
	}
}

func TestMarkLessonCompleted_NoOps(t *testing.T) {
	f := newFixture(t, "progress_noop")
	tr := progress.NewTracker(f.db)
	ctx := context.Background()

	// Unknown lesson: nothing recorded, no error.
	if err := tr.MarkLessonCompleted(ctx, f.userID, uuid.NewString()); err != nil {
		t.Fatalf("unknown lesson: %v", err)
	}
	// Known lesson, user not enrolled.
	if err := tr.MarkLessonCompleted(ctx, uuid.NewString(), f.lessons[0]); err != nil {
		t.Fatalf("unenrolled user: %v", err)
	}
	if got := f.completions(t); got != 0 {
		t.Fatalf("completion rows = %d, want 0", got)
	}
	if got := f.progress(t); got != 0 {
		t.Fatalf("progress = %d, want 0", got)
	}
}

func TestSyncCompleter_RunsInline(t *testing.T) {
	f := newFixture(t, "progress_sync")
	c := progress.SyncCompleter{Tracker: progress.NewTracker(f.db)}

	c.Complete(f.userID, f.lessons[0])

	if got := f.completions(t); got != 1 {
		t.Fatalf("completion rows = %d, want 1", got)
	}
	if got := f.progress(t); got != 25 {
		t.Fatalf("progress = %d, want 25", got)
	}
}
