package quiz_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coursekit/coursekit-lms/internal/db"
	"github.com/coursekit/coursekit-lms/internal/quiz"
)

func openTestDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	d, err := db.Open(context.Background(), db.DriverSQLite,
		"file:"+name+"?mode=memory&cache=shared&_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// seedLesson creates teacher -> course -> module -> lesson and returns the
// teacher and lesson ids.
func seedLesson(t *testing.T, d *sql.DB) (teacherID, lessonID string) {
	t.Helper()
	now := time.Now().Unix()
	teacherID = uuid.NewString()
	courseID := uuid.NewString()
	moduleID := uuid.NewString()
	lessonID = uuid.NewString()

	if _, err := d.Exec(
		`INSERT INTO users (id, email, name, password_hash, role, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,'teacher',$5,$5)`,
		teacherID, teacherID+"@test.local", "Teacher", "x", now); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := d.Exec(
		`INSERT INTO courses (id, title, teacher_id, created_at, updated_at) VALUES ($1,'Go 101',$2,$3,$3)`,
		courseID, teacherID, now); err != nil {
		t.Fatalf("seed course: %v", err)
	}
	if _, err := d.Exec(
		`INSERT INTO modules (id, course_id, title, created_at, updated_at) VALUES ($1,$2,'Basics',$3,$3)`,
		moduleID, courseID, now); err != nil {
		t.Fatalf("seed module: %v", err)
	}
	if _, err := d.Exec(
		`INSERT INTO lessons (id, module_id, title, created_at, updated_at) VALUES ($1,$2,'Hello',$3,$3)`,
		lessonID, moduleID, now); err != nil {
		t.Fatalf("seed lesson: %v", err)
	}
	return teacherID, lessonID
}

func draft(text string, correct ...bool) quiz.QuestionDraft {
	q := quiz.QuestionDraft{Text: text}
	for _, c := range correct {
		q.Options = append(q.Options, quiz.OptionDraft{Text: text + "-opt", IsCorrect: c})
	}
	return q
}

func TestSQLStore_ReplaceAndFetch(t *testing.T) {
	d := openTestDB(t, "quiz_replace_fetch")
	teacherID, lessonID := seedLesson(t, d)
	store := quiz.NewSQLStore(d)
	ctx := context.Background()

	quizID, err := store.Replace(ctx, lessonID, []quiz.QuestionDraft{
		draft("What is a goroutine?", false, true),
		draft("What does go.mod declare?", true, false, false),
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if quizID == "" {
		t.Fatalf("expected a quiz id")
	}

	meta, err := store.LessonMeta(ctx, lessonID)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.TeacherID != teacherID {
		t.Fatalf("teacher = %q, want %q", meta.TeacherID, teacherID)
	}

	// Learner view: correctness hidden.
	qz, err := store.Fetch(ctx, lessonID, false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if qz == nil || len(qz.Questions) != 2 {
		t.Fatalf("got %+v, want 2 questions", qz)
	}
	for _, q := range qz.Questions {
		for _, o := range q.Options {
			if o.IsCorrect != nil {
				t.Fatalf("correctness leaked on option %s", o.ID)
			}
		}
	}

	// Author view: correctness present on every option.
	qz, err = store.Fetch(ctx, lessonID, true)
	if err != nil {
		t.Fatalf("fetch with answers: %v", err)
	}
	for _, q := range qz.Questions {
		for _, o := range q.Options {
			if o.IsCorrect == nil {
				t.Fatalf("missing correctness on option %s", o.ID)
			}
		}
	}
}

func TestSQLStore_ReplaceDiscardsPreviousQuiz(t *testing.T) {
	d := openTestDB(t, "quiz_replace_discard")
	_, lessonID := seedLesson(t, d)
	store := quiz.NewSQLStore(d)
	ctx := context.Background()

	firstID, err := store.Replace(ctx, lessonID, []quiz.QuestionDraft{draft("old", true, false)})
	if err != nil {
		t.Fatalf("first replace: %v", err)
	}
	secondID, err := store.Replace(ctx, lessonID, []quiz.QuestionDraft{
		draft("new one", true, false),
		draft("new two", false, true),
	})
	if err != nil {
		t.Fatalf("second replace: %v", err)
	}
	if firstID == secondID {
		t.Fatalf("replace must mint a new quiz id")
	}

	qz, err := store.Fetch(ctx, lessonID, false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if qz.ID != secondID || len(qz.Questions) != 2 {
		t.Fatalf("got quiz %s with %d questions, want %s with 2", qz.ID, len(qz.Questions), secondID)
	}

	var orphans int
	if err := d.QueryRow(`SELECT COUNT(*) FROM quiz_questions WHERE quiz_id=$1`, firstID).Scan(&orphans); err != nil {
		t.Fatalf("count: %v", err)
	}
	if orphans != 0 {
		t.Fatalf("%d questions survived from the replaced quiz", orphans)
	}
}

func TestSQLStore_ReplaceRollsBackOnMissingCorrectOption(t *testing.T) {
	d := openTestDB(t, "quiz_replace_rollback")
	_, lessonID := seedLesson(t, d)
	store := quiz.NewSQLStore(d)
	ctx := context.Background()

	keptID, err := store.Replace(ctx, lessonID, []quiz.QuestionDraft{draft("keep me", true, false)})
	if err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	// Second question has no correct option: the whole save must roll back,
	// first question included.
	_, err = store.Replace(ctx, lessonID, []quiz.QuestionDraft{
		draft("fine", true, false),
		draft("broken", false, false),
	})
	if !errors.Is(err, quiz.ErrNoCorrectOption) {
		t.Fatalf("err = %v, want ErrNoCorrectOption", err)
	}
	if err.Error() != "Each question must have at least one correct option" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	qz, err := store.Fetch(ctx, lessonID, false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if qz == nil || qz.ID != keptID {
		t.Fatalf("previous quiz not preserved: got %+v, want id %s", qz, keptID)
	}
	if len(qz.Questions) != 1 || qz.Questions[0].Text != "keep me" {
		t.Fatalf("previous content changed: %+v", qz.Questions)
	}
}

func TestSQLStore_MissingLessonAndQuiz(t *testing.T) {
	d := openTestDB(t, "quiz_missing")
	_, lessonID := seedLesson(t, d)
	store := quiz.NewSQLStore(d)
	ctx := context.Background()

	if _, err := store.Replace(ctx, uuid.NewString(), []quiz.QuestionDraft{draft("x", true)}); !errors.Is(err, quiz.ErrLessonNotFound) {
		t.Fatalf("replace on missing lesson: err = %v", err)
	}
	if _, err := store.LessonMeta(ctx, uuid.NewString()); !errors.Is(err, quiz.ErrLessonNotFound) {
		t.Fatalf("meta on missing lesson: err = %v", err)
	}

	// Lesson exists but has no quiz.
	qz, err := store.Fetch(ctx, lessonID, false)
	if err != nil || qz != nil {
		t.Fatalf("fetch without quiz: (%+v, %v), want (nil, nil)", qz, err)
	}
	if _, err := store.Key(ctx, lessonID); !errors.Is(err, quiz.ErrQuizNotFound) {
		t.Fatalf("key without quiz: err = %v", err)
	}
}

func TestSQLStore_SaveThenGrade(t *testing.T) {
	d := openTestDB(t, "quiz_save_grade")
	_, lessonID := seedLesson(t, d)
	store := quiz.NewSQLStore(d)
	ctx := context.Background()

	if _, err := store.Replace(ctx, lessonID, []quiz.QuestionDraft{
		draft("Q1", true, false),
		draft("Q2", true, false),
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	key, err := store.Key(ctx, lessonID)
	if err != nil {
		t.Fatalf("key: %v", err)
	}

	// Answer Q1 right and Q2 wrong.
	var answers []quiz.Answer
	first := true
	for qid, qk := range key {
		for oid, correct := range qk.Options {
			if correct == first {
				answers = append(answers, quiz.Answer{QuestionID: qid, OptionID: oid})
				break
			}
		}
		first = false
	}

	res := quiz.Grade(key, answers)
	if res.TotalQuestions != 2 || res.CorrectCount != 1 {
		t.Fatalf("result = %+v, want 1/2", res)
	}
	if res.Perfect() {
		t.Fatalf("1/2 must not be perfect")
	}
}

func TestSQLStore_KeyCoversEveryQuestion(t *testing.T) {
	d := openTestDB(t, "quiz_key")
	_, lessonID := seedLesson(t, d)
	store := quiz.NewSQLStore(d)
	ctx := context.Background()

	if _, err := store.Replace(ctx, lessonID, []quiz.QuestionDraft{
		draft("one", true, false),
		draft("two", false, true, false),
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	key, err := store.Key(ctx, lessonID)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if len(key) != 2 {
		t.Fatalf("key has %d questions, want 2", len(key))
	}
	optCounts := map[int]bool{}
	for _, qk := range key {
		correct := 0
		for _, c := range qk.Options {
			if c {
				correct++
			}
		}
		if correct != 1 {
			t.Fatalf("question has %d correct options, want 1", correct)
		}
		optCounts[len(qk.Options)] = true
	}
	if !optCounts[2] || !optCounts[3] {
		t.Fatalf("option sets not loaded: %v", optCounts)
	}
}
