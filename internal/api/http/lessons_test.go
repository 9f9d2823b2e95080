package http_test

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	api "github.com/coursekit/coursekit-lms/internal/api/http"
)

func TestGetLesson_StudentViewMarksCompletion(t *testing.T) {
	env := newQuizEnv(t, "h_lesson_view")

	r := chi.NewRouter()
	r.Get("/lessons/{lessonID}", api.GetLessonHandler(env.db, env.auth, env.completer))
	env.router = r

	studentID := uuid.NewString()
	rec := env.do(t, "GET", "/lessons/"+env.lessonID, env.token(t, studentID, "student"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	if env.completer.count() != 1 {
		t.Fatalf("completion calls = %d, want 1", env.completer.count())
	}
	if got := env.completer.calls[0]; got[0] != studentID || got[1] != env.lessonID {
		t.Fatalf("completion call = %v", got)
	}
}

func TestGetLesson_NoCompletionForAnonymousOrTeacher(t *testing.T) {
	env := newQuizEnv(t, "h_lesson_view_skip")

	r := chi.NewRouter()
	r.Get("/lessons/{lessonID}", api.GetLessonHandler(env.db, env.auth, env.completer))
	env.router = r

	for _, token := range []string{"", env.token(t, env.teacherID, "teacher")} {
		rec := env.do(t, "GET", "/lessons/"+env.lessonID, token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d", rec.Code)
		}
	}
	if env.completer.count() != 0 {
		t.Fatalf("completion calls = %d, want 0", env.completer.count())
	}
}

func TestGetLesson_Missing(t *testing.T) {
	env := newQuizEnv(t, "h_lesson_missing")

	r := chi.NewRouter()
	r.Get("/lessons/{lessonID}", api.GetLessonHandler(env.db, env.auth, env.completer))
	env.router = r

	rec := env.do(t, "GET", "/lessons/"+uuid.NewString(), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}
