package http_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	api "github.com/coursekit/coursekit-lms/internal/api/http"
	authmw "github.com/coursekit/coursekit-lms/internal/auth/middleware"
)

func enrollRouter(env *quizEnv) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(env.auth))
		pr.Post("/courses/{courseID}/enroll", api.EnrollHandler(env.db))
	})
	return r
}

func TestEnroll_CreateThenAlreadyEnrolled(t *testing.T) {
	env := newQuizEnv(t, "h_enroll")
	env.router = enrollRouter(env)
	studentID := env.seedUser(t, "student")
	token := env.token(t, studentID, "student")

	rec := env.do(t, "POST", "/courses/"+env.courseID+"/enroll", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first enroll: status %d, body %s", rec.Code, rec.Body.String())
	}
	var first struct {
		Enrollment      api.Enrollment `json:"enrollment"`
		AlreadyEnrolled bool           `json:"alreadyEnrolled"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.AlreadyEnrolled || first.Enrollment.Progress != 0 || first.Enrollment.Status != "active" {
		t.Fatalf("unexpected enrollment: %+v", first)
	}

	// Second enroll returns the same row instead of erroring.
	rec = env.do(t, "POST", "/courses/"+env.courseID+"/enroll", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("re-enroll: status %d", rec.Code)
	}
	var second struct {
		Enrollment      api.Enrollment `json:"enrollment"`
		AlreadyEnrolled bool           `json:"alreadyEnrolled"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !second.AlreadyEnrolled || second.Enrollment.ID != first.Enrollment.ID {
		t.Fatalf("re-enroll did not return the existing row: %+v vs %+v", second, first)
	}
}

func TestEnroll_OwnCourseForbidden(t *testing.T) {
	env := newQuizEnv(t, "h_enroll_own")
	env.router = enrollRouter(env)

	rec := env.do(t, "POST", "/courses/"+env.courseID+"/enroll", env.token(t, env.teacherID, "teacher"), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", rec.Code)
	}
}

func TestEnroll_MissingCourse(t *testing.T) {
	env := newQuizEnv(t, "h_enroll_missing")
	env.router = enrollRouter(env)

	rec := env.do(t, "POST", "/courses/"+uuid.NewString()+"/enroll", env.token(t, uuid.NewString(), "student"), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}
