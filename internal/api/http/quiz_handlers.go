package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/coursekit/coursekit-lms/internal/auth/middleware"
	"github.com/coursekit/coursekit-lms/internal/progress"
	"github.com/coursekit/coursekit-lms/internal/quiz"
	"github.com/coursekit/coursekit-lms/internal/rbac"
)

// GET /lessons/{lessonID}/quiz (public). Correct-answer flags are included
// only for the owning teacher or an admin; everyone else gets id+text.
func GetQuizHandler(store quiz.Store, authSvc *authmw.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lessonID := chi.URLParam(r, "lessonID")
		sub, role := authmw.IdentityFromRequest(authSvc, r)

		includeAnswers := false
		if sub != "" {
			meta, err := store.LessonMeta(r.Context(), lessonID)
			if err == nil {
				includeAnswers = role == "admin" || sub == meta.TeacherID
			}
		}

		qz, err := store.Fetch(r.Context(), lessonID, includeAnswers)
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"quiz": qz})
	}
}

type saveQuizReq struct {
	Questions []quiz.QuestionDraft `json:"questions" validate:"min=1,dive"`
}

// POST /lessons/{lessonID}/quiz (owner or admin): replaces the lesson's quiz
// as one atomic unit.
func SaveQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lessonID := chi.URLParam(r, "lessonID")
		sub := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())

		var req saveQuizReq
		if err := decodeValid(r, &req); err != nil {
			apiError(w, http.StatusBadRequest, "Invalid data")
			return
		}

		meta, err := store.LessonMeta(r.Context(), lessonID)
		if errors.Is(err, quiz.ErrLessonNotFound) {
			apiError(w, http.StatusNotFound, "Lesson not found")
			return
		}
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if role != "admin" && sub != meta.TeacherID {
			apiError(w, http.StatusForbidden, "Forbidden")
			return
		}

		quizID, err := store.Replace(r.Context(), lessonID, req.Questions)
		if errors.Is(err, quiz.ErrNoCorrectOption) {
			apiError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "quizId": quizID})
	}
}

type submitQuizReq struct {
	Answers []quiz.Answer `json:"answers" validate:"dive"`
}

// POST /lessons/{lessonID}/quiz/submit (public; auth optional). A perfect
// score from an authenticated caller marks the lesson completed, best-effort.
func SubmitQuizHandler(store quiz.Store, authSvc *authmw.AuthService, completer progress.Completer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lessonID := chi.URLParam(r, "lessonID")

		var req submitQuizReq
		if err := decodeValid(r, &req); err != nil {
			apiError(w, http.StatusBadRequest, "Invalid data")
			return
		}

		key, err := store.Key(r.Context(), lessonID)
		if errors.Is(err, quiz.ErrQuizNotFound) {
			apiError(w, http.StatusNotFound, "Quiz not found")
			return
		}
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}

		result := quiz.Grade(key, req.Answers)

		if sub, _ := authmw.IdentityFromRequest(authSvc, r); sub != "" && result.Perfect() {
			completer.Complete(sub, lessonID)
		}

		writeJSON(w, http.StatusOK, result)
	}
}
