package http

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/coursekit/coursekit-lms/internal/auth/middleware"
	"github.com/coursekit/coursekit-lms/internal/progress"
	"github.com/coursekit/coursekit-lms/internal/quiz"
	"github.com/coursekit/coursekit-lms/internal/rbac"
)

type Lesson struct {
	ID        string  `json:"id"`
	ModuleID  string  `json:"module_id"`
	Title     string  `json:"title"`
	Content   *string `json:"content"`
	VideoURL  *string `json:"video_url"`
	Position  int     `json:"position"`
	CreatedAt int64   `json:"created_at"`
	UpdatedAt int64   `json:"updated_at"`

	ModuleTitle     string  `json:"module_title,omitempty"`
	CourseID        string  `json:"course_id,omitempty"`
	CourseTitle     string  `json:"course_title,omitempty"`
	CourseTeacherID *string `json:"course_teacher_id,omitempty"`
}

type lessonCreateReq struct {
	Title    string  `json:"title" validate:"required,max=255"`
	Content  *string `json:"content,omitempty"`
	VideoURL *string `json:"videoUrl,omitempty" validate:"omitempty,url"`
	Position *int    `json:"position,omitempty"`
}

// POST /modules/{moduleID}/lessons (owner or admin)
func CreateLessonHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		moduleID := chi.URLParam(r, "moduleID")
		sub := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())

		var req lessonCreateReq
		if err := decodeValid(r, &req); err != nil {
			apiError(w, http.StatusBadRequest, "Invalid data")
			return
		}

		courseID, err := moduleCourseID(r.Context(), db, moduleID)
		if errors.Is(err, sql.ErrNoRows) {
			apiError(w, http.StatusNotFound, "Module not found")
			return
		}
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		allowed, _, err := canEditCourse(r.Context(), db, sub, role, courseID)
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if !allowed {
			apiError(w, http.StatusForbidden, "Forbidden")
			return
		}

		pos := 0
		if req.Position != nil {
			pos = *req.Position
		}
		now := time.Now().Unix()
		l := Lesson{ID: uuid.NewString(), ModuleID: moduleID, Title: req.Title, Content: req.Content,
			VideoURL: req.VideoURL, Position: pos, CreatedAt: now, UpdatedAt: now}
		if _, err := db.ExecContext(r.Context(),
			`INSERT INTO lessons (id, module_id, title, content, video_url, position, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			l.ID, l.ModuleID, l.Title, l.Content, l.VideoURL, l.Position, now, now); err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"lesson": l})
	}
}

// GET /lessons/{lessonID} (public). A student viewing the lesson marks it
// completed, fire-and-forget: the lesson is returned whether or not the
// progress bookkeeping succeeds.
func GetLessonHandler(db *sql.DB, authSvc *authmw.AuthService, completer progress.Completer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "lessonID")

		var l Lesson
		var content, videoURL, teacherID sql.NullString
		err := db.QueryRowContext(r.Context(),
			`SELECT l.id, l.module_id, l.title, l.content, l.video_url, l.position, l.created_at, l.updated_at,
			        m.title, m.course_id, c.title, c.teacher_id
			   FROM lessons l
			   JOIN modules m ON m.id = l.module_id
			   JOIN courses c ON c.id = m.course_id
			  WHERE l.id=$1`, id).
			Scan(&l.ID, &l.ModuleID, &l.Title, &content, &videoURL, &l.Position, &l.CreatedAt, &l.UpdatedAt,
				&l.ModuleTitle, &l.CourseID, &l.CourseTitle, &teacherID)
		if errors.Is(err, sql.ErrNoRows) {
			apiError(w, http.StatusNotFound, "Not found")
			return
		}
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if content.Valid {
			l.Content = &content.String
		}
		if videoURL.Valid {
			l.VideoURL = &videoURL.String
		}
		if teacherID.Valid {
			l.CourseTeacherID = &teacherID.String
		}

		if sub, role := authmw.IdentityFromRequest(authSvc, r); sub != "" && role == "student" {
			completer.Complete(sub, l.ID)
		}

		writeJSON(w, http.StatusOK, map[string]any{"lesson": l})
	}
}

type lessonUpdateReq struct {
	Title    *string `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Content  *string `json:"content,omitempty"`
	VideoURL *string `json:"videoUrl,omitempty" validate:"omitempty,url"`
	Position *int    `json:"position,omitempty"`
}

// PUT /lessons/{lessonID} (owner or admin)
func UpdateLessonHandler(db *sql.DB, store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "lessonID")
		sub := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())

		var req lessonUpdateReq
		if err := decodeValid(r, &req); err != nil {
			apiError(w, http.StatusBadRequest, "Invalid data")
			return
		}
		if req.Title == nil && req.Content == nil && req.VideoURL == nil && req.Position == nil {
			apiError(w, http.StatusBadRequest, "Nothing to update")
			return
		}

		meta, err := store.LessonMeta(r.Context(), id)
		if errors.Is(err, quiz.ErrLessonNotFound) {
			apiError(w, http.StatusNotFound, "Not found")
			return
		}
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		allowed, _, err := canEditCourse(r.Context(), db, sub, role, meta.CourseID)
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if !allowed {
			apiError(w, http.StatusForbidden, "Forbidden")
			return
		}

		now := time.Now().Unix()
		set := func(col string, val any) bool {
			_, err := db.ExecContext(r.Context(),
				`UPDATE lessons SET `+col+`=$1, updated_at=$2 WHERE id=$3`, val, now, id)
			if err != nil {
				apiError(w, http.StatusInternalServerError, "Server error")
				return false
			}
			return true
		}
		if req.Title != nil && !set("title", *req.Title) {
			return
		}
		if req.Content != nil && !set("content", *req.Content) {
			return
		}
		if req.VideoURL != nil && !set("video_url", *req.VideoURL) {
			return
		}
		if req.Position != nil && !set("position", *req.Position) {
			return
		}

		var l Lesson
		var content, videoURL sql.NullString
		if err := db.QueryRowContext(r.Context(),
			`SELECT id, module_id, title, content, video_url, position, created_at, updated_at
			   FROM lessons WHERE id=$1`, id).
			Scan(&l.ID, &l.ModuleID, &l.Title, &content, &videoURL, &l.Position, &l.CreatedAt, &l.UpdatedAt); err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if content.Valid {
			l.Content = &content.String
		}
		if videoURL.Valid {
			l.VideoURL = &videoURL.String
		}
		writeJSON(w, http.StatusOK, map[string]any{"lesson": l})
	}
}

// DELETE /lessons/{lessonID} (owner or admin)
func DeleteLessonHandler(db *sql.DB, store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "lessonID")
		sub := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())

		meta, err := store.LessonMeta(r.Context(), id)
		if errors.Is(err, quiz.ErrLessonNotFound) {
			apiError(w, http.StatusNotFound, "Not found")
			return
		}
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		allowed, _, err := canEditCourse(r.Context(), db, sub, role, meta.CourseID)
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if !allowed {
			apiError(w, http.StatusForbidden, "Forbidden")
			return
		}
		if _, err := db.ExecContext(r.Context(), `DELETE FROM lessons WHERE id=$1`, id); err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}
