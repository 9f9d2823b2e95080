package http

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/coursekit/coursekit-lms/internal/auth/middleware"
	"github.com/coursekit/coursekit-lms/internal/rbac"
)

type Module struct {
	ID        string `json:"id"`
	CourseID  string `json:"course_id"`
	Title     string `json:"title"`
	Position  int    `json:"position"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

func moduleCourseID(ctx context.Context, db *sql.DB, moduleID string) (string, error) {
	var courseID string
	err := db.QueryRowContext(ctx, `SELECT course_id FROM modules WHERE id=$1`, moduleID).Scan(&courseID)
	return courseID, err
}

type moduleCreateReq struct {
	Title    string `json:"title" validate:"required,max=255"`
	Position *int   `json:"position,omitempty"`
}

// POST /courses/{courseID}/modules (owner or admin)
func CreateModuleHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		sub := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())

		var req moduleCreateReq
		if err := decodeValid(r, &req); err != nil {
			apiError(w, http.StatusBadRequest, "Invalid data")
			return
		}

		allowed, found, err := canEditCourse(r.Context(), db, sub, role, courseID)
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if !found {
			apiError(w, http.StatusNotFound, "Not found")
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
		m := Module{ID: uuid.NewString(), CourseID: courseID, Title: req.Title, Position: pos, CreatedAt: now, UpdatedAt: now}
		if _, err := db.ExecContext(r.Context(),
			`INSERT INTO modules (id, course_id, title, position, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			m.ID, m.CourseID, m.Title, m.Position, now, now); err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"module": m})
	}
}

type moduleUpdateReq struct {
	Title    *string `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Position *int    `json:"position,omitempty"`
}

// PUT /modules/{moduleID} (owner or admin)
func UpdateModuleHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "moduleID")
		sub := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())

		var req moduleUpdateReq
		if err := decodeValid(r, &req); err != nil {
			apiError(w, http.StatusBadRequest, "Invalid data")
			return
		}
		if req.Title == nil && req.Position == nil {
			apiError(w, http.StatusBadRequest, "Nothing to update")
			return
		}

		courseID, err := moduleCourseID(r.Context(), db, id)
		if errors.Is(err, sql.ErrNoRows) {
			apiError(w, http.StatusNotFound, "Not found")
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

		if req.Title != nil {
			if _, err := db.ExecContext(r.Context(),
				`UPDATE modules SET title=$1, updated_at=$2 WHERE id=$3`,
				*req.Title, time.Now().Unix(), id); err != nil {
				apiError(w, http.StatusInternalServerError, "Server error")
				return
			}
		}
		if req.Position != nil {
			if _, err := db.ExecContext(r.Context(),
				`UPDATE modules SET position=$1, updated_at=$2 WHERE id=$3`,
				*req.Position, time.Now().Unix(), id); err != nil {
				apiError(w, http.StatusInternalServerError, "Server error")
				return
			}
		}

		var m Module
		if err := db.QueryRowContext(r.Context(),
			`SELECT id, course_id, title, position, created_at, updated_at FROM modules WHERE id=$1`, id).
			Scan(&m.ID, &m.CourseID, &m.Title, &m.Position, &m.CreatedAt, &m.UpdatedAt); err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"module": m})
	}
}

// DELETE /modules/{moduleID} (owner or admin)
func DeleteModuleHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "moduleID")
		sub := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())

		courseID, err := moduleCourseID(r.Context(), db, id)
		if errors.Is(err, sql.ErrNoRows) {
			apiError(w, http.StatusNotFound, "Not found")
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
		if _, err := db.ExecContext(r.Context(), `DELETE FROM modules WHERE id=$1`, id); err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}
