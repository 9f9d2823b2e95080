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

type Course struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	TeacherID   *string `json:"teacher_id"`
	TeacherName *string `json:"teacher_name,omitempty"`
	CreatedAt   int64   `json:"created_at"`
	UpdatedAt   int64   `json:"updated_at"`
}

// canEditCourse: admins edit anything, teachers only their own course.
// Second return is false when the course does not exist.
func canEditCourse(ctx context.Context, db *sql.DB, sub, role, courseID string) (allowed, found bool, err error) {
	if role == "admin" {
		var one int
		err = db.QueryRowContext(ctx, `SELECT 1 FROM courses WHERE id=$1`, courseID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, false, nil
		}
		return err == nil, err == nil, err
	}
	var teacherID sql.NullString
	err = db.QueryRowContext(ctx, `SELECT teacher_id FROM courses WHERE id=$1`, courseID).Scan(&teacherID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return teacherID.Valid && teacherID.String == sub, true, nil
}

const courseSelect = `
	SELECT c.id, c.title, c.description, c.teacher_id, c.created_at, c.updated_at, u.name
	  FROM courses c
	  LEFT JOIN users u ON u.id = c.teacher_id`

func scanCourse(row interface{ Scan(...any) error }) (Course, error) {
	var c Course
	var desc, teacherID, teacherName sql.NullString
	if err := row.Scan(&c.ID, &c.Title, &desc, &teacherID, &c.CreatedAt, &c.UpdatedAt, &teacherName); err != nil {
		return Course{}, err
	}
	if desc.Valid {
		c.Description = &desc.String
	}
	if teacherID.Valid {
		c.TeacherID = &teacherID.String
	}
	if teacherName.Valid {
		c.TeacherName = &teacherName.String
	}
	return c, nil
}

// GET /courses (public)
func ListCoursesHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.QueryContext(r.Context(), courseSelect+` ORDER BY c.created_at DESC`)
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		defer rows.Close()

		out := []Course{}
		for rows.Next() {
			c, err := scanCourse(rows)
			if err != nil {
				apiError(w, http.StatusInternalServerError, "Server error")
				return
			}
			out = append(out, c)
		}
		writeJSON(w, http.StatusOK, map[string]any{"courses": out})
	}
}

// GET /courses/{courseID} (public)
func GetCourseHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "courseID")
		c, err := scanCourse(db.QueryRowContext(r.Context(), courseSelect+` WHERE c.id=$1`, id))
		if errors.Is(err, sql.ErrNoRows) {
			apiError(w, http.StatusNotFound, "Not found")
			return
		}
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"course": c})
	}
}

type courseCreateReq struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description,omitempty"`
}

// POST /courses (teacher/admin)
func CreateCourseHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		var req courseCreateReq
		if err := decodeValid(r, &req); err != nil {
			apiError(w, http.StatusBadRequest, "Invalid data")
			return
		}
		now := time.Now().Unix()
		c := Course{ID: uuid.NewString(), Title: req.Title, Description: req.Description, TeacherID: &sub, CreatedAt: now, UpdatedAt: now}
		if _, err := db.ExecContext(r.Context(),
			`INSERT INTO courses (id, title, description, teacher_id, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			c.ID, c.Title, c.Description, sub, now, now); err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"course": c})
	}
}

type courseUpdateReq struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty"`
}

// PUT /courses/{courseID} (owner or admin)
func UpdateCourseHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "courseID")
		sub := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())

		var req courseUpdateReq
		if err := decodeValid(r, &req); err != nil {
			apiError(w, http.StatusBadRequest, "Invalid data")
			return
		}
		if req.Title == nil && req.Description == nil {
			apiError(w, http.StatusBadRequest, "Nothing to update")
			return
		}

		allowed, found, err := canEditCourse(r.Context(), db, sub, role, id)
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

		if req.Title != nil {
			if _, err := db.ExecContext(r.Context(),
				`UPDATE courses SET title=$1, updated_at=$2 WHERE id=$3`,
				*req.Title, time.Now().Unix(), id); err != nil {
				apiError(w, http.StatusInternalServerError, "Server error")
				return
			}
		}
		if req.Description != nil {
			if _, err := db.ExecContext(r.Context(),
				`UPDATE courses SET description=$1, updated_at=$2 WHERE id=$3`,
				*req.Description, time.Now().Unix(), id); err != nil {
				apiError(w, http.StatusInternalServerError, "Server error")
				return
			}
		}

		c, err := scanCourse(db.QueryRowContext(r.Context(), courseSelect+` WHERE c.id=$1`, id))
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"course": c})
	}
}

// DELETE /courses/{courseID} (owner or admin)
func DeleteCourseHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "courseID")
		sub := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())

		allowed, found, err := canEditCourse(r.Context(), db, sub, role, id)
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
		if _, err := db.ExecContext(r.Context(), `DELETE FROM courses WHERE id=$1`, id); err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}
