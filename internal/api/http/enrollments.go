package http

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/coursekit/coursekit-lms/internal/auth/middleware"
	"github.com/coursekit/coursekit-lms/internal/rbac"
)

type Enrollment struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	CourseID  string `json:"course_id"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// POST /courses/{courseID}/enroll. Enrolling twice returns the existing row
// with alreadyEnrolled=true; teachers cannot enroll in their own course.
func EnrollHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		sub := authmw.SubjectFromContext(r.Context())

		var teacherID sql.NullString
		err := db.QueryRowContext(r.Context(), `SELECT teacher_id FROM courses WHERE id=$1`, courseID).Scan(&teacherID)
		if errors.Is(err, sql.ErrNoRows) {
			apiError(w, http.StatusNotFound, "Course not found")
			return
		}
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if teacherID.Valid && teacherID.String == sub {
			apiError(w, http.StatusForbidden, "You teach this course")
			return
		}

		var e Enrollment
		err = db.QueryRowContext(r.Context(),
			`SELECT id, user_id, course_id, status, progress, created_at, updated_at
			   FROM enrollments WHERE user_id=$1 AND course_id=$2`, sub, courseID).
			Scan(&e.ID, &e.UserID, &e.CourseID, &e.Status, &e.Progress, &e.CreatedAt, &e.UpdatedAt)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]any{"enrollment": e, "alreadyEnrolled": true})
			return
		}
		if !errors.Is(err, sql.ErrNoRows) {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}

		now := time.Now().Unix()
		e = Enrollment{ID: uuid.NewString(), UserID: sub, CourseID: courseID, Status: "active", Progress: 0, CreatedAt: now, UpdatedAt: now}
		if _, err := db.ExecContext(r.Context(),
			`INSERT INTO enrollments (id, user_id, course_id, status, progress, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			e.ID, e.UserID, e.CourseID, e.Status, e.Progress, now, now); err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"enrollment": e, "alreadyEnrolled": false})
	}
}

type enrolledCourse struct {
	EnrollmentID string  `json:"enrollment_id"`
	Status       string  `json:"status"`
	Progress     int     `json:"progress"`
	CreatedAt    int64   `json:"created_at"`
	UpdatedAt    int64   `json:"updated_at"`
	CourseID     string  `json:"course_id"`
	Title        string  `json:"title"`
	Description  *string `json:"description"`
	TeacherID    *string `json:"teacher_id"`
	TeacherName  *string `json:"teacher_name"`
	ModuleCount  int     `json:"module_count"`
	LessonCount  int     `json:"lesson_count"`
	QuizCount    int     `json:"quiz_count"`
}

// GET /my-courses
func MyCoursesHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		rows, err := db.QueryContext(r.Context(),
			`SELECT e.id, e.status, e.progress, e.created_at, e.updated_at,
			        c.id, c.title, c.description, c.teacher_id, u.name,
			        (SELECT COUNT(*) FROM modules m WHERE m.course_id = c.id),
			        (SELECT COUNT(*) FROM lessons l JOIN modules m ON m.id = l.module_id WHERE m.course_id = c.id),
			        (SELECT COUNT(*) FROM lesson_quizzes lq
			           JOIN lessons l ON l.id = lq.lesson_id
			           JOIN modules m ON m.id = l.module_id
			          WHERE m.course_id = c.id)
			   FROM enrollments e
			   JOIN courses c ON c.id = e.course_id
			   LEFT JOIN users u ON u.id = c.teacher_id
			  WHERE e.user_id=$1
			  ORDER BY e.created_at DESC`, sub)
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		defer rows.Close()

		out := []enrolledCourse{}
		for rows.Next() {
			var ec enrolledCourse
			var desc, teacherID, teacherName sql.NullString
			if err := rows.Scan(&ec.EnrollmentID, &ec.Status, &ec.Progress, &ec.CreatedAt, &ec.UpdatedAt,
				&ec.CourseID, &ec.Title, &desc, &teacherID, &teacherName,
				&ec.ModuleCount, &ec.LessonCount, &ec.QuizCount); err != nil {
				apiError(w, http.StatusInternalServerError, "Server error")
				return
			}
			if desc.Valid {
				ec.Description = &desc.String
			}
			if teacherID.Valid {
				ec.TeacherID = &teacherID.String
			}
			if teacherName.Valid {
				ec.TeacherName = &teacherName.String
			}
			out = append(out, ec)
		}
		writeJSON(w, http.StatusOK, map[string]any{"courses": out})
	}
}

// GET /profile/stats
func ProfileStatsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		ctx := r.Context()

		var totalCourses, completedCourses, totalLessons, completedLessons, avgProgress int
		queries := []struct {
			sql  string
			dest *int
		}{
			{`SELECT COUNT(*) FROM enrollments WHERE user_id=$1`, &totalCourses},
			{`SELECT COUNT(*) FROM enrollments WHERE user_id=$1 AND progress=100`, &completedCourses},
			{`SELECT COUNT(*)
			    FROM lessons l
			    JOIN modules m ON m.id = l.module_id
			    JOIN enrollments e ON e.course_id = m.course_id
			   WHERE e.user_id=$1`, &totalLessons},
			{`SELECT COUNT(*)
			    FROM lesson_progress lp
			    JOIN enrollments e ON e.id = lp.enrollment_id
			   WHERE e.user_id=$1`, &completedLessons},
			{`SELECT COALESCE(CAST(AVG(progress) AS INTEGER), 0) FROM enrollments WHERE user_id=$1`, &avgProgress},
		}
		for _, q := range queries {
			if err := db.QueryRowContext(ctx, q.sql, sub).Scan(q.dest); err != nil {
				apiError(w, http.StatusInternalServerError, "Server error")
				return
			}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"totalCourses":     totalCourses,
			"completedCourses": completedCourses,
			"totalLessons":     totalLessons,
			"completedLessons": completedLessons,
			"avgProgress":      avgProgress,
		})
	}
}

type courseEnrollment struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	CreatedAt int64  `json:"created_at"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// GET /courses/{courseID}/enrollments (owner or admin)
func CourseEnrollmentsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		sub := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())

		allowed, found, err := canEditCourse(r.Context(), db, sub, role, courseID)
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if !found || !allowed {
			apiError(w, http.StatusForbidden, "Forbidden")
			return
		}

		rows, err := db.QueryContext(r.Context(),
			`SELECT e.id, e.status, e.progress, e.created_at, u.id, u.name, u.email, u.role
			   FROM enrollments e
			   JOIN users u ON u.id = e.user_id
			  WHERE e.course_id=$1
			  ORDER BY e.created_at DESC`, courseID)
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		defer rows.Close()

		out := []courseEnrollment{}
		for rows.Next() {
			var ce courseEnrollment
			if err := rows.Scan(&ce.ID, &ce.Status, &ce.Progress, &ce.CreatedAt,
				&ce.UserID, &ce.Name, &ce.Email, &ce.Role); err != nil {
				apiError(w, http.StatusInternalServerError, "Server error")
				return
			}
			out = append(out, ce)
		}
		writeJSON(w, http.StatusOK, map[string]any{"enrollments": out})
	}
}
