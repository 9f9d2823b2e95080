package http

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	authmw "github.com/coursekit/coursekit-lms/internal/auth/middleware"
)

type adminUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// GET /users (admin)
func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.QueryContext(r.Context(),
			`SELECT id, email, name, role, is_active, created_at, updated_at
			   FROM users ORDER BY created_at DESC`)
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		defer rows.Close()

		out := []adminUser{}
		for rows.Next() {
			var u adminUser
			if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
				apiError(w, http.StatusInternalServerError, "Server error")
				return
			}
			out = append(out, u)
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": out})
	}
}

type userUpdateReq struct {
	Role     *string `json:"role,omitempty" validate:"omitempty,oneof=student teacher admin"`
	IsActive *bool   `json:"isActive,omitempty"`
}

// PATCH /users/{userID} (admin)
func UpdateUserHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		sub := authmw.SubjectFromContext(r.Context())

		var req userUpdateReq
		if err := decodeValid(r, &req); err != nil {
			apiError(w, http.StatusBadRequest, "Invalid data")
			return
		}
		if req.Role == nil && req.IsActive == nil {
			apiError(w, http.StatusBadRequest, "Nothing to update")
			return
		}
		if userID == sub && req.IsActive != nil && !*req.IsActive {
			apiError(w, http.StatusBadRequest, "Cannot deactivate your own account")
			return
		}

		now := time.Now().Unix()
		if req.Role != nil {
			if _, err := db.ExecContext(r.Context(),
				`UPDATE users SET role=$1, updated_at=$2 WHERE id=$3`, *req.Role, now, userID); err != nil {
				apiError(w, http.StatusInternalServerError, "Server error")
				return
			}
		}
		if req.IsActive != nil {
			if _, err := db.ExecContext(r.Context(),
				`UPDATE users SET is_active=$1, updated_at=$2 WHERE id=$3`, *req.IsActive, now, userID); err != nil {
				apiError(w, http.StatusInternalServerError, "Server error")
				return
			}
		}

		var u adminUser
		err := db.QueryRowContext(r.Context(),
			`SELECT id, email, name, role, is_active, created_at, updated_at FROM users WHERE id=$1`, userID).
			Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			apiError(w, http.StatusNotFound, "Not found")
			return
		}
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": u})
	}
}

// DELETE /users/{userID} (admin)
func DeleteUserHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		sub := authmw.SubjectFromContext(r.Context())

		if userID == sub {
			apiError(w, http.StatusBadRequest, "Cannot delete your own account")
			return
		}

		var one int
		err := db.QueryRowContext(r.Context(), `SELECT 1 FROM users WHERE id=$1`, userID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			apiError(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}

		if _, err := db.ExecContext(r.Context(), `DELETE FROM users WHERE id=$1`, userID); err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
