package http

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	authmw "github.com/coursekit/coursekit-lms/internal/auth/middleware"
)

type userInfo struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,min=2"`
}

// POST /auth/register
func RegisterHandler(db *sql.DB, authSvc *authmw.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerReq
		if err := decodeValid(r, &req); err != nil {
			apiError(w, http.StatusBadRequest, "Invalid data")
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))

		var exists int
		err := db.QueryRowContext(r.Context(), `SELECT 1 FROM users WHERE email=$1`, email).Scan(&exists)
		if err == nil {
			apiError(w, http.StatusConflict, "Email already in use")
			return
		}
		if !errors.Is(err, sql.ErrNoRows) {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 10)
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		now := time.Now().Unix()
		u := userInfo{ID: uuid.NewString(), Email: email, Name: req.Name, Role: "student", CreatedAt: now}
		if _, err := db.ExecContext(r.Context(),
			`INSERT INTO users (id, email, name, password_hash, role, is_active, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			u.ID, u.Email, u.Name, string(hash), u.Role, true, now, now); err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}

		token, err := authSvc.IssueJWT(u.ID, u.Role)
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"token": token, "user": u})
	}
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// POST /auth/login
func LoginHandler(db *sql.DB, authSvc *authmw.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := decodeValid(r, &req); err != nil {
			apiError(w, http.StatusBadRequest, "Invalid data")
			return
		}

		var u userInfo
		var hash string
		var active bool
		err := db.QueryRowContext(r.Context(),
			`SELECT id, email, name, role, password_hash, is_active FROM users WHERE email=$1`,
			strings.ToLower(strings.TrimSpace(req.Email))).
			Scan(&u.ID, &u.Email, &u.Name, &u.Role, &hash, &active)
		if errors.Is(err, sql.ErrNoRows) {
			apiError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if !active {
			apiError(w, http.StatusForbidden, "Account deactivated")
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
			apiError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		token, err := authSvc.IssueJWT(u.ID, u.Role)
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": u})
	}
}

// GET /auth/me
func MeHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		var u userInfo
		err := db.QueryRowContext(r.Context(),
			`SELECT id, email, name, role, created_at FROM users WHERE id=$1`, sub).
			Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusOK, map[string]any{"user": nil})
			return
		}
		if err != nil {
			apiError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": u})
	}
}
