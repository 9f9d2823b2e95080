package http

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	authmw "github.com/coursekit/coursekit-lms/internal/auth/middleware"
	"github.com/coursekit/coursekit-lms/internal/quiz"
	"github.com/coursekit/coursekit-lms/internal/rbac"
	"github.com/coursekit/coursekit-lms/internal/storage"
)

// MountAssets wires lesson attachment upload/download onto an authenticated
// router group. Uploads are restricted to whoever can edit the lesson's
// course; downloads need any valid session.
func MountAssets(r chi.Router, db *sql.DB, bs storage.BlobStore, store quiz.Store) {
	// POST /assets/lessons/{lessonID}
	r.Post("/lessons/{lessonID}", func(w http.ResponseWriter, r *http.Request) {
		lessonID := chi.URLParam(r, "lessonID")
		sub := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())

		meta, err := store.LessonMeta(r.Context(), lessonID)
		if errors.Is(err, quiz.ErrLessonNotFound) {
			apiError(w, http.StatusNotFound, "Lesson not found")
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

		f, hdr, err := r.FormFile("file")
		if err != nil {
			apiError(w, http.StatusBadRequest, "file required")
			return
		}
		defer f.Close()

		name := path.Base(hdr.Filename)
		if name == "" || name == "." || name == "/" {
			name = "upload.bin"
		}
		key := "lessons/" + lessonID + "/" + name
		if _, err := bs.Put(key, f); err != nil {
			apiError(w, http.StatusInternalServerError, "store error")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"key": key})
	})

	// GET /assets/* -> returns the blob at whatever follows /assets/
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(key)
		if err != nil {
			apiError(w, http.StatusNotFound, "Not found")
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.Copy(w, rc)
	})
}
