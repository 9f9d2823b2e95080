package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/coursekit/coursekit-lms/internal/api/http"
	auth "github.com/coursekit/coursekit-lms/internal/auth/middleware"
	"github.com/coursekit/coursekit-lms/internal/config"
	"github.com/coursekit/coursekit-lms/internal/db"
	"github.com/coursekit/coursekit-lms/internal/progress"
	"github.com/coursekit/coursekit-lms/internal/quiz"
	"github.com/coursekit/coursekit-lms/internal/rbac"
	"github.com/coursekit/coursekit-lms/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	quizStore := quiz.NewSQLStore(dbh)
	tracker := progress.NewTracker(dbh)
	completer := progress.NewAsyncCompleter(tracker)
	authSvc := auth.NewAuthService(cfg.JWTSecret, cfg.JWTTTL)

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/dbcheck", api.DBCheckHandler(dbh))

	// Accounts
	r.Post("/auth/register", api.RegisterHandler(dbh, authSvc))
	r.Post("/auth/login", api.LoginHandler(dbh, authSvc))

	// Public catalog. Lesson view and quiz submit personalize through an
	// optional bearer token (student views and perfect scores mark the
	// lesson completed, fire-and-forget).
	r.Get("/courses", api.ListCoursesHandler(dbh))
	r.Get("/courses/{courseID}", api.GetCourseHandler(dbh))
	r.Get("/lessons/{lessonID}", api.GetLessonHandler(dbh, authSvc, completer))
	r.Get("/lessons/{lessonID}/quiz", api.GetQuizHandler(quizStore, authSvc))
	r.Post("/lessons/{lessonID}/quiz/submit", api.SubmitQuizHandler(quizStore, authSvc, completer))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, cfg.Mode == config.ModeDev))

		pr.Get("/auth/me", api.MeHandler(dbh))

		pr.With(rbac.Require("course:create")).
			Post("/courses", api.CreateCourseHandler(dbh))
		pr.With(rbac.Require("course:edit")).
			Put("/courses/{courseID}", api.UpdateCourseHandler(dbh))
		pr.With(rbac.Require("course:edit")).
			Delete("/courses/{courseID}", api.DeleteCourseHandler(dbh))

		pr.With(rbac.Require("module:edit")).
			Post("/courses/{courseID}/modules", api.CreateModuleHandler(dbh))
		pr.With(rbac.Require("module:edit")).
			Put("/modules/{moduleID}", api.UpdateModuleHandler(dbh))
		pr.With(rbac.Require("module:edit")).
			Delete("/modules/{moduleID}", api.DeleteModuleHandler(dbh))

		pr.With(rbac.Require("lesson:edit")).
			Post("/modules/{moduleID}/lessons", api.CreateLessonHandler(dbh))
		pr.With(rbac.Require("lesson:edit")).
			Put("/lessons/{lessonID}", api.UpdateLessonHandler(dbh, quizStore))
		pr.With(rbac.Require("lesson:edit")).
			Delete("/lessons/{lessonID}", api.DeleteLessonHandler(dbh, quizStore))

		pr.With(rbac.Require("quiz:edit")).
			Post("/lessons/{lessonID}/quiz", api.SaveQuizHandler(quizStore))

		pr.With(rbac.Require("course:enroll")).
			Post("/courses/{courseID}/enroll", api.EnrollHandler(dbh))
		pr.With(rbac.Require("enrollment:list-own")).
			Get("/my-courses", api.MyCoursesHandler(dbh))
		pr.With(rbac.Require("profile:stats")).
			Get("/profile/stats", api.ProfileStatsHandler(dbh))
		pr.With(rbac.Require("enrollment:list-course")).
			Get("/courses/{courseID}/enrollments", api.CourseEnrollmentsHandler(dbh))

		// Admin
		pr.With(rbac.Require("users:manage")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("users:manage")).
			Patch("/users/{userID}", api.UpdateUserHandler(dbh))
		pr.With(rbac.Require("users:manage")).
			Delete("/users/{userID}", api.DeleteUserHandler(dbh))

		// Lesson attachments
		pr.Route("/assets", func(ar chi.Router) {
			api.MountAssets(ar, dbh, bs, quizStore)
		})
	})

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
