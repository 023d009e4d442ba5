package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/config"
	"github.com/stemsi/examprint/internal/handler"
	"github.com/stemsi/examprint/internal/middleware"
	"github.com/stemsi/examprint/internal/response"
	"github.com/stemsi/examprint/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam    *handler.ExamHandler
	Session *handler.SessionHandler
	Print   *handler.PrintHandler
	Result  *handler.ResultHandler
	Monitor *handler.MonitorHandler
	WS      *handler.WSHandler
	Health  *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID, middleware.HeaderBrowserSession}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID, "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.Health.Health)

	api := router.Group("/api/v1")
	api.Use(
		middleware.RequireJWT(authService),
		middleware.RejectRevokedTokens(authService, log),
		middleware.NoStore(),
	)

	staff := middleware.RequireStaff()
	editor := middleware.RequireEditor()
	answerLimiter := middleware.NewRateLimiter(cfg.AnswerRateLimit, cfg.AnswerRateBurst)

	// ─── Exams, sets and questions ─────────────────────────────────────
	exams := api.Group("/exams")
	{
		exams.GET("", handlers.Exam.ListExams)
		exams.POST("", editor, handlers.Exam.CreateExam)
		exams.GET("/:examID", handlers.Exam.GetExam)
		exams.PUT("/:examID", editor, handlers.Exam.UpdateExam)
		exams.PATCH("/:examID/hidden", editor, handlers.Exam.SetExamHidden)
		exams.PATCH("/:examID/visibility", editor, handlers.Exam.SetExamVisibility)
		exams.DELETE("/:examID", editor, handlers.Exam.DeleteExam)

		exams.GET("/:examID/sets", staff, handlers.Exam.ListSets)
		exams.POST("/:examID/sets", editor, handlers.Exam.CreateSet)
		exams.PUT("/:examID/sets/:setID", editor, handlers.Exam.UpdateSet)
		exams.DELETE("/:examID/sets/:setID", editor, handlers.Exam.DeleteSet)
		exams.POST("/:examID/sets/:setID/move", editor, handlers.Exam.MoveSet)

		exams.GET("/:examID/sets/:setID/questions", staff, handlers.Exam.ListSetQuestions)
		exams.POST("/:examID/sets/:setID/questions", editor, handlers.Exam.AddQuestions)
		exams.DELETE("/:examID/questions/:questionID", editor, handlers.Exam.DeleteQuestion)
		exams.PATCH("/:examID/questions/:questionID/validity", editor, handlers.Exam.SetQuestionValidity)

		exams.GET("/:examID/sessions", handlers.Session.ListSessions)
		exams.POST("/:examID/sessions", editor, handlers.Session.CreateSession)
	}

	// ─── Sessions and prints ───────────────────────────────────────────
	sessions := api.Group("/sessions")
	{
		sessions.PUT("/:sessionID", editor, handlers.Session.UpdateSession)
		sessions.DELETE("/:sessionID", editor, handlers.Session.DeleteSession)
		sessions.PATCH("/:sessionID/hidden", editor, handlers.Session.SetSessionHidden)
		sessions.POST("/:sessionID/show-results", editor, handlers.Session.ToggleShowResults)
		sessions.PUT("/:sessionID/groups", editor, handlers.Session.RestrictGroups)

		sessions.POST("/:sessionID/prints", editor, handlers.Print.CreatePrint)
		sessions.GET("/:sessionID/print", handlers.Print.StartOrResume)
		sessions.PUT("/:sessionID/print/answers/:index", answerLimiter.Middleware(), handlers.Print.AnswerQuestion)
		sessions.POST("/:sessionID/print/finish", handlers.Print.Finish)
		sessions.GET("/:sessionID/print/ws", handlers.WS.AnswerStream)

		sessions.GET("/:sessionID/results", handlers.Result.SessionResults)
		sessions.GET("/:sessionID/results/export", staff, handlers.Result.ExportSession)
		sessions.GET("/:sessionID/monitor", staff, handlers.Monitor.MonitorSessionSSE)
	}

	prints := api.Group("/prints")
	{
		prints.GET("/:printID/result", handlers.Result.PrintResult)
		prints.GET("/:printID/log", staff, handlers.Result.PrintLog)
	}

	return router
}
