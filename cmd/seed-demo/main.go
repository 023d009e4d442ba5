package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/examprint/internal/config"
	"github.com/stemsi/examprint/internal/database"
	"github.com/stemsi/examprint/internal/logger"
	"github.com/stemsi/examprint/internal/model"
	"github.com/stemsi/examprint/internal/repository"
	"github.com/stemsi/examprint/internal/service"
)

const (
	teacherID = 100
	studentID = 200
)

// noopNotifier drops monitor events and re-score requests; seeding runs
// without Redis.
type noopNotifier struct{}

func (noopNotifier) PublishMonitor(context.Context, model.MonitorEvent) error { return nil }
func (noopNotifier) EnqueueRescore(context.Context, ...int64) error           { return nil }

func main() {
	var hours int
	flag.IntVar(&hours, "hours", 2, "How long the demo session stays open")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	fmt.Println("=== Seeding demo exam ===")

	// Courses and groups belong to the surrounding platform; insert them raw.
	var courseID, groupID int64
	if err := pool.QueryRow(ctx, `INSERT INTO courses (name) VALUES ('Demo course') RETURNING id`).Scan(&courseID); err != nil {
		log.Fatal().Err(err).Msg("Failed to create course")
	}
	if err := pool.QueryRow(ctx,
		`INSERT INTO course_groups (course_id, name) VALUES ($1, 'Group A') RETURNING id`, courseID,
	).Scan(&groupID); err != nil {
		log.Fatal().Err(err).Msg("Failed to create group")
	}
	if _, err := pool.Exec(ctx, `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`, groupID, studentID); err != nil {
		log.Fatal().Err(err).Msg("Failed to add group member")
	}
	fmt.Printf("Course %d, group %d (member: user %d)\n", courseID, groupID, studentID)

	examRepo := repository.NewExamRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	catalog := service.NewCatalogService(
		examRepo,
		repository.NewSetRepository(pool),
		repository.NewQuestionRepository(pool),
		repository.NewPrintRepository(pool),
		noopNotifier{},
		cfg.DefaultMaxGrade,
		log,
	)
	sessions := service.NewSessionService(examRepo, sessionRepo, repository.NewGroupRepository(pool), log)

	now := time.Now().UTC()
	teacher := model.NewRequestContext(courseID, teacherID, model.RoleTeacher, now)

	visibility := model.VisibilityAll
	exam, err := catalog.CreateExam(ctx, teacher, &model.CreateExamRequest{
		Title:      fmt.Sprintf("Demo exam %s", now.Format("2006-01-02 15:04")),
		Text:       "Two single-choice questions.",
		Visibility: &visibility,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}

	set, err := catalog.CreateSet(ctx, teacher, exam.ID, &model.CreateSetRequest{Title: "Part A", PrintCount: 2})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create set")
	}

	_, err = catalog.AddQuestionsToSet(ctx, teacher, exam.ID, set.ID, []model.QuestionSpec{
		{
			AnswerType: model.AnswerUniqueChoice,
			Stem:       "2 + 2 = ?",
			Shuffle:    true,
			Options: []model.OptionSpec{
				{Text: "4", Correct: true},
				{Text: "3"},
				{Text: "5"},
			},
		},
		{
			AnswerType: model.AnswerUniqueChoice,
			Stem:       "Capital of France?",
			Options: []model.OptionSpec{
				{Text: "Paris", Correct: true},
				{Text: "Lyon"},
			},
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add questions")
	}

	session, err := sessions.CreateSession(ctx, teacher, exam.ID, &model.CreateSessionRequest{
		Modality:  model.ModalityOnline,
		StartTime: now.Add(-time.Minute),
		EndTime:   now.Add(time.Duration(hours) * time.Hour),
		Title:     "Demo session",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create session")
	}
	if _, err := sessions.RestrictToGroups(ctx, teacher, session.ID, []int64{groupID}); err != nil {
		log.Fatal().Err(err).Msg("Failed to restrict session")
	}
	if _, err := sessions.ToggleShowResults(ctx, teacher, session.ID); err != nil {
		log.Fatal().Err(err).Msg("Failed to show results")
	}

	fmt.Printf("Exam %d, set %d, session %d open until %s\n", exam.ID, set.ID, session.ID, session.EndTime.Format(time.RFC3339))

	auth := service.NewAuthService(cfg, nil)
	teacherToken, err := auth.GenerateToken(teacherID, courseID, model.RoleTeacher)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign teacher token")
	}
	studentToken, err := auth.GenerateToken(studentID, courseID, model.RoleStudent)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign student token")
	}

	fmt.Println("\nTeacher token:")
	fmt.Println(teacherToken)
	fmt.Println("\nStudent token:")
	fmt.Println(studentToken)
	fmt.Println("\nSeed completed!")
}
