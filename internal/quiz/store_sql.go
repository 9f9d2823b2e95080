package quiz

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) LessonMeta(ctx context.Context, lessonID string) (LessonMeta, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT l.id, l.module_id, m.course_id, COALESCE(c.teacher_id, '')
		   FROM lessons l
		   JOIN modules m ON m.id = l.module_id
		   JOIN courses c ON c.id = m.course_id
		  WHERE l.id=$1`, lessonID)
	var meta LessonMeta
	if err := row.Scan(&meta.ID, &meta.ModuleID, &meta.CourseID, &meta.TeacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LessonMeta{}, ErrLessonNotFound
		}
		return LessonMeta{}, err
	}
	return meta, nil
}

func (s *SQLStore) Replace(ctx context.Context, lessonID string, questions []QuestionDraft) (quizID string, err error) {
	if _, err = s.LessonMeta(ctx, lessonID); err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM lesson_quizzes WHERE lesson_id=$1`, lessonID); err != nil {
		return "", err
	}
	quizID = uuid.NewString()
	if _, err = tx.ExecContext(ctx, `INSERT INTO lesson_quizzes (id, lesson_id) VALUES ($1,$2)`, quizID, lessonID); err != nil {
		return "", err
	}

	for idx, q := range questions {
		pos := idx
		if q.Position != nil {
			pos = *q.Position
		}
		questionID := uuid.NewString()
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO quiz_questions (id, quiz_id, text, position) VALUES ($1,$2,$3,$4)`,
			questionID, quizID, q.Text, pos); err != nil {
			return "", err
		}
		hasCorrect := false
		for _, opt := range q.Options {
			if opt.IsCorrect {
				hasCorrect = true
			}
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO quiz_options (id, question_id, text, is_correct) VALUES ($1,$2,$3,$4)`,
				uuid.NewString(), questionID, opt.Text, opt.IsCorrect); err != nil {
				return "", err
			}
		}
		if !hasCorrect {
			err = ErrNoCorrectOption
			return "", err
		}
	}
	return quizID, nil
}

func (s *SQLStore) Fetch(ctx context.Context, lessonID string, includeAnswers bool) (*Quiz, error) {
	var quizID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM lesson_quizzes WHERE lesson_id=$1`, lessonID).Scan(&quizID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	qrows, err := s.db.QueryContext(ctx,
		`SELECT id, text, position FROM quiz_questions WHERE quiz_id=$1 ORDER BY position ASC, id ASC`, quizID)
	if err != nil {
		return nil, err
	}
	defer qrows.Close()

	qz := &Quiz{ID: quizID, Questions: []Question{}}
	byID := map[string]int{}
	for qrows.Next() {
		var q Question
		if err := qrows.Scan(&q.ID, &q.Text, &q.Position); err != nil {
			return nil, err
		}
		q.Options = []Option{}
		byID[q.ID] = len(qz.Questions)
		qz.Questions = append(qz.Questions, q)
	}
	if err := qrows.Err(); err != nil {
		return nil, err
	}

	orows, err := s.db.QueryContext(ctx,
		`SELECT o.id, o.question_id, o.text, o.is_correct
		   FROM quiz_options o
		   JOIN quiz_questions q ON q.id = o.question_id
		  WHERE q.quiz_id=$1
		  ORDER BY o.id ASC`, quizID)
	if err != nil {
		return nil, err
	}
	defer orows.Close()

	for orows.Next() {
		var opt Option
		var questionID string
		var correct bool
		if err := orows.Scan(&opt.ID, &questionID, &opt.Text, &correct); err != nil {
			return nil, err
		}
		if includeAnswers {
			c := correct
			opt.IsCorrect = &c
		}
		if i, ok := byID[questionID]; ok {
			qz.Questions[i].Options = append(qz.Questions[i].Options, opt)
		}
	}
	return qz, orows.Err()
}

func (s *SQLStore) Key(ctx context.Context, lessonID string) (map[string]QuestionKey, error) {
	var quizID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM lesson_quizzes WHERE lesson_id=$1`, lessonID).Scan(&quizID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, err
	}

	// Seed every question so unanswered ones still count in the denominator.
	key := map[string]QuestionKey{}
	qrows, err := s.db.QueryContext(ctx, `SELECT id FROM quiz_questions WHERE quiz_id=$1`, quizID)
	if err != nil {
		return nil, err
	}
	defer qrows.Close()
	for qrows.Next() {
		var id string
		if err := qrows.Scan(&id); err != nil {
			return nil, err
		}
		key[id] = QuestionKey{Options: map[string]bool{}}
	}
	if err := qrows.Err(); err != nil {
		return nil, err
	}

	orows, err := s.db.QueryContext(ctx,
		`SELECT o.id, o.question_id, o.is_correct
		   FROM quiz_options o
		   JOIN quiz_questions q ON q.id = o.question_id
		  WHERE q.quiz_id=$1`, quizID)
	if err != nil {
		return nil, err
	}
	defer orows.Close()
	for orows.Next() {
		var optionID, questionID string
		var correct bool
		if err := orows.Scan(&optionID, &questionID, &correct); err != nil {
			return nil, err
		}
		if qk, ok := key[questionID]; ok {
			qk.Options[optionID] = correct
		}
	}
	return key, orows.Err()
}
