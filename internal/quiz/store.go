package quiz

import (
	"context"
	"errors"
)

var (
	ErrLessonNotFound = errors.New("lesson not found")
	ErrQuizNotFound   = errors.New("quiz not found")

	// ErrNoCorrectOption aborts the whole save; the message is part of the
	// API contract.
	ErrNoCorrectOption = errors.New("Each question must have at least one correct option")
)

type Store interface {
	// LessonMeta returns ErrLessonNotFound when the lesson does not exist.
	LessonMeta(ctx context.Context, lessonID string) (LessonMeta, error)

	// Replace discards the lesson's previous quiz (if any) and inserts the
	// new question/option set as one transaction. Any question without a
	// correct option rolls the whole save back with ErrNoCorrectOption.
	// Returns the new quiz id.
	Replace(ctx context.Context, lessonID string, questions []QuestionDraft) (string, error)

	// Fetch returns (nil, nil) when the lesson has no quiz. Correctness flags
	// are populated only when includeAnswers is set.
	Fetch(ctx context.Context, lessonID string, includeAnswers bool) (*Quiz, error)

	// Key loads the full correctness map for grading. ErrQuizNotFound when
	// the lesson has no quiz.
	Key(ctx context.Context, lessonID string) (map[string]QuestionKey, error)
}

// Grade scores submitted answers against the correctness map. Answers naming
// a question the quiz does not have, or an option the question does not have,
// are skipped silently; the denominator is always the quiz's question count.
// Each submitted answer is scored independently (no per-question dedup),
// matching the submit endpoint's historical behavior.
func Grade(key map[string]QuestionKey, answers []Answer) GradeResult {
	res := GradeResult{TotalQuestions: len(key)}
	for _, ans := range answers {
		qk, ok := key[ans.QuestionID]
		if !ok {
			continue // answer to a question not in this quiz
		}
		correct, ok := qk.Options[ans.OptionID]
		if !ok {
			continue // option does not belong to this question
		}
		if correct {
			res.CorrectCount++
		}
	}
	return res
}

// Perfect reports whether a result should trigger lesson completion.
func (r GradeResult) Perfect() bool {
	return r.TotalQuestions > 0 && r.CorrectCount == r.TotalQuestions
}
