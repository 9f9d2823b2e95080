package progress

import (
	"context"
	"log"
	"time"
)

// Completer is the fire-and-forget trigger used by the lesson-view and
// quiz-submit paths. The HTTP response never waits on it and never sees its
// errors; tests inject a synchronous implementation to assert on the effect.
type Completer interface {
	Complete(userID, lessonID string)
}

type asyncCompleter struct {
	tracker *Tracker
	timeout time.Duration
}

// NewAsyncCompleter runs each completion on its own goroutine and logs
// failures instead of surfacing them.
func NewAsyncCompleter(t *Tracker) Completer {
	return &asyncCompleter{tracker: t, timeout: 10 * time.Second}
}

func (a *asyncCompleter) Complete(userID, lessonID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.tracker.MarkLessonCompleted(ctx, userID, lessonID); err != nil {
			log.Printf("mark lesson %s completed for user %s: %v", lessonID, userID, err)
		}
	}()
}

// SyncCompleter runs completions inline. Used in tests and anywhere a caller
// wants the update to land before responding.
type SyncCompleter struct {
	Tracker *Tracker
}

func (s SyncCompleter) Complete(userID, lessonID string) {
	if err := s.Tracker.MarkLessonCompleted(context.Background(), userID, lessonID); err != nil {
		log.Printf("mark lesson %s completed for user %s: %v", lessonID, userID, err)
	}
}
