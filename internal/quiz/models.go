package quiz

// Option redacts the correctness flag for non-owners: IsCorrect is nil unless
// the quiz was fetched with answers included.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect *bool  `json:"isCorrect,omitempty"`
}

type Question struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Position int      `json:"position"`
	Options  []Option `json:"options"`
}

type Quiz struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Drafts are the authoring payload. Shape validation (non-empty text, >=2
// options, >=1 question) happens at the HTTP boundary via validator tags; the
// at-least-one-correct-option invariant is enforced inside the save
// transaction.
type OptionDraft struct {
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"isCorrect"`
}

type QuestionDraft struct {
	Text     string        `json:"text" validate:"required"`
	Position *int          `json:"position,omitempty"`
	Options  []OptionDraft `json:"options" validate:"min=2,dive"`
}

type Answer struct {
	QuestionID string `json:"questionId" validate:"required,uuid"`
	OptionID   string `json:"optionId" validate:"required,uuid"`
}

type GradeResult struct {
	TotalQuestions int `json:"totalQuestions"`
	CorrectCount   int `json:"correctCount"`
}

// QuestionKey is the grading view of one question: every option id mapped to
// whether it is correct.
type QuestionKey struct {
	Options map[string]bool
}

// LessonMeta resolves a lesson up to its course and owning teacher, for
// ownership checks and progress propagation.
type LessonMeta struct {
	ID        string
	ModuleID  string
	CourseID  string
	TeacherID string
}
