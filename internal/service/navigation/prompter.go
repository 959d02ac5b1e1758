package navigation

import "context"

// CompletionPrompt describes the "module finished, continue?" question.
type CompletionPrompt struct {
	SessionID        string `json:"session_id"`
	UserID           int64  `json:"user_id"`
	CourseID         int64  `json:"course_id"`
	CourseTitle      string `json:"course_title"`
	FinishedModuleID int64  `json:"finished_module_id"`
	NextModuleID     int64  `json:"next_module_id"`
	NextModuleTitle  string `json:"next_module_title"`
}

// Prompter asks the learner to confirm a module transition. It calls ready
// once an answer can be taken, then blocks until the learner answers or ctx
// ends; an ended ctx counts as dismissal.
type Prompter interface {
	ConfirmModuleCompletion(ctx context.Context, p CompletionPrompt, ready func()) (bool, error)
}

type PrompterFunc func(ctx context.Context, p CompletionPrompt, ready func()) (bool, error)

func (f PrompterFunc) ConfirmModuleCompletion(ctx context.Context, p CompletionPrompt, ready func()) (bool, error) {
	return f(ctx, p, ready)
}
