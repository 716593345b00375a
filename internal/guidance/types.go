// Package guidance implements the retrieval-augmented answer pipeline for tenant questions.
package guidance

import "github.com/jjckrbbt/tenant-guidance/internal/prompts"

// ConversationTurn is one prior message, in chronological order.
type ConversationTurn struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// GuidanceRequest is the decoded request body.
type GuidanceRequest struct {
	Query       string             `json:"query"`
	ChatHistory []ConversationTurn `json:"chatHistory"`
}

// IsFirstMessage reports whether this is the opening turn of a conversation.
func (r GuidanceRequest) IsFirstMessage() bool {
	return len(r.ChatHistory) == 0
}

func (r GuidanceRequest) promptTurns() []prompts.Turn {
	turns := make([]prompts.Turn, len(r.ChatHistory))
	for i, t := range r.ChatHistory {
		turns[i] = prompts.Turn{Sender: t.Sender, Text: t.Text}
	}
	return turns
}

type Analysis struct {
	Confidence string `json:"confidence" validate:"required,confidence"`
}

type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// GuidanceResponse is the structured answer returned to the caller.
type GuidanceResponse struct {
	Text     string   `json:"text" validate:"required"`
	Actions  []string `json:"actions" validate:"dive,action"`
	Analysis Analysis `json:"analysis"`
	Sources  []Source `json:"sources"`
}
