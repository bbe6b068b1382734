package model

import "github.com/google/uuid"

// Draft накапливает результаты стадий пайплайна до персистенции страницы.
// ID назначается при создании черновика и становится ID будущей страницы:
// повторная попытка персистенции того же черновика идемпотентна.
type Draft struct {
	ID          uuid.UUID `json:"id"`
	StoryID     uuid.UUID `json:"storyId"`
	Prompt      string    `json:"prompt"`
	Completion  string    `json:"completion,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	ImagePrompt string    `json:"imagePrompt,omitempty"`
	Image       string    `json:"image,omitempty"`
}

// NewDraft starts a draft for the given story and user prompt.
func NewDraft(storyID uuid.UUID, prompt string) *Draft {
	return &Draft{
		ID:      uuid.New(),
		StoryID: storyID,
		Prompt:  prompt,
	}
}
