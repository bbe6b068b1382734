package model

import (
	"time"

	"github.com/google/uuid"
)

// Story — озаглавленная, упорядоченная коллекция страниц одного пользователя.
// Pages заполняется только при полной загрузке истории (GetWithPages) и
// отсортирован по возрастанию номера страницы.
type Story struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"userId" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Pages []Page `json:"pages,omitempty" db:"-"`
}

// Page — один шаг истории. Номера страниц в рамках истории уникальны и
// образуют непрерывную последовательность, начиная с 1; номер назначает
// сервер при вставке. Страница неизменяема после создания.
type Page struct {
	ID         uuid.UUID `json:"id" db:"id"`
	StoryID    uuid.UUID `json:"storyId" db:"story_id"`
	Number     int       `json:"number" db:"number"`
	Prompt     string    `json:"prompt" db:"prompt"`
	Completion string    `json:"completion" db:"completion"`
	Summary    string    `json:"summary" db:"summary"`
	Image      string    `json:"image,omitempty" db:"image"`
	AudioFile  string    `json:"audioFile,omitempty" db:"audio_file"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// IsComplete reports whether the page carries all mandatory content.
// Image and audio are best-effort enrichments and may stay empty.
func (p *Page) IsComplete() bool {
	return p.Prompt != "" && p.Completion != "" && p.Summary != ""
}

// PromptPair is one {prompt, completion} step of the story history that is
// fed back to the text model as context for the next completion.
type PromptPair struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}
