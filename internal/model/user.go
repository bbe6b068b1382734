package model

import (
	"time"

	"github.com/google/uuid"
)

// User представляет автора историй. Аутентификация делегирована внешнему
// identity provider'у — здесь хранится только строка, которой принадлежат истории.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name,omitempty" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
