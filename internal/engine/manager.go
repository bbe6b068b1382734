package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"primer-server/internal/ai"
	"primer-server/internal/messaging"
	"primer-server/internal/model"
	"primer-server/internal/repository"
	"primer-server/internal/storage"
)

// Deps - зависимости движка, инжектируются при создании менеджера.
// У движка нет скрытого разделяемого состояния: каждая сессия получает
// эти же хендлы.
type Deps struct {
	StoryRepo repository.StoryRepository
	PageRepo  repository.PageRepository
	AIClient  ai.Client
	Media     storage.MediaStore
	Events    messaging.EventPublisher
	Logger    *zap.Logger
}

// Manager держит живые сессии по ключу (пользователь, история).
// Повторное открытие пересоздает сессию со свежим снимком страниц.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	deps     Deps
	logger   *zap.Logger
}

// NewManager создает менеджер сессий.
func NewManager(deps Deps) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		deps:     deps,
		logger:   deps.Logger.Named("SessionManager"),
	}
}

func sessionKey(userID, storyID uuid.UUID) string {
	return userID.String() + ":" + storyID.String()
}

// Open загружает историю и создает сессию, закрывая предыдущую для той же
// пары (пользователь, история), если она была.
func (m *Manager) Open(ctx context.Context, userID, storyID uuid.UUID) (*Session, error) {
	session, err := newSession(ctx, userID, storyID, m.deps)
	if err != nil {
		return nil, err
	}

	key := sessionKey(userID, storyID)
	m.mu.Lock()
	if old, ok := m.sessions[key]; ok {
		old.close()
	} else {
		activeSessions.Inc()
	}
	m.sessions[key] = session
	m.mu.Unlock()

	m.logger.Debug("Сессия открыта",
		zap.String("userID", userID.String()), zap.String("storyID", storyID.String()))
	return session, nil
}

// Get возвращает живую сессию или ErrNotFound.
func (m *Manager) Get(userID, storyID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionKey(userID, storyID)]
	if !ok {
		return nil, model.ErrNotFound
	}
	return session, nil
}

// Close разбирает сессию; результаты пайплайна в полете выбрасываются.
func (m *Manager) Close(userID, storyID uuid.UUID) error {
	key := sessionKey(userID, storyID)
	m.mu.Lock()
	session, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
		activeSessions.Dec()
	}
	m.mu.Unlock()

	if !ok {
		return model.ErrNotFound
	}
	session.close()
	m.logger.Debug("Сессия закрыта",
		zap.String("userID", userID.String()), zap.String("storyID", storyID.String()))
	return nil
}

// CloseStory закрывает все сессии истории, например при ее удалении.
func (m *Manager) CloseStory(storyID uuid.UUID) {
	m.mu.Lock()
	for key, session := range m.sessions {
		if session.story.ID == storyID {
			session.close()
			delete(m.sessions, key)
			activeSessions.Dec()
		}
	}
	m.mu.Unlock()
}

// CloseAll разбирает все сессии при остановке сервера.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	for key, session := range m.sessions {
		session.close()
		delete(m.sessions, key)
		activeSessions.Dec()
	}
	m.mu.Unlock()
	m.logger.Info("Все сессии закрыты")
}
