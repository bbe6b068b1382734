package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"primer-server/internal/ai"
	"primer-server/internal/messaging"
	"primer-server/internal/model"
	"primer-server/internal/repository"
	"primer-server/internal/storage"
)

// Stage - текущая стадия пайплайна создания страницы.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageCompleting   Stage = "completing"
	StageSummarizing  Stage = "summarizing"
	StageIllustrating Stage = "illustrating"
	StagePersisting   Stage = "persisting"
)

// ViewState - снимок состояния сессии для клиента: история, позиция
// курсора, текущая страница (nil в синтетическом слоте новой страницы),
// черновик и стадия пайплайна. LastError позволяет клиенту предложить
// повтор именно упавшей стадии.
type ViewState struct {
	Story     *model.Story `json:"story"`
	PageCount int          `json:"pageCount"`
	Cursor    int          `json:"cursor"`
	Page      *model.Page  `json:"page,omitempty"`
	Draft     *model.Draft `json:"draft,omitempty"`
	Stage     Stage        `json:"stage"`
	LastError string       `json:"lastError,omitempty"`
}

// Session владеет курсором и черновиком одной пары (пользователь, история).
// Все операции защищены мьютексом; пока пайплайн в полете, повторный
// Submit/Retry отклоняется с ErrBusy. Страницы - снимок на момент загрузки,
// он пополняется только успешной персистенцией этой же сессии.
type Session struct {
	mu      sync.Mutex
	userID  uuid.UUID
	story   *model.Story
	pages   []model.Page
	cursor  int // [0, len(pages)]; len(pages) - синтетический слот новой страницы
	draft   *model.Draft
	stage   Stage
	lastErr error
	running bool // пайплайн в полете
	closed  bool

	pageRepo repository.PageRepository
	aiClient ai.Client
	media    storage.MediaStore
	events   messaging.EventPublisher
	logger   *zap.Logger
}

// newSession загружает историю со страницами и ставит курсор на последнюю
// страницу (или в синтетический слот, если страниц нет).
func newSession(ctx context.Context, userID uuid.UUID, storyID uuid.UUID, deps Deps) (*Session, error) {
	story, err := deps.StoryRepo.GetWithPages(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.UserID != userID {
		return nil, model.ErrForbidden
	}

	pages := story.Pages
	// Репозиторий обязан отдавать страницы по порядку, но курсор на этом
	// не строится - нормализуем.
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })

	cursor := 0
	if len(pages) > 0 {
		cursor = len(pages) - 1
	}

	return &Session{
		userID:   userID,
		story:    story,
		pages:    pages,
		cursor:   cursor,
		stage:    StageIdle,
		pageRepo: deps.PageRepo,
		aiClient: deps.AIClient,
		media:    deps.Media,
		events:   deps.Events,
		logger: deps.Logger.Named("Session").With(
			zap.String("storyID", storyID.String()),
			zap.String("userID", userID.String()),
		),
	}, nil
}

// ViewState возвращает снимок состояния сессии.
func (s *Session) ViewState() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := ViewState{
		Story:     s.story,
		PageCount: len(s.pages),
		Cursor:    s.cursor,
		Stage:     s.stage,
	}
	if s.draft != nil {
		// Копия: стадии пайплайна пишут в черновик под мьютексом, а снимок
		// сериализуется уже без него.
		draft := *s.draft
		state.Draft = &draft
	}
	if s.cursor < len(s.pages) {
		page := s.pages[s.cursor]
		state.Page = &page
	}
	if s.lastErr != nil {
		state.LastError = s.lastErr.Error()
	}
	return state
}

// Advance сдвигает курсор вперед; на синтетическом слоте новой страницы -
// no-op. Никогда не возвращает ошибку, насыщается на границе.
func (s *Session) Advance() ViewState {
	s.mu.Lock()
	if s.cursor < len(s.pages) {
		s.cursor++
	}
	s.mu.Unlock()
	return s.ViewState()
}

// Retreat сдвигает курсор назад; на первой странице - no-op.
func (s *Session) Retreat() ViewState {
	s.mu.Lock()
	if s.cursor > 0 {
		s.cursor--
	}
	s.mu.Unlock()
	return s.ViewState()
}

// CurrentPage возвращает страницу под курсором или nil в синтетическом
// слоте новой страницы.
func (s *Session) CurrentPage() *model.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor < len(s.pages) {
		page := s.pages[s.cursor]
		return &page
	}
	return nil
}

// Submit прогоняет полный пайплайн создания страницы по промту ребенка.
// Пустой промт отклоняется до каких-либо сетевых вызовов. Если пайплайн
// уже в полете - ErrBusy. Черновик упавшего ранее пайплайна при новом
// Submit отбрасывается: занят только активный пайплайн, а не упавший.
func (s *Session) Submit(ctx context.Context, prompt string) (*model.Page, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: пустой промт", model.ErrInvalidInput)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, model.ErrNotFound
	}
	if s.running {
		s.mu.Unlock()
		return nil, model.ErrBusy
	}
	s.draft = model.NewDraft(s.story.ID, prompt)
	s.stage = StageCompleting
	s.lastErr = nil
	s.running = true
	s.mu.Unlock()

	return s.runPipeline(ctx, false)
}

// Retry повторно входит в упавшую стадию, не перегоняя уже завершенные.
// skipImage на упавшей стадии иллюстрации переходит сразу к персистенции
// с пустым полем image.
func (s *Session) Retry(ctx context.Context, skipImage bool) (*model.Page, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, model.ErrNotFound
	}
	if s.running {
		s.mu.Unlock()
		return nil, model.ErrBusy
	}
	if s.draft == nil || s.lastErr == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: нет упавшей стадии для повтора", model.ErrInvalidInput)
	}
	// Пропуск относится только к упавшей стадии иллюстрации; при повторе
	// более ранней стадии иллюстрация генерируется штатно.
	if skipImage && s.stage != StageIllustrating {
		skipImage = false
	}
	if skipImage {
		s.logger.Info("Иллюстрация пропущена по запросу клиента")
		s.stage = StagePersisting
	}
	s.lastErr = nil
	s.running = true
	s.mu.Unlock()

	return s.runPipeline(ctx, skipImage)
}

// runPipeline ведет черновик через оставшиеся стадии. При ошибке стадия
// сохраняется, черновик остается для повтора.
func (s *Session) runPipeline(ctx context.Context, skipImage bool) (*model.Page, error) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	startTime := time.Now()

	if s.currentStage() == StageCompleting {
		if err := s.complete(ctx); err != nil {
			return nil, err
		}
	}
	if s.currentStage() == StageSummarizing {
		if err := s.summarize(ctx); err != nil {
			return nil, err
		}
	}
	if s.currentStage() == StageIllustrating {
		if skipImage {
			s.setStage(StagePersisting)
		} else if err := s.illustrate(ctx); err != nil {
			return nil, err
		}
	}

	page, err := s.persist(ctx)
	if err != nil {
		return nil, err
	}

	pipelineDuration.Observe(time.Since(startTime).Seconds())
	pagesCreatedTotal.Inc()
	s.logger.Info("Страница создана",
		zap.String("pageID", page.ID.String()),
		zap.Int("number", page.Number),
		zap.Duration("duration", time.Since(startTime)),
	)
	return page, nil
}

func (s *Session) currentStage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

func (s *Session) setStage(stage Stage) {
	s.mu.Lock()
	s.stage = stage
	s.mu.Unlock()
}

// fail фиксирует ошибку стадии; стадия не меняется, черновик сохранен.
func (s *Session) fail(stage Stage, sentinel, cause error) error {
	err := fmt.Errorf("%w: %v", sentinel, cause)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	pipelineFailuresTotal.WithLabelValues(string(stage)).Inc()
	s.logger.Warn("Стадия пайплайна упала", zap.String("stage", string(stage)), zap.Error(cause))
	return err
}

// complete - стадия 1: продолжение истории по промту и полной истории
// страниц. История передается как есть, усечение - забота AI клиента.
func (s *Session) complete(ctx context.Context) error {
	s.mu.Lock()
	prompt := s.draft.Prompt
	history := make([]model.PromptPair, 0, len(s.pages))
	for _, page := range s.pages {
		history = append(history, model.PromptPair{Prompt: page.Prompt, Completion: page.Completion})
	}
	s.mu.Unlock()

	completion, err := s.aiClient.Complete(ctx, prompt, history)
	if err != nil {
		return s.fail(StageCompleting, model.ErrGenerationFailed, err)
	}

	s.mu.Lock()
	s.draft.Completion = completion
	s.stage = StageSummarizing
	s.mu.Unlock()
	return nil
}

// summarize - стадия 2: краткое содержание и промт иллюстрации.
func (s *Session) summarize(ctx context.Context) error {
	s.mu.Lock()
	prompt, completion := s.draft.Prompt, s.draft.Completion
	s.mu.Unlock()

	summary, err := s.aiClient.Summarize(ctx, prompt, completion)
	if err != nil {
		return s.fail(StageSummarizing, model.ErrGenerationFailed, err)
	}

	s.mu.Lock()
	s.draft.Summary = summary.Summary
	s.draft.ImagePrompt = summary.ImagePrompt
	s.stage = StageIllustrating
	s.mu.Unlock()
	return nil
}

// illustrate - стадия 3, best-effort: ошибка не трогает накопленный
// текст, клиент может повторить или персистить без иллюстрации.
func (s *Session) illustrate(ctx context.Context) error {
	s.mu.Lock()
	imagePrompt := s.draft.ImagePrompt
	draftID := s.draft.ID
	s.mu.Unlock()

	image, err := s.aiClient.GenerateImage(ctx, imagePrompt)
	if err != nil {
		return s.fail(StageIllustrating, model.ErrIllustrationFailed, err)
	}

	imageURL := image.URL
	if image.B64JSON != "" {
		data, decodeErr := base64.StdEncoding.DecodeString(image.B64JSON)
		if decodeErr != nil {
			return s.fail(StageIllustrating, model.ErrIllustrationFailed, decodeErr)
		}
		imageURL, err = s.media.SaveImage(draftID.String(), data)
		if err != nil {
			return s.fail(StageIllustrating, model.ErrIllustrationFailed, err)
		}
	}

	s.mu.Lock()
	s.draft.Image = imageURL
	s.stage = StagePersisting
	s.mu.Unlock()
	return nil
}

// persist - стадия 4: вставка страницы (номер назначает репозиторий),
// продвижение курсора и очистка черновика. Благодаря UUID черновика
// повтор после сбоя не создает дубликат.
func (s *Session) persist(ctx context.Context) (*model.Page, error) {
	s.mu.Lock()
	if s.closed {
		// Сессия разобрана, результаты полета выбрасываются.
		s.mu.Unlock()
		return nil, model.ErrNotFound
	}
	page := &model.Page{
		ID:         s.draft.ID,
		StoryID:    s.draft.StoryID,
		Prompt:     s.draft.Prompt,
		Completion: s.draft.Completion,
		Summary:    s.draft.Summary,
		Image:      s.draft.Image,
	}
	s.mu.Unlock()

	created, err := s.pageRepo.Create(ctx, page)
	if err != nil {
		return nil, s.fail(StagePersisting, model.ErrPersistenceFailed, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, model.ErrNotFound
	}
	s.pages = append(s.pages, *created)
	s.cursor = len(s.pages) - 1
	s.draft = nil
	s.stage = StageIdle
	s.lastErr = nil
	s.mu.Unlock()

	if s.events != nil {
		if err := s.events.PublishStoryEvent(ctx, messaging.StoryEvent{
			Type:       messaging.EventPageCreated,
			UserID:     s.userID,
			StoryID:    created.StoryID,
			PageID:     created.ID,
			PageNumber: created.Number,
		}); err != nil {
			s.logger.Warn("Ошибка публикации события page.created", zap.Error(err))
		}
	}
	return created, nil
}

// close помечает сессию разобранной: результаты пайплайна в полете
// выбрасываются, персистенция не выполняется.
func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
