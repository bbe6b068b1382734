package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	aiMocks "primer-server/internal/ai/mocks"
	msgMocks "primer-server/internal/messaging/mocks"
	repoMocks "primer-server/internal/repository/mocks"

	"primer-server/internal/ai"
	"primer-server/internal/model"
)

type fakeMediaStore struct {
	err   error
	saved map[string][]byte
}

func newFakeMediaStore() *fakeMediaStore {
	return &fakeMediaStore{saved: map[string][]byte{}}
}

func (f *fakeMediaStore) SaveImage(name string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved[name+".png"] = data
	return "/media/" + name + ".png", nil
}

func (f *fakeMediaStore) SaveAudio(name string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved[name+".mp3"] = data
	return "/media/" + name + ".mp3", nil
}

type testEnv struct {
	manager   *Manager
	storyRepo *repoMocks.MockStoryRepository
	pageRepo  *repoMocks.MockPageRepository
	aiClient  *aiMocks.MockClient
	media     *fakeMediaStore
	events    *msgMocks.MockEventPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		storyRepo: &repoMocks.MockStoryRepository{},
		pageRepo:  &repoMocks.MockPageRepository{},
		aiClient:  aiMocks.NewMockClient(t),
		media:     newFakeMediaStore(),
		events:    msgMocks.NewMockEventPublisher(t),
	}
	env.manager = NewManager(Deps{
		StoryRepo: env.storyRepo,
		PageRepo:  env.pageRepo,
		AIClient:  env.aiClient,
		Media:     env.media,
		Events:    env.events,
		Logger:    zap.NewNop(),
	})
	return env
}

func makeStory(userID uuid.UUID, pageCount int) *model.Story {
	story := &model.Story{ID: uuid.New(), UserID: userID, Title: "Story - test"}
	for i := 1; i <= pageCount; i++ {
		story.Pages = append(story.Pages, model.Page{
			ID:         uuid.New(),
			StoryID:    story.ID,
			Number:     i,
			Prompt:     fmt.Sprintf("prompt %d", i),
			Completion: fmt.Sprintf("completion %d", i),
			Summary:    fmt.Sprintf("summary %d", i),
		})
	}
	return story
}

func (env *testEnv) openSession(t *testing.T, story *model.Story, userID uuid.UUID) *Session {
	t.Helper()
	env.storyRepo.On("GetWithPages", mock.Anything, story.ID).Return(story, nil).Once()
	session, err := env.manager.Open(context.Background(), userID, story.ID)
	require.NoError(t, err)
	return session
}

func TestSessionLoad_CursorOnLastPage(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	story := makeStory(userID, 3)

	session := env.openSession(t, story, userID)
	state := session.ViewState()

	assert.Equal(t, 2, state.Cursor)
	require.NotNil(t, state.Page)
	assert.Equal(t, 3, state.Page.Number)
	assert.Equal(t, StageIdle, state.Stage)
}

func TestSessionLoad_EmptyStoryStartsAtNewPageSlot(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	story := makeStory(userID, 0)

	session := env.openSession(t, story, userID)
	state := session.ViewState()

	assert.Equal(t, 0, state.Cursor)
	assert.Nil(t, state.Page, "пустая история начинается в слоте новой страницы")

	// retreat на пустой истории - no-op
	state = session.Retreat()
	assert.Equal(t, 0, state.Cursor)
}

func TestSessionLoad_SortsPagesDefensively(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	story := makeStory(userID, 3)
	story.Pages[0], story.Pages[2] = story.Pages[2], story.Pages[0]

	session := env.openSession(t, story, userID)

	page := session.CurrentPage()
	require.NotNil(t, page)
	assert.Equal(t, 3, page.Number)
}

func TestSessionLoad_Forbidden(t *testing.T) {
	env := newTestEnv(t)
	story := makeStory(uuid.New(), 1)
	env.storyRepo.On("GetWithPages", mock.Anything, story.ID).Return(story, nil).Once()

	_, err := env.manager.Open(context.Background(), uuid.New(), story.ID)

	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestSessionLoad_NotFound(t *testing.T) {
	env := newTestEnv(t)
	storyID := uuid.New()
	env.storyRepo.On("GetWithPages", mock.Anything, storyID).Return(nil, model.ErrNotFound).Once()

	_, err := env.manager.Open(context.Background(), uuid.New(), storyID)

	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCursor_SaturatesAtBothEnds(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	story := makeStory(userID, 3)
	session := env.openSession(t, story, userID)

	// advance до синтетического слота и дальше
	state := session.Advance()
	assert.Equal(t, 3, state.Cursor)
	assert.Nil(t, state.Page)
	state = session.Advance()
	assert.Equal(t, 3, state.Cursor, "advance в слоте новой страницы - no-op")

	// retreat до первой страницы и дальше
	for i := 0; i < 10; i++ {
		state = session.Retreat()
	}
	assert.Equal(t, 0, state.Cursor, "retreat на первой странице - no-op")
	require.NotNil(t, state.Page)
	assert.Equal(t, 1, state.Page.Number)

	// курсор никогда не выходит за [0, pageCount]
	for i := 0; i < 10; i++ {
		state = session.Advance()
		assert.GreaterOrEqual(t, state.Cursor, 0)
		assert.LessOrEqual(t, state.Cursor, 3)
	}
}

func TestSubmit_EmptyPromptRejectedBeforeAnyCall(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	session := env.openSession(t, makeStory(userID, 1), userID)

	_, err := session.Submit(context.Background(), "   ")

	assert.ErrorIs(t, err, model.ErrInvalidInput)
	env.aiClient.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
	env.pageRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmit_FullPipelineSuccess(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	story := makeStory(userID, 3)
	session := env.openSession(t, story, userID)
	session.Advance() // в слот новой страницы

	wantHistory := []model.PromptPair{
		{Prompt: "prompt 1", Completion: "completion 1"},
		{Prompt: "prompt 2", Completion: "completion 2"},
		{Prompt: "prompt 3", Completion: "completion 3"},
	}
	env.aiClient.On("Complete", mock.Anything, "a dragon appears", wantHistory).
		Return("The dragon landed softly.", nil).Once()
	env.aiClient.On("Summarize", mock.Anything, "a dragon appears", "The dragon landed softly.").
		Return(ai.Summary{Summary: "A dragon arrives.", ImagePrompt: "a gentle dragon"}, nil).Once()
	env.aiClient.On("GenerateImage", mock.Anything, "a gentle dragon").
		Return(ai.Image{B64JSON: base64.StdEncoding.EncodeToString([]byte("png"))}, nil).Once()
	env.pageRepo.On("Create", mock.Anything, mock.Anything).Return(func(ctx context.Context, page *model.Page) *model.Page {
		created := *page
		created.Number = 4
		return &created
	}, nil).Once()
	env.events.On("PublishStoryEvent", mock.Anything, mock.Anything).Return(nil).Once()

	page, err := session.Submit(context.Background(), "a dragon appears")

	require.NoError(t, err)
	assert.Equal(t, 4, page.Number, "номер страницы - previousCount + 1")
	assert.Equal(t, "/media/"+page.ID.String()+".png", page.Image)

	state := session.ViewState()
	assert.Equal(t, 4, state.PageCount)
	assert.Equal(t, 3, state.Cursor, "курсор встает на новую страницу")
	require.NotNil(t, state.Page)
	assert.Equal(t, page.ID, state.Page.ID)
	assert.Nil(t, state.Draft, "черновик очищен")
	assert.Equal(t, StageIdle, state.Stage)

	// retreat возвращает на прежнюю страницу с неизменным содержимым
	state = session.Retreat()
	require.NotNil(t, state.Page)
	assert.Equal(t, 3, state.Page.Number)
	assert.Equal(t, "completion 3", state.Page.Completion)
}

func TestSubmit_CompletionFailureRetainsPrompt(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	session := env.openSession(t, makeStory(userID, 0), userID)

	env.aiClient.On("Complete", mock.Anything, "a fox", mock.Anything).
		Return("", errors.New("api down")).Once()

	_, err := session.Submit(context.Background(), "a fox")
	assert.ErrorIs(t, err, model.ErrGenerationFailed)

	state := session.ViewState()
	assert.Equal(t, StageCompleting, state.Stage)
	require.NotNil(t, state.Draft)
	assert.Equal(t, "a fox", state.Draft.Prompt)
	assert.NotEmpty(t, state.LastError)

	// повтор перезапускает только упавшую стадию
	env.aiClient.On("Complete", mock.Anything, "a fox", mock.Anything).
		Return("The fox ran.", nil).Once()
	env.aiClient.On("Summarize", mock.Anything, "a fox", "The fox ran.").
		Return(ai.Summary{Summary: "s", ImagePrompt: "p"}, nil).Once()
	env.aiClient.On("GenerateImage", mock.Anything, "p").Return(ai.Image{URL: "http://img"}, nil).Once()
	env.pageRepo.On("Create", mock.Anything, mock.Anything).Return(func(ctx context.Context, page *model.Page) *model.Page {
		created := *page
		created.Number = 1
		return &created
	}, nil).Once()
	env.events.On("PublishStoryEvent", mock.Anything, mock.Anything).Return(nil).Once()

	page, err := session.Retry(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Number)
	assert.Equal(t, "http://img", page.Image)
}

func TestSubmit_SummarizeRetryDoesNotRerunCompletion(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	session := env.openSession(t, makeStory(userID, 0), userID)

	env.aiClient.On("Complete", mock.Anything, "a boat", mock.Anything).
		Return("The boat sailed.", nil).Once()
	env.aiClient.On("Summarize", mock.Anything, "a boat", "The boat sailed.").
		Return(ai.Summary{}, errors.New("bad json")).Once()

	_, err := session.Submit(context.Background(), "a boat")
	assert.ErrorIs(t, err, model.ErrGenerationFailed)

	state := session.ViewState()
	assert.Equal(t, StageSummarizing, state.Stage)
	assert.Equal(t, "The boat sailed.", state.Draft.Completion, "дорогая стадия completion сохранена")

	env.aiClient.On("Summarize", mock.Anything, "a boat", "The boat sailed.").
		Return(ai.Summary{Summary: "s", ImagePrompt: "p"}, nil).Once()
	env.aiClient.On("GenerateImage", mock.Anything, "p").Return(ai.Image{URL: "u"}, nil).Once()
	env.pageRepo.On("Create", mock.Anything, mock.Anything).Return(func(ctx context.Context, page *model.Page) *model.Page {
		created := *page
		created.Number = 1
		return &created
	}, nil).Once()
	env.events.On("PublishStoryEvent", mock.Anything, mock.Anything).Return(nil).Once()

	_, err = session.Retry(context.Background(), false)
	require.NoError(t, err)
	env.aiClient.AssertNumberOfCalls(t, "Complete", 1)
}

func TestSubmit_IllustrationFailurePersistWithoutImage(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	session := env.openSession(t, makeStory(userID, 2), userID)

	env.aiClient.On("Complete", mock.Anything, "rain", mock.Anything).Return("It rained.", nil).Once()
	env.aiClient.On("Summarize", mock.Anything, "rain", "It rained.").
		Return(ai.Summary{Summary: "Rainy day.", ImagePrompt: "rainy meadow"}, nil).Once()
	env.aiClient.On("GenerateImage", mock.Anything, "rainy meadow").
		Return(ai.Image{}, errors.New("image api down")).Once()

	_, err := session.Submit(context.Background(), "rain")
	assert.ErrorIs(t, err, model.ErrIllustrationFailed)

	state := session.ViewState()
	assert.Equal(t, StageIllustrating, state.Stage)
	require.NotNil(t, state.Draft)
	assert.Equal(t, "It rained.", state.Draft.Completion)
	assert.Equal(t, "Rainy day.", state.Draft.Summary)

	// персистенция без иллюстрации: стадии 1-2 не перегоняются
	env.pageRepo.On("Create", mock.Anything, mock.MatchedBy(func(page *model.Page) bool {
		return page.Image == "" && page.Summary == "Rainy day."
	})).Return(func(ctx context.Context, page *model.Page) *model.Page {
		created := *page
		created.Number = 3
		return &created
	}, nil).Once()
	env.events.On("PublishStoryEvent", mock.Anything, mock.Anything).Return(nil).Once()

	page, err := session.Retry(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, page.Image)
	assert.Equal(t, 3, page.Number)
	env.aiClient.AssertNumberOfCalls(t, "Complete", 1)
	env.aiClient.AssertNumberOfCalls(t, "Summarize", 1)
	env.aiClient.AssertNumberOfCalls(t, "GenerateImage", 1)
}

func TestSubmit_PersistRetryKeepsDraftID(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	session := env.openSession(t, makeStory(userID, 0), userID)

	env.aiClient.On("Complete", mock.Anything, "sun", mock.Anything).Return("Sunshine.", nil).Once()
	env.aiClient.On("Summarize", mock.Anything, "sun", "Sunshine.").
		Return(ai.Summary{Summary: "s", ImagePrompt: "p"}, nil).Once()
	env.aiClient.On("GenerateImage", mock.Anything, "p").Return(ai.Image{URL: "u"}, nil).Once()

	var firstID uuid.UUID
	env.pageRepo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once().
		Run(func(args mock.Arguments) { firstID = args.Get(1).(*model.Page).ID })

	_, err := session.Submit(context.Background(), "sun")
	assert.ErrorIs(t, err, model.ErrPersistenceFailed)
	assert.Equal(t, StagePersisting, session.ViewState().Stage)

	env.pageRepo.On("Create", mock.Anything, mock.MatchedBy(func(page *model.Page) bool {
		// тот же UUID черновика: повтор идемпотентен на стороне БД
		return page.ID == firstID
	})).Return(func(ctx context.Context, page *model.Page) *model.Page {
		created := *page
		created.Number = 1
		return &created
	}, nil).Once()
	env.events.On("PublishStoryEvent", mock.Anything, mock.Anything).Return(nil).Once()

	page, err := session.Retry(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, firstID, page.ID)
	env.aiClient.AssertNumberOfCalls(t, "Complete", 1)
	env.aiClient.AssertNumberOfCalls(t, "Summarize", 1)
	env.aiClient.AssertNumberOfCalls(t, "GenerateImage", 1)
}

func TestSubmit_ConcurrentSubmitRejectedWithBusy(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	session := env.openSession(t, makeStory(userID, 0), userID)

	entered := make(chan struct{})
	release := make(chan struct{})
	env.aiClient.On("Complete", mock.Anything, "slow", mock.Anything).
		Run(func(args mock.Arguments) {
			close(entered)
			<-release
		}).
		Return("", errors.New("cancelled")).Once()

	done := make(chan error, 1)
	go func() {
		_, err := session.Submit(context.Background(), "slow")
		done <- err
	}()

	<-entered
	_, err := session.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, model.ErrBusy)
	_, err = session.Retry(context.Background(), false)
	assert.ErrorIs(t, err, model.ErrBusy)

	close(release)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, model.ErrGenerationFailed)
	case <-time.After(5 * time.Second):
		t.Fatal("первый submit не завершился")
	}
}

func TestSubmit_ClosedSessionNeverPersists(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	story := makeStory(userID, 0)
	session := env.openSession(t, story, userID)

	entered := make(chan struct{})
	release := make(chan struct{})
	env.aiClient.On("Complete", mock.Anything, "late", mock.Anything).
		Run(func(args mock.Arguments) {
			close(entered)
			<-release
		}).
		Return("Too late.", nil).Once()
	env.aiClient.On("Summarize", mock.Anything, "late", "Too late.").
		Return(ai.Summary{Summary: "s", ImagePrompt: "p"}, nil).Once()
	env.aiClient.On("GenerateImage", mock.Anything, "p").Return(ai.Image{URL: "u"}, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := session.Submit(context.Background(), "late")
		done <- err
	}()

	<-entered
	require.NoError(t, env.manager.Close(userID, story.ID))
	close(release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, model.ErrNotFound, "результаты полета выбрасываются")
	case <-time.After(5 * time.Second):
		t.Fatal("submit не завершился")
	}
	env.pageRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestViewState_DraftSnapshotIsolatedFromPipeline(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	session := env.openSession(t, makeStory(userID, 0), userID)

	entered := make(chan struct{})
	release := make(chan struct{})
	env.aiClient.On("Complete", mock.Anything, "a star", mock.Anything).Return("A star fell.", nil).Once()
	env.aiClient.On("Summarize", mock.Anything, "a star", "A star fell.").
		Run(func(args mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(ai.Summary{Summary: "Falling star.", ImagePrompt: "p"}, nil).Once()
	env.aiClient.On("GenerateImage", mock.Anything, "p").Return(ai.Image{URL: "u"}, nil).Once()
	env.pageRepo.On("Create", mock.Anything, mock.Anything).Return(func(ctx context.Context, page *model.Page) *model.Page {
		created := *page
		created.Number = 1
		return &created
	}, nil).Once()
	env.events.On("PublishStoryEvent", mock.Anything, mock.Anything).Return(nil).Once()

	done := make(chan struct{})
	go func() {
		_, _ = session.Submit(context.Background(), "a star")
		close(done)
	}()

	<-entered
	state := session.ViewState()
	close(release)

	// Сериализуем снимок параллельно с пишущими стадиями пайплайна - как
	// это делает GET-хендлер состояния сессии.
	encoded, err := json.Marshal(state)
	require.NoError(t, err)
	<-done

	require.NotNil(t, state.Draft)
	assert.Equal(t, "A star fell.", state.Draft.Completion)
	assert.Empty(t, state.Draft.Summary, "снимок не видит более поздних стадий")
	assert.Contains(t, string(encoded), `"stage":"summarizing"`)
}

func TestRetry_SkipImageIgnoredForEarlierStage(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	session := env.openSession(t, makeStory(userID, 0), userID)

	env.aiClient.On("Complete", mock.Anything, "a key", mock.Anything).
		Return("", errors.New("api down")).Once()

	_, err := session.Submit(context.Background(), "a key")
	assert.ErrorIs(t, err, model.ErrGenerationFailed)
	assert.Equal(t, StageCompleting, session.ViewState().Stage)

	// skipImage при упавшей генерации текста не выбрасывает иллюстрацию:
	// стадия иллюстрации еще не падала
	env.aiClient.On("Complete", mock.Anything, "a key", mock.Anything).Return("A key turned.", nil).Once()
	env.aiClient.On("Summarize", mock.Anything, "a key", "A key turned.").
		Return(ai.Summary{Summary: "s", ImagePrompt: "p"}, nil).Once()
	env.aiClient.On("GenerateImage", mock.Anything, "p").Return(ai.Image{URL: "http://img"}, nil).Once()
	env.pageRepo.On("Create", mock.Anything, mock.Anything).Return(func(ctx context.Context, page *model.Page) *model.Page {
		created := *page
		created.Number = 1
		return &created
	}, nil).Once()
	env.events.On("PublishStoryEvent", mock.Anything, mock.Anything).Return(nil).Once()

	page, err := session.Retry(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "http://img", page.Image)
	env.aiClient.AssertNumberOfCalls(t, "GenerateImage", 1)
}

func TestRetry_WithoutFailedStage(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	session := env.openSession(t, makeStory(userID, 1), userID)

	_, err := session.Retry(context.Background(), false)

	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestManager_GetAndClose(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	story := makeStory(userID, 1)
	opened := env.openSession(t, story, userID)

	got, err := env.manager.Get(userID, story.ID)
	require.NoError(t, err)
	assert.Same(t, opened, got)

	// чужой пользователь не видит сессию
	_, err = env.manager.Get(uuid.New(), story.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, env.manager.Close(userID, story.ID))
	_, err = env.manager.Get(userID, story.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, env.manager.Close(userID, story.ID), model.ErrNotFound)
}

func TestManager_ReopenReplacesSession(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	story := makeStory(userID, 1)
	first := env.openSession(t, story, userID)

	second := env.openSession(t, story, userID)

	got, err := env.manager.Get(userID, story.ID)
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.NotSame(t, first, got)
}

func TestManager_CloseStory(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	story := makeStory(userID, 1)
	env.openSession(t, story, userID)

	env.manager.CloseStory(story.ID)

	_, err := env.manager.Get(userID, story.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
