package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"primer-server/internal/ai"
	"primer-server/internal/engine"
	"primer-server/internal/model"
	"primer-server/internal/service"
	"primer-server/internal/speech"
)

// StoryHandler обрабатывает HTTP запросы сервера историй.
type StoryHandler struct {
	service  service.StoryService
	sessions *engine.Manager
	ai       ai.Client
	speech   *speech.Provider // nil, если Azure не сконфигурирован
	verifier *JWTVerifier
	logger   *zap.Logger
}

// NewStoryHandler создает новый StoryHandler.
func NewStoryHandler(
	s service.StoryService,
	sessions *engine.Manager,
	aiClient ai.Client,
	speechProvider *speech.Provider,
	logger *zap.Logger,
	jwtSecret string,
) *StoryHandler {
	verifier, err := NewJWTVerifier(jwtSecret, logger)
	if err != nil {
		logger.Fatal("Failed to create JWT Verifier", zap.Error(err))
	}
	return &StoryHandler{
		service:  s,
		sessions: sessions,
		ai:       aiClient,
		speech:   speechProvider,
		verifier: verifier,
		logger:   logger.Named("StoryHandler"),
	}
}

// RegisterRoutes регистрирует маршруты сервера историй.
func (h *StoryHandler) RegisterRoutes(e *echo.Echo) {
	// --- Истории и страницы ---
	storiesGroup := e.Group("/stories", h.authMiddleware)
	{
		storiesGroup.POST("", h.createStory)
		storiesGroup.GET("", h.listStories)
		storiesGroup.GET("/latest", h.latestStory)
		storiesGroup.GET("/:id", h.getStory)
		storiesGroup.DELETE("/:id", h.deleteStory)
		storiesGroup.GET("/:id/pages", h.listPages)
		storiesGroup.GET("/:id/pages/:num", h.getPage)
		storiesGroup.POST("/:id/pages/:num/narration", h.narratePage)

		// --- Сессия просмотра/создания страниц ---
		storiesGroup.POST("/:id/session", h.openSession)
		storiesGroup.GET("/:id/session", h.getSession)
		storiesGroup.DELETE("/:id/session", h.closeSession)
		storiesGroup.POST("/:id/session/advance", h.advanceCursor)
		storiesGroup.POST("/:id/session/retreat", h.retreatCursor)
		storiesGroup.POST("/:id/session/pages", h.submitPage)
		storiesGroup.POST("/:id/session/retry", h.retryStage)
	}

	// --- Генеративные эндпоинты ---
	aiGroup := e.Group("/ai", h.authMiddleware)
	{
		aiGroup.GET("/models", h.listModels)
		aiGroup.POST("/completion", h.completion)
		aiGroup.POST("/summary", h.summary)
		aiGroup.POST("/image", h.image)
		aiGroup.POST("/tts", h.tts)
		aiGroup.GET("/speech-token", h.speechToken)
	}
}

func handleServiceError(c echo.Context, err error) error {
	var statusCode int
	var apiErr APIError

	switch {
	case errors.Is(err, model.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, model.ErrNotFound):
		statusCode = http.StatusNotFound
		apiErr = APIError{Message: "Resource not found"}
	case errors.Is(err, model.ErrForbidden):
		statusCode = http.StatusForbidden
		apiErr = APIError{Message: "Access denied"}
	case errors.Is(err, model.ErrBusy):
		statusCode = http.StatusConflict // в полете уже есть пайплайн
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, model.ErrGenerationFailed), errors.Is(err, model.ErrIllustrationFailed):
		statusCode = http.StatusBadGateway // упал внешний генеративный сервис
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, model.ErrPersistenceFailed):
		statusCode = http.StatusInternalServerError
		apiErr = APIError{Message: err.Error()}
	default:
		statusCode = http.StatusInternalServerError
		apiErr = APIError{Message: "Internal server error"}
	}
	return c.JSON(statusCode, apiErr)
}

func parseStoryID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// --- Обработчики историй --- //

func (h *StoryHandler) createStory(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, APIError{Message: err.Error()})
	}

	var req createStoryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
	}

	story, err := h.service.CreateStory(c.Request().Context(), user.ID, req.Title)
	if err != nil {
		h.logger.Error("Ошибка создания истории", zap.String("userID", user.ID.String()), zap.Error(err))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, story)
}

func (h *StoryHandler) listStories(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, APIError{Message: err.Error()})
	}

	stories, err := h.service.ListStories(c.Request().Context(), user.ID)
	if err != nil {
		return handleServiceError(c, err)
	}
	if stories == nil {
		stories = []model.Story{}
	}
	return c.JSON(http.StatusOK, stories)
}

func (h *StoryHandler) latestStory(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, APIError{Message: err.Error()})
	}

	story, err := h.service.LatestStory(c.Request().Context(), user.ID)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, story)
}

func (h *StoryHandler) getStory(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, APIError{Message: err.Error()})
	}
	storyID, err := parseStoryID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid story ID format"})
	}

	story, err := h.service.GetStory(c.Request().Context(), user.ID, storyID)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, story)
}

func (h *StoryHandler) deleteStory(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, APIError{Message: err.Error()})
	}
	storyID, err := parseStoryID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid story ID format"})
	}

	if err := h.service.DeleteStory(c.Request().Context(), user.ID, storyID); err != nil {
		return handleServiceError(c, err)
	}
	// Живые сессии удаленной истории разбираются, их результаты выбрасываются.
	h.sessions.CloseStory(storyID)
	return c.NoContent(http.StatusNoContent)
}

func (h *StoryHandler) listPages(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, APIError{Message: err.Error()})
	}
	storyID, err := parseStoryID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid story ID format"})
	}

	pages, err := h.service.ListPages(c.Request().Context(), user.ID, storyID)
	if err != nil {
		return handleServiceError(c, err)
	}
	if pages == nil {
		pages = []model.Page{}
	}
	return c.JSON(http.StatusOK, pages)
}

func (h *StoryHandler) getPage(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, APIError{Message: err.Error()})
	}
	storyID, err := parseStoryID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid story ID format"})
	}
	number, err := strconv.Atoi(c.Param("num"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid page number"})
	}

	page, err := h.service.GetPage(c.Request().Context(), user.ID, storyID, number)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *StoryHandler) narratePage(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, APIError{Message: err.Error()})
	}
	storyID, err := parseStoryID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid story ID format"})
	}
	number, err := strconv.Atoi(c.Param("num"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid page number"})
	}

	page, err := h.service.GetPage(c.Request().Context(), user.ID, storyID, number)
	if err != nil {
		return handleServiceError(c, err)
	}
	narrated, err := h.service.NarratePage(c.Request().Context(), user.ID, page.ID)
	if err != nil {
		h.logger.Error("Ошибка озвучки страницы", zap.String("pageID", page.ID.String()), zap.Error(err))
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, narrated)
}

// --- Обработчики сессии --- //

func (h *StoryHandler) openSession(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, APIError{Message: err.Error()})
	}
	storyID, err := parseStoryID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid story ID format"})
	}

	session, err := h.sessions.Open(c.Request().Context(), user.ID, storyID)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, session.ViewState())
}

// session возвращает живую сессию запрошенной истории.
func (h *StoryHandler) session(c echo.Context) (*engine.Session, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	storyID, err := parseStoryID(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid story ID format")
	}
	session, err := h.sessions.Get(user.ID, storyID)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Session not found, open it first")
	}
	return session, nil
}

func (h *StoryHandler) getSession(c echo.Context) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session.ViewState())
}

func (h *StoryHandler) closeSession(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, APIError{Message: err.Error()})
	}
	storyID, err := parseStoryID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid story ID format"})
	}

	if err := h.sessions.Close(user.ID, storyID); err != nil {
		return handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *StoryHandler) advanceCursor(c echo.Context) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session.Advance())
}

func (h *StoryHandler) retreatCursor(c echo.Context) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session.Retreat())
}

func (h *StoryHandler) submitPage(c echo.Context) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}

	var req submitPageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
	}
	if err := c.Validate(&req); err != nil {
		return handleServiceError(c, err)
	}

	page, err := session.Submit(c.Request().Context(), req.Prompt)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, page)
}

func (h *StoryHandler) retryStage(c echo.Context) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}

	var req retryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
	}

	page, err := session.Retry(c.Request().Context(), req.SkipImage)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, page)
}
