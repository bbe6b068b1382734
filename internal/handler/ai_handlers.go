package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"primer-server/internal/model"
)

// Генеративные эндпоинты - узкий relay к AI клиенту. По контракту ошибки
// отдаются телом {reason}, а не {message}, как у остального API.

func (h *StoryHandler) listModels(c echo.Context) error {
	models, err := h.ai.ListModels(c.Request().Context())
	if err != nil {
		h.logger.Error("Ошибка получения списка моделей", zap.Error(err))
		return c.JSON(http.StatusBadGateway, aiError{Reason: err.Error()})
	}
	return c.JSON(http.StatusOK, models)
}

// completion продолжает историю вне сессии: история страниц подтягивается
// по storyId, результат никуда не сохраняется.
func (h *StoryHandler) completion(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, aiError{Reason: err.Error()})
	}

	var req completionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, aiError{Reason: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, aiError{Reason: err.Error()})
	}
	storyID, err := uuid.Parse(req.StoryID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, aiError{Reason: "invalid storyId"})
	}

	story, err := h.service.GetStory(c.Request().Context(), user.ID, storyID)
	if err != nil {
		return aiServiceError(c, err)
	}
	history := make([]model.PromptPair, 0, len(story.Pages))
	for _, page := range story.Pages {
		history = append(history, model.PromptPair{Prompt: page.Prompt, Completion: page.Completion})
	}

	text, err := h.ai.Complete(c.Request().Context(), req.Prompt, history)
	if err != nil {
		h.logger.Error("Ошибка генерации продолжения", zap.Error(err))
		return c.JSON(http.StatusBadGateway, aiError{Reason: err.Error()})
	}
	return c.JSON(http.StatusOK, completionResponse{Text: text})
}

func (h *StoryHandler) summary(c echo.Context) error {
	var req summaryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, aiError{Reason: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, aiError{Reason: err.Error()})
	}

	summary, err := h.ai.Summarize(c.Request().Context(), req.Prompt, req.Completion)
	if err != nil {
		h.logger.Error("Ошибка суммаризации", zap.Error(err))
		return c.JSON(http.StatusBadGateway, aiError{Reason: err.Error()})
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *StoryHandler) image(c echo.Context) error {
	var req imageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, aiError{Reason: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, aiError{Reason: err.Error()})
	}

	image, err := h.ai.GenerateImage(c.Request().Context(), req.Prompt)
	if err != nil {
		h.logger.Error("Ошибка генерации изображения", zap.Error(err))
		return c.JSON(http.StatusBadGateway, aiError{Reason: err.Error()})
	}
	return c.JSON(http.StatusOK, image)
}

// tts синтезирует речь и отдает аудиопоток как есть, без сохранения.
func (h *StoryHandler) tts(c echo.Context) error {
	var req ttsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, aiError{Reason: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, aiError{Reason: err.Error()})
	}

	audio, err := h.ai.Synthesize(c.Request().Context(), req.Prompt)
	if err != nil {
		h.logger.Error("Ошибка синтеза речи", zap.Error(err))
		return c.JSON(http.StatusBadGateway, aiError{Reason: err.Error()})
	}
	return c.Blob(http.StatusOK, "audio/mpeg", audio)
}

// speechToken выдает клиенту короткоживущий токен Azure для распознавания
// речи на устройстве.
func (h *StoryHandler) speechToken(c echo.Context) error {
	if h.speech == nil {
		return c.JSON(http.StatusNotImplemented, aiError{Reason: "speech recognition is not configured"})
	}
	token, err := h.speech.GetToken(c.Request().Context())
	if err != nil {
		h.logger.Error("Ошибка получения речевого токена", zap.Error(err))
		return c.JSON(http.StatusBadGateway, aiError{Reason: err.Error()})
	}
	return c.JSON(http.StatusOK, token)
}

// aiServiceError транслирует доменные ошибки в формат {reason}.
func aiServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return c.JSON(http.StatusNotFound, aiError{Reason: "story not found"})
	case errors.Is(err, model.ErrForbidden):
		return c.JSON(http.StatusForbidden, aiError{Reason: "access denied"})
	default:
		return c.JSON(http.StatusInternalServerError, aiError{Reason: "internal error"})
	}
}
