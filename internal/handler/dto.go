package handler

// APIError представляет стандартизированный ответ об ошибке.
type APIError struct {
	Message string `json:"message"`
}

// aiError - формат ошибок генеративных эндпоинтов /ai/*.
type aiError struct {
	Reason string `json:"reason"`
}

type createStoryRequest struct {
	Title string `json:"title"`
}

type submitPageRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

type retryRequest struct {
	// SkipImage на упавшей стадии иллюстрации персистит страницу без
	// изображения вместо повтора генерации.
	SkipImage bool `json:"skipImage"`
}

type completionRequest struct {
	Prompt  string `json:"prompt" validate:"required"`
	StoryID string `json:"storyId" validate:"required,uuid"`
}

type completionResponse struct {
	Text string `json:"text"`
}

type summaryRequest struct {
	Prompt     string `json:"prompt" validate:"required"`
	Completion string `json:"completion" validate:"required"`
}

type imageRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

type ttsRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}
