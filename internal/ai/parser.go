package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractSummary вырезает первый JSON-объект из ответа модели и разбирает
// его в Summary. Второй проход нужен потому, что модели периодически
// добавляют текст вокруг запрошенного JSON.
func extractSummary(raw string) (Summary, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return Summary{}, fmt.Errorf("%w: ответ не содержит JSON объекта", ErrEmptyResponse)
	}

	var summary Summary
	if err := json.Unmarshal([]byte(raw[start:end+1]), &summary); err != nil {
		return Summary{}, fmt.Errorf("ошибка разбора summary JSON: %w", err)
	}

	summary.Summary = strings.TrimSpace(summary.Summary)
	summary.ImagePrompt = strings.TrimSpace(summary.ImagePrompt)
	if summary.Summary == "" {
		return Summary{}, fmt.Errorf("%w: пустое краткое содержание", ErrEmptyResponse)
	}
	// Без imagePrompt стадия иллюстрации не сможет стартовать; краткое
	// содержание годится как запасной промт.
	if summary.ImagePrompt == "" {
		summary.ImagePrompt = summary.Summary
	}
	return summary, nil
}
