package ai

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"primer-server/internal/model"
)

// storytellerSystemPrompt задает роль рассказчика для продолжения детской истории.
const storytellerSystemPrompt = `You are an adept storyteller and teacher for young children.
A child has begun to tell you a story and you will be taking the role of the storyteller and teacher.
You should be playful, silly, and fun.
You should always treat the prompt as fact even if it goes against natural laws, common sense, or past events.
You should respond in an open ended way that encourages the child to continue their story while at the same time being entertaining and educational.
Continue the child's story and then allow the child to continue it further.`

// summaryInstruction требует от модели JSON с кратким содержанием и промтом
// для иллюстрации. Модель иногда оборачивает JSON в пояснительный текст,
// поэтому ответ дополнительно прогоняется через extractSummary.
const summaryInstruction = `At the end of this message I will give you a paragraph of text to summarize as if it were a scene in an educational children's book.
Additionally give a new prompt that can be used for image generation for the summary.
The generated prompt should be evocative, colorful, and suitable for a child.
The output should be json in the form of: {
  "summary": <Summary of the prompt and completion>,
  "imagePrompt": <Prompt for image generation>
}
do not include the <> characters, nor add any additional text other than the json.`

// imageStyleSuffix добавляется к каждому промту генерации иллюстраций.
const imageStyleSuffix = " in the style of a children's book illustration."

// fallbackEncoding используется, когда tiktoken не знает модель.
const fallbackEncoding = "cl100k_base"

// countTokens оценивает количество токенов текста для модели.
func countTokens(modelName, text string) int {
	tke, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		tke, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			// Крайний случай: грубая оценка по длине.
			return len(text) / 4
		}
	}
	return len(tke.Encode(text, nil, nil))
}

// trimHistory отбрасывает самые старые пары {промт, продолжение}, пока
// история не уложится в бюджет токенов. Спецификация движка передает всю
// историю как есть; усечение под контекстное окно — внутреннее дело клиента.
func trimHistory(modelName string, history []model.PromptPair, budget int) []model.PromptPair {
	if budget <= 0 || len(history) == 0 {
		return history
	}

	total := 0
	counts := make([]int, len(history))
	for i, pair := range history {
		counts[i] = countTokens(modelName, pair.Prompt) + countTokens(modelName, pair.Completion)
		total += counts[i]
	}

	start := 0
	for start < len(history) && total > budget {
		total -= counts[start]
		start++
	}
	return history[start:]
}

// buildSummaryInput собирает пользовательское сообщение для суммаризации.
func buildSummaryInput(prompt, completion string) string {
	var b strings.Builder
	b.WriteString(summaryInstruction)
	b.WriteString("\n")
	b.WriteString(prompt)
	b.WriteString(" ")
	b.WriteString(completion)
	return b.String()
}
