package model

import "errors"

// Сигнальные ошибки доменного слоя. Хендлеры переводят их в HTTP статусы,
// поэтому нижние слои должны оборачивать свои ошибки через %w.
var (
	// ErrNotFound - запрошенная сущность не существует.
	ErrNotFound = errors.New("сущность не найдена")
	// ErrForbidden - сущность принадлежит другому пользователю.
	ErrForbidden = errors.New("доступ запрещен")
	// ErrInvalidInput - некорректные входные данные.
	ErrInvalidInput = errors.New("некорректные входные данные")
	// ErrBusy - над сессией уже выполняется операция создания страницы.
	ErrBusy = errors.New("сессия занята созданием страницы")
	// ErrGenerationFailed - стадия генерации текста или суммаризации упала;
	// черновик сохранен, попытку можно повторить.
	ErrGenerationFailed = errors.New("ошибка генерации страницы")
	// ErrIllustrationFailed - стадия иллюстрации упала; текстовые стадии
	// завершены, попытку можно повторить или пропустить иллюстрацию.
	ErrIllustrationFailed = errors.New("ошибка генерации иллюстрации")
	// ErrPersistenceFailed - страница не сохранилась в БД; черновик
	// сохранен, повторная попытка идемпотентна.
	ErrPersistenceFailed = errors.New("ошибка сохранения страницы")
)
