package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrMediaSaveFailed - не удалось сохранить медиафайл на диск.
var ErrMediaSaveFailed = errors.New("ошибка сохранения медиафайла")

// MediaStore сохраняет сгенерированные иллюстрации и аудио на диск и
// отдает публичные URL для клиента.
type MediaStore interface {
	// SaveImage сохраняет изображение (png) и возвращает публичный URL.
	SaveImage(name string, data []byte) (string, error)
	// SaveAudio сохраняет аудио (mp3) и возвращает публичный URL.
	SaveAudio(name string, data []byte) (string, error)
}

// Compile-time check to ensure fileMediaStore implements MediaStore
var _ MediaStore = (*fileMediaStore)(nil)

type fileMediaStore struct {
	savePath      string
	publicBaseURL string
	logger        *zap.Logger
}

// NewFileMediaStore создает файловое хранилище медиа. Директория создается
// при старте, чтобы падать сразу, а не на первом сохранении.
func NewFileMediaStore(savePath, publicBaseURL string, logger *zap.Logger) (MediaStore, error) {
	if err := os.MkdirAll(savePath, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории медиа '%s': %w", savePath, err)
	}
	return &fileMediaStore{
		savePath:      savePath,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		logger:        logger.Named("FileMediaStore"),
	}, nil
}

func (s *fileMediaStore) SaveImage(name string, data []byte) (string, error) {
	return s.save(name+".png", data)
}

func (s *fileMediaStore) SaveAudio(name string, data []byte) (string, error) {
	return s.save(name+".mp3", data)
}

func (s *fileMediaStore) save(fileName string, data []byte) (string, error) {
	if fileName == "" || len(data) == 0 {
		return "", fmt.Errorf("%w: пустое имя файла или данные", ErrMediaSaveFailed)
	}
	// Имя файла формируется сервером из UUID, но на всякий случай
	// отбрасываем все, что похоже на путь.
	fileName = filepath.Base(fileName)

	filePath := filepath.Join(s.savePath, fileName)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		s.logger.Error("Ошибка записи медиафайла", zap.String("path", filePath), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrMediaSaveFailed, err)
	}

	s.logger.Debug("Медиафайл сохранен", zap.String("path", filePath), zap.Int("size", len(data)))
	return s.publicBaseURL + "/" + fileName, nil
}
