package images

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ccrossmock13/turf-ai/internal/core/domain"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Library serves reference photos from a local directory tree, one
// subdirectory per topic (disease/, weed/, ...). The tree is scanned once
// at startup; answers only ever read the snapshot.
type Library struct {
	baseDir string

	mu      sync.RWMutex
	byTopic map[string][]domain.Image
}

func NewLibrary(baseDir string) (*Library, error) {
	lib := &Library{
		baseDir: baseDir,
		byTopic: make(map[string][]domain.Image),
	}
	if baseDir == "" {
		return lib, nil
	}
	if err := lib.Reload(); err != nil {
		return nil, err
	}
	return lib, nil
}

// Reload rescans the directory tree. Safe to call while serving.
func (l *Library) Reload() error {
	entries, err := os.ReadDir(l.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read image dir: %w", err)
	}

	byTopic := make(map[string][]domain.Image)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		topic := strings.ToLower(entry.Name())
		files, err := os.ReadDir(filepath.Join(l.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		for _, file := range files {
			if file.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(file.Name()))] {
				continue
			}
			byTopic[topic] = append(byTopic[topic], domain.Image{
				Path:    filepath.ToSlash(filepath.Join(topic, file.Name())),
				Caption: captionFromFilename(file.Name()),
				Topic:   topic,
			})
		}
	}

	l.mu.Lock()
	l.byTopic = byTopic
	l.mu.Unlock()
	return nil
}

func (l *Library) ImagesForTopic(topic string, limit int) []domain.Image {
	l.mu.RLock()
	defer l.mu.RUnlock()

	images := l.byTopic[strings.ToLower(topic)]
	if limit <= 0 || limit > len(images) {
		limit = len(images)
	}
	out := make([]domain.Image, limit)
	copy(out, images[:limit])
	return out
}

// BaseDir is the root served by the static image route.
func (l *Library) BaseDir() string { return l.baseDir }

// captionFromFilename turns "dollar-spot_bentgrass.jpg" into
// "dollar spot bentgrass".
func captionFromFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}
