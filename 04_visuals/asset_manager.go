package visuals

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"dialogue-shorts/config"
	"dialogue-shorts/logging"
)

// ErrNoBackgrounds is returned when the background directory holds no videos
var ErrNoBackgrounds = errors.New("no background videos found")

// usageEntry records one pick of a background video
type usageEntry struct {
	RunID  string `json:"run_id"`
	File   string `json:"file"`
	UsedAt string `json:"used_at"`
}

// AssetManager picks background videos for runs
type AssetManager struct {
	dir     string
	logPath string
	usage   []usageEntry
	rng     *rand.Rand
	log     *zap.Logger
}

// NewAssetManager loads the usage log. A missing or unreadable log starts
// empty.
func NewAssetManager(cfg *config.Config, logger *zap.Logger) *AssetManager {
	return &AssetManager{
		dir:     cfg.Paths.Backgrounds,
		logPath: cfg.Paths.BackgroundUsage,
		usage:   loadUsageLog(cfg.Paths.BackgroundUsage),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		log:     logging.OrNop(logger).Named("assets"),
	}
}

// Backgrounds lists the .mp4 files of the background directory, sorted
func (am *AssetManager) Backgrounds() ([]string, error) {
	return ListVideos(am.dir)
}

// ListVideos lists the .mp4 files directly inside dir, sorted by name
func ListVideos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".mp4") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

// Pick selects a background for runID. The video used most recently is
// skipped while any other is available, and among the rest the least
// used ones win, ties broken at random.
func (am *AssetManager) Pick(runID string) (string, error) {
	files, err := am.Backgrounds()
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoBackgrounds, am.dir)
	}

	counts := make(map[string]int)
	for _, u := range am.usage {
		counts[u.File]++
	}
	last := ""
	if n := len(am.usage); n > 0 {
		last = am.usage[n-1].File
	}

	var candidates []string
	best := -1
	for _, f := range files {
		if f == last && len(files) > 1 {
			continue
		}
		switch c := counts[f]; {
		case best < 0 || c < best:
			best = c
			candidates = []string{f}
		case c == best:
			candidates = append(candidates, f)
		}
	}
	pick := candidates[am.rng.Intn(len(candidates))]

	am.usage = append(am.usage, usageEntry{RunID: runID, File: pick, UsedAt: time.Now().Format(time.RFC3339)})
	if err := am.saveUsageLog(); err != nil {
		am.log.Warn("could not save background usage log", zap.Error(err))
	}
	am.log.Info("picked background", zap.String("file", pick), zap.Int("previous_uses", best))
	return filepath.Join(am.dir, pick), nil
}

func loadUsageLog(path string) []usageEntry {
	var usage []usageEntry
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &usage); err != nil {
		return nil
	}
	return usage
}

func (am *AssetManager) saveUsageLog() error {
	if am.logPath == "" {
		return nil
	}
	data, err := json.MarshalIndent(am.usage, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(am.logPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(am.logPath, data, 0644)
}
