package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"dialogue-shorts/config"
	"dialogue-shorts/logging"
	"dialogue-shorts/types"
)

// ErrNoCredentials is returned when the OAuth environment is incomplete
var ErrNoCredentials = errors.New("YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET, or YOUTUBE_REFRESH_TOKEN not set")

// Uploader publishes finished shorts through the YouTube Data API v3
type Uploader struct {
	cfg *config.Config
	log *zap.Logger
}

// New creates a new Uploader
func New(cfg *config.Config, logger *zap.Logger) *Uploader {
	return &Uploader{cfg: cfg, log: logging.OrNop(logger).Named("upload")}
}

// Result identifies an uploaded video
type Result struct {
	VideoID string `json:"video_id"`
	URL     string `json:"video_url"`
}

// Run uploads videoFile with md and returns the new video's ID and URL
func (u *Uploader) Run(ctx context.Context, videoFile string, md *types.VideoMetadata) (*Result, error) {
	if md == nil {
		return nil, errors.New("upload needs metadata")
	}
	f, err := os.Open(videoFile)
	if err != nil {
		return nil, fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	u.log.Info("authenticating with YouTube")
	client, err := OAuthClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("youtube auth: %w", err)
	}
	svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}

	if fi, err := f.Stat(); err == nil {
		u.log.Info("uploading", zap.String("title", md.Title), zap.Float64("mb", float64(fi.Size())/1024/1024))
	}

	video := BuildVideo(md, u.cfg.Upload)
	call := svc.Videos.Insert([]string{"snippet", "status"}, video).
		NotifySubscribers(u.cfg.Upload.NotifySubscribers).
		Media(f).
		Context(ctx)
	uploaded, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("youtube upload: %w", err)
	}

	res := &Result{VideoID: uploaded.Id, URL: "https://youtube.com/shorts/" + uploaded.Id}
	u.log.Info("uploaded", zap.String("video_id", res.VideoID), zap.String("url", res.URL))
	return res, nil
}

// BuildVideo turns metadata into the API resource
func BuildVideo(md *types.VideoMetadata, cfg config.UploadConfig) *youtube.Video {
	visibility := md.Visibility
	if visibility == "" {
		visibility = cfg.Visibility
	}
	if visibility == "" {
		visibility = "private"
	}
	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:                md.Title,
			Description:          md.Description,
			Tags:                 md.Tags,
			CategoryId:           md.CategoryID,
			DefaultLanguage:      cfg.DefaultLanguage,
			DefaultAudioLanguage: cfg.DefaultLanguage,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           visibility,
			SelfDeclaredMadeForKids: cfg.MadeForKids,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}
}

// OAuthClient creates an OAuth2 HTTP client from a stored refresh token
func OAuthClient(ctx context.Context) (*http.Client, error) {
	clientID := os.Getenv("YOUTUBE_CLIENT_ID")
	clientSecret := os.Getenv("YOUTUBE_CLIENT_SECRET")
	refreshToken := os.Getenv("YOUTUBE_REFRESH_TOKEN")
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, ErrNoCredentials
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	return conf.Client(ctx, token), nil
}

// LogUpload saves the upload result next to the run's other logs
func LogUpload(res *Result, videoFile, logDir string, md *types.VideoMetadata) (string, error) {
	entry := map[string]any{
		"video_id":    res.VideoID,
		"video_url":   res.URL,
		"title":       md.Title,
		"visibility":  md.Visibility,
		"uploaded_at": time.Now().UTC().Format(time.RFC3339),
		"video_file":  videoFile,
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", err
	}
	logFile := filepath.Join(logDir, fmt.Sprintf("upload_%s_%s.json", time.Now().Format("20060102_150405"), res.VideoID))
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", err
	}
	return logFile, os.WriteFile(logFile, data, 0644)
}
