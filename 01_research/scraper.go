package research

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vartanbeno/go-reddit/v2/reddit"
	"go.uber.org/zap"

	"dialogue-shorts/config"
	"dialogue-shorts/logging"
	"dialogue-shorts/types"
)

// ErrNoTopics is returned when every source came back empty or used
var ErrNoTopics = errors.New("no unused topics found")

// PostSource lists the hot posts of a subreddit
type PostSource interface {
	HotPosts(ctx context.Context, subreddit string, limit int) ([]*reddit.Post, error)
}

// RedditSource reads Reddit through go-reddit. With REDDIT_CLIENT_ID and
// REDDIT_CLIENT_SECRET set it authenticates, otherwise it uses the
// read-only client.
type RedditSource struct {
	client *reddit.Client
}

// NewRedditSource builds a Reddit client from the environment
func NewRedditSource() (*RedditSource, error) {
	var opts []reddit.Opt
	if ua := os.Getenv("REDDIT_USER_AGENT"); ua != "" {
		opts = append(opts, reddit.WithUserAgent(ua))
	}

	id, secret := os.Getenv("REDDIT_CLIENT_ID"), os.Getenv("REDDIT_CLIENT_SECRET")
	user, pass := os.Getenv("REDDIT_USERNAME"), os.Getenv("REDDIT_PASSWORD")
	var (
		client *reddit.Client
		err    error
	)
	if id != "" && secret != "" && user != "" && pass != "" {
		client, err = reddit.NewClient(reddit.Credentials{ID: id, Secret: secret, Username: user, Password: pass}, opts...)
	} else {
		client, err = reddit.NewReadonlyClient(opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}
	return &RedditSource{client: client}, nil
}

func (r *RedditSource) HotPosts(ctx context.Context, subreddit string, limit int) ([]*reddit.Post, error) {
	posts, _, err := r.client.Subreddit.HotPosts(ctx, subreddit, &reddit.ListOptions{Limit: limit})
	return posts, err
}

// Scraper picks topics from subreddits, skipping ones already used
type Scraper struct {
	cfg     *config.Config
	source  PostSource
	used    map[string]bool
	logPath string
	log     *zap.Logger
}

// New creates a new Scraper
func New(cfg *config.Config, source PostSource, logger *zap.Logger) *Scraper {
	return &Scraper{
		cfg:     cfg,
		source:  source,
		used:    loadUsedTopics(cfg.Paths.UsedTopicsLog),
		logPath: cfg.Paths.UsedTopicsLog,
		log:     logging.OrNop(logger).Named("research"),
	}
}

// Run returns the best unused topic and marks it used
func (s *Scraper) Run(ctx context.Context) (*types.Topic, error) {
	topics, err := s.Candidates(ctx, 1)
	if err != nil {
		return nil, err
	}
	t := topics[0]
	if err := s.MarkUsed(t); err != nil {
		s.log.Warn("could not update used topics log", zap.Error(err))
	}
	s.log.Info("selected topic", zap.String("title", t.Title), zap.Int("score", t.Score))
	return &t, nil
}

// Candidates returns up to n unused topics, best first. Subreddits that
// fail are logged and skipped.
func (s *Scraper) Candidates(ctx context.Context, n int) ([]types.Topic, error) {
	s.log.Info("fetching hot posts", zap.Strings("subreddits", s.cfg.Research.Subreddits))

	limit := s.cfg.Research.Limit
	if limit <= 0 {
		limit = 25
	}
	seen := make(map[string]bool)
	var candidates []types.Topic
	for _, sub := range s.cfg.Research.Subreddits {
		posts, err := s.source.HotPosts(ctx, sub, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn("subreddit fetch failed", zap.String("subreddit", sub), zap.Error(err))
			continue
		}
		kept := 0
		for _, p := range posts {
			t, ok := s.topicFromPost(sub, p)
			if !ok || seen[t.ID] || s.used[t.ID] {
				continue
			}
			seen[t.ID] = true
			candidates = append(candidates, t)
			kept++
		}
		s.log.Debug("subreddit done", zap.String("subreddit", sub), zap.Int("posts", len(posts)), zap.Int("kept", kept))
	}

	if len(candidates) == 0 {
		return nil, ErrNoTopics
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates, nil
}

func (s *Scraper) topicFromPost(sub string, p *reddit.Post) (types.Topic, bool) {
	if p == nil || p.NSFW || p.Stickied || p.Locked {
		return types.Topic{}, false
	}
	title := strings.TrimSpace(p.Title)
	if title == "" || title == "[removed]" || title == "[deleted]" {
		return types.Topic{}, false
	}
	if p.Score < s.cfg.Research.MinScore || p.NumberOfComments < s.cfg.Research.MinComments {
		return types.Topic{}, false
	}
	return types.Topic{
		ID:        "reddit_" + p.ID,
		Title:     title,
		Source:    "r/" + sub,
		SourceURL: "https://reddit.com" + p.Permalink,
		Score:     p.Score + 2*p.NumberOfComments,
	}, true
}

// MarkUsed records a topic in the used topics log
func (s *Scraper) MarkUsed(t types.Topic) error {
	s.used[t.ID] = true
	if s.logPath == "" {
		return nil
	}
	ids := make([]string, 0, len(s.used))
	for id := range s.used {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.logPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(s.logPath, data, 0644)
}

// Used reports whether a topic ID is in the log
func (s *Scraper) Used(id string) bool {
	return s.used[id]
}

func loadUsedTopics(path string) map[string]bool {
	used := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return used
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return used
	}
	for _, id := range ids {
		used[id] = true
	}
	return used
}

// FromFile reads one topic per line. Blank lines and lines starting with
// # are ignored.
func FromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var topics []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		topics = append(topics, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return topics, nil
}
