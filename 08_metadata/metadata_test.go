package metadata

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"dialogue-shorts/config"
	"dialogue-shorts/types"
)

type fakeProvider struct {
	answer string
	err    error
	user   string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, system, user string) (string, error) {
	f.user = user
	return f.answer, f.err
}

var dialogue = &types.Script{
	Topic: "black holes",
	Turns: []types.DialogueTurn{
		{Speaker: "Stewie", Text: "Is a black hole just a very deep pothole?"},
		{Speaker: "Peter", Text: "Not quite, Stewie."},
	},
}

func TestRunUsesModelAnswer(t *testing.T) {
	cfg := config.Default()
	cfg.Upload.Visibility = "unlisted"
	p := &fakeProvider{answer: "```json\n" + `{"title":"Peter Explains Black Holes","description":"Space is weird. #physics","tags":["#space","Space","black holes",""]}` + "\n```"}
	md := New(cfg, p, nil).Run(context.Background(), dialogue)

	if md.Title != "Peter Explains Black Holes" {
		t.Errorf("title = %q", md.Title)
	}
	if !strings.HasSuffix(md.Description, "#Shorts") {
		t.Errorf("description = %q", md.Description)
	}
	if !reflect.DeepEqual(md.Tags, []string{"space", "black holes"}) {
		t.Errorf("tags = %v", md.Tags)
	}
	if md.CategoryID != "27" || md.Visibility != "unlisted" {
		t.Errorf("category/visibility = %q/%q", md.CategoryID, md.Visibility)
	}
	if !strings.Contains(p.user, "TOPIC: black holes") || !strings.Contains(p.user, "- Stewie: Is a black hole") {
		t.Errorf("prompt = %q", p.user)
	}
}

func TestRunFallsBack(t *testing.T) {
	tests := []struct {
		name string
		p    *fakeProvider
	}{
		{"error", &fakeProvider{err: errors.New("503")}},
		{"garbage", &fakeProvider{answer: "I cannot help with that"}},
		{"no title", &fakeProvider{answer: `{"title":"  ","tags":[]}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := New(config.Default(), tt.p, nil).Run(context.Background(), dialogue)
			if md.Title != "Peter Explains Black Holes to Stewie" {
				t.Errorf("title = %q", md.Title)
			}
			if len(md.Tags) == 0 || md.Tags[0] != "black holes" {
				t.Errorf("tags = %v", md.Tags)
			}
		})
	}
	md := New(config.Default(), nil, nil).Run(context.Background(), dialogue)
	if !strings.Contains(md.Description, "#Shorts") {
		t.Errorf("description = %q", md.Description)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this title is far too long", 12, "this titl..."},
		{"héllo wörld", 8, "héllo..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestCleanTagsLimits(t *testing.T) {
	if got := CleanTags([]string{"a", "b", "c"}, 2); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("count limit: %v", got)
	}
	long := strings.Repeat("x", 300)
	got := CleanTags([]string{long, long + "y", "ok", "<b>bold</b>"}, 0)
	if !reflect.DeepEqual(got, []string{long}) {
		t.Errorf("length limit: %d tags", len(got))
	}
}
