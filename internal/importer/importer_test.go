package importer

import (
	"context"
	"testing"

	"github.com/jeastham1993/zettel-system/internal/storage"
)

type fakeCreator struct {
	title   string
	content string
	tags    []string
	called  bool
}

func (c *fakeCreator) Create(_ context.Context, title, content string, tags []string) (storage.Note, error) {
	c.title = title
	c.content = content
	c.tags = tags
	c.called = true
	return storage.Note{ID: "created", Title: title, Content: content, Tags: tags}, nil
}

func TestImportMarkdown_TitleFromHeading(t *testing.T) {
	creator := &fakeCreator{}
	imp := New(creator)

	text := "# Deliberate Practice\n\nFocused repetition with feedback.\n"
	note, err := imp.ImportMarkdown(context.Background(), "notes/practice.md", text, []string{"learning"})
	if err != nil {
		t.Fatalf("ImportMarkdown: %v", err)
	}
	if note.Title != "Deliberate Practice" {
		t.Errorf("Title = %q", note.Title)
	}
	if creator.content != "Focused repetition with feedback.\n" {
		t.Errorf("content = %q, want heading stripped", creator.content)
	}
}

func TestImportMarkdown_TitleFromFilename(t *testing.T) {
	creator := &fakeCreator{}
	imp := New(creator)

	_, err := imp.ImportMarkdown(context.Background(), "inbox/meeting-notes_2026.md", "no heading here", nil)
	if err != nil {
		t.Fatalf("ImportMarkdown: %v", err)
	}
	if creator.title != "meeting notes 2026" {
		t.Errorf("title = %q, want derived from filename", creator.title)
	}
	if creator.content != "no heading here" {
		t.Errorf("content = %q, want untouched body", creator.content)
	}
}

func TestImportMarkdown_NoTitleAvailable(t *testing.T) {
	imp := New(&fakeCreator{})
	if _, err := imp.ImportMarkdown(context.Background(), "___.md", "body only", nil); err == nil {
		t.Error("ImportMarkdown accepted an untitleable document")
	}
}

func TestImportPDF_InvalidData(t *testing.T) {
	creator := &fakeCreator{}
	imp := New(creator)

	if _, err := imp.ImportPDF(context.Background(), "broken.pdf", []byte("not a pdf"), nil); err == nil {
		t.Error("ImportPDF accepted invalid data")
	}
	if creator.called {
		t.Error("note created from an unreadable PDF")
	}
}

func TestSplitTitle(t *testing.T) {
	cases := []struct {
		in        string
		wantTitle string
		wantBody  string
	}{
		{"# Title\n\nBody", "Title", "Body"},
		{"\n\n# Padded \nBody", "Padded", "Body"},
		{"No heading", "", "No heading"},
		{"## Not level one\nBody", "", "## Not level one\nBody"},
		{"# OnlyTitle", "OnlyTitle", ""},
	}
	for _, c := range cases {
		title, body := splitTitle(c.in)
		if title != c.wantTitle || body != c.wantBody {
			t.Errorf("splitTitle(%q) = (%q, %q), want (%q, %q)", c.in, title, body, c.wantTitle, c.wantBody)
		}
	}
}

func TestTitleFromFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"path/to/my-note.md", "my note"},
		{"snake_case_name.pdf", "snake case name"},
		{"plain.txt", "plain"},
		{"___.md", ""},
	}
	for _, c := range cases {
		if got := titleFromFilename(c.in); got != c.want {
			t.Errorf("titleFromFilename(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
