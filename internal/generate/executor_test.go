package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jeastham1993/zettel-system/internal/outbox"
	"github.com/jeastham1993/zettel-system/internal/storage"
)

type fakeGenerationStore struct {
	gen    storage.Generation
	voice  storage.Voice
	result string
}

func (s *fakeGenerationStore) GetGeneration(_ context.Context, id string) (storage.Generation, error) {
	if id != s.gen.ID {
		return storage.Generation{}, storage.ErrNotFound
	}
	return s.gen, nil
}

func (s *fakeGenerationStore) SetGenerationResult(_ context.Context, _, result string) error {
	s.result = result
	return nil
}

func (s *fakeGenerationStore) GetVoice(_ context.Context, id string) (storage.Voice, error) {
	if id != s.voice.ID {
		return storage.Voice{}, storage.ErrNotFound
	}
	return s.voice, nil
}

type fakeChat struct {
	system string
	user   string
	reply  string
	err    error
}

func (c *fakeChat) Chat(_ context.Context, system, user string) (string, error) {
	c.system = system
	c.user = user
	return c.reply, c.err
}

func newTestComposer() *Composer {
	return NewComposer(&fakeNoteReader{}, &fakeRelated{}, 0)
}

func TestGenerateExecutor_DraftsAndStoresResult(t *testing.T) {
	store := &fakeGenerationStore{
		gen:   storage.Generation{ID: "g1", Kind: "blog", Topic: "habits", VoiceID: "v1"},
		voice: storage.Voice{ID: "v1", StylePrompt: "Be direct."},
	}
	chat := &fakeChat{reply: "  A drafted post.  "}
	e := NewExecutor(store, newTestComposer(), chat, nil)

	if err := e.Execute(context.Background(), "g1"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if store.result != "A drafted post." {
		t.Errorf("stored result = %q, want trimmed draft", store.result)
	}
	if !strings.Contains(chat.system, "Be direct.") {
		t.Error("voice style missing from system prompt")
	}
	if !strings.Contains(chat.user, "habits") {
		t.Error("topic missing from user prompt")
	}
}

func TestGenerateExecutor_UnknownKindIsPermanent(t *testing.T) {
	store := &fakeGenerationStore{gen: storage.Generation{ID: "g1", Kind: "newsletter"}}
	e := NewExecutor(store, newTestComposer(), &fakeChat{reply: "x"}, nil)

	err := e.Execute(context.Background(), "g1")
	if err == nil {
		t.Fatal("Execute accepted an unknown kind")
	}
	if !outbox.IsPermanent(err) {
		t.Errorf("unknown kind error %v not permanent", err)
	}
}

func TestGenerateExecutor_MissingVoiceTolerated(t *testing.T) {
	store := &fakeGenerationStore{gen: storage.Generation{ID: "g1", Kind: "blog", VoiceID: "deleted"}}
	chat := &fakeChat{reply: "draft"}
	e := NewExecutor(store, newTestComposer(), chat, nil)

	if err := e.Execute(context.Background(), "g1"); err != nil {
		t.Fatalf("Execute with deleted voice: %v", err)
	}
	if strings.Contains(chat.system, "Voice and style") {
		t.Error("system prompt carries style section for a deleted voice")
	}
}

func TestGenerateExecutor_EmptyDraftFails(t *testing.T) {
	store := &fakeGenerationStore{gen: storage.Generation{ID: "g1", Kind: "blog"}}
	e := NewExecutor(store, newTestComposer(), &fakeChat{reply: "   "}, nil)

	err := e.Execute(context.Background(), "g1")
	if err == nil {
		t.Fatal("Execute accepted an empty draft")
	}
	if outbox.IsPermanent(err) {
		t.Error("empty draft marked permanent, want retry")
	}
	if store.result != "" {
		t.Errorf("empty draft stored: %q", store.result)
	}
}

func TestGenerateExecutor_ChatErrorPropagates(t *testing.T) {
	wantErr := errors.New("model overloaded")
	store := &fakeGenerationStore{gen: storage.Generation{ID: "g1", Kind: "social"}}
	e := NewExecutor(store, newTestComposer(), &fakeChat{err: wantErr}, nil)

	if err := e.Execute(context.Background(), "g1"); !errors.Is(err, wantErr) {
		t.Errorf("Execute = %v, want wrapped chat error", err)
	}
}

func TestGenerateExecutor_DeletedRunIsNoOp(t *testing.T) {
	store := &fakeGenerationStore{gen: storage.Generation{ID: "other"}}
	e := NewExecutor(store, newTestComposer(), &fakeChat{reply: "x"}, nil)

	if err := e.Execute(context.Background(), "gone"); err != nil {
		t.Errorf("Execute on a deleted run = %v, want nil", err)
	}
}
