package notify

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/config"
	"github.com/JoahanSP/SECURENET/internal/database/mock"
	"github.com/JoahanSP/SECURENET/internal/faces"
	"github.com/JoahanSP/SECURENET/internal/storage"
	"github.com/JoahanSP/SECURENET/internal/telegram"
)

type sentPhoto struct {
	chatID  int64
	path    string
	caption string
	markup  *telegram.InlineKeyboardMarkup
}

type edit struct {
	chatID, messageID int64
	caption           string
}

type fakeBot struct {
	mu       sync.Mutex
	photos   []sentPhoto
	messages []string
	edits    []edit
	answered []string
	photoErr error
}

func (b *fakeBot) SendPhoto(ctx context.Context, chatID int64, photoPath, caption string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.photoErr != nil {
		return nil, b.photoErr
	}
	b.photos = append(b.photos, sentPhoto{chatID, photoPath, caption, markup})
	return &telegram.Message{MessageID: int64(len(b.photos)), Chat: telegram.Chat{ID: chatID}}, nil
}

func (b *fakeBot) SendMessage(ctx context.Context, chatID int64, text string) (*telegram.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, text)
	return &telegram.Message{Chat: telegram.Chat{ID: chatID}, Text: text}, nil
}

func (b *fakeBot) EditMessageCaption(ctx context.Context, chatID, messageID int64, caption string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edits = append(b.edits, edit{chatID, messageID, caption})
	return nil
}

func (b *fakeBot) AnswerCallbackQuery(ctx context.Context, queryID, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answered = append(b.answered, queryID)
	return nil
}

func (b *fakeBot) lastEdit(t *testing.T) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.edits) == 0 {
		t.Fatal("expected a caption edit")
	}
	return b.edits[len(b.edits)-1].caption
}

func (b *fakeBot) lastMessage(t *testing.T) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.messages) == 0 {
		t.Fatal("expected a reply message")
	}
	return b.messages[len(b.messages)-1]
}

// stubEmbedder returns one confident face, or nothing when empty is set.
type stubEmbedder struct {
	empty bool
}

func (s *stubEmbedder) DetectFaces(ctx context.Context, data []byte) (*faces.DetectionResponse, error) {
	if s.empty {
		return &faces.DetectionResponse{}, nil
	}
	emb := make([]float32, 8)
	emb[0] = 1
	return &faces.DetectionResponse{
		FacesCount: 1,
		Faces:      []faces.Detection{{Embedding: emb, DetScore: 0.9, Dim: 8}},
	}, nil
}

func testMessages() config.MessagesConfig {
	return config.MessagesConfig{
		AlertCaption:    "Visitor detected",
		ButtonAuthorize: "Authorize",
		ButtonIntruder:  "Intruder",
		ButtonName:      "Assign name",
		Authorized:      "%s authorized",
		AuthorizeFailed: "could not authorize %s",
		MarkedIntruder:  "%s marked as intruder",
		AskName:         "send the name for %s",
		NameAdded:       "%s added",
		NameFailed:      "could not add the face",
		NameInvalid:     "invalid name",
		CallbackFailed:  "could not process the request",
	}
}

type harness struct {
	bot     *fakeBot
	router  *storage.Router
	store   *mock.MockFaceStore
	emb     *stubEmbedder
	pending *PendingDecisions
	handler *CallbackHandler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	router := storage.NewRouter(
		filepath.Join(root, "pending"),
		filepath.Join(root, "intruders"),
		filepath.Join(root, "authorized"),
		100, zerolog.Nop())
	store := mock.NewMockFaceStore()
	emb := &stubEmbedder{}
	registry := faces.NewRegistry(emb, store, faces.MatcherOptions{}, zerolog.Nop())
	bot := &fakeBot{}
	pending := NewPendingDecisions(0, zerolog.Nop())
	return &harness{
		bot:     bot,
		router:  router,
		store:   store,
		emb:     emb,
		pending: pending,
		handler: NewCallbackHandler(bot, router, registry, pending, testMessages(), nil, nil, zerolog.Nop()),
	}
}

// intruder stores a decodable PNG in the intruder category and returns its
// file name.
func (h *harness) intruder(t *testing.T, original string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	path, err := h.router.Store(buf.Bytes(), original, storage.Intruder)
	if err != nil {
		t.Fatalf("store intruder: %v", err)
	}
	return filepath.Base(path)
}

func (h *harness) exists(cat storage.Category, filename string) bool {
	_, err := os.Stat(filepath.Join(h.router.Dir(cat), filename))
	return !errors.Is(err, os.ErrNotExist)
}
