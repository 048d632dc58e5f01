package bot

import (
	"context"
	"io/fs"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/synthbot/internal/access"
	"github.com/m3rciful/synthbot/internal/backup"
	"github.com/m3rciful/synthbot/internal/dialog"
	"github.com/m3rciful/synthbot/internal/experiments"
	"github.com/m3rciful/synthbot/internal/params"
	"github.com/m3rciful/synthbot/internal/predictor"
)

type reply struct {
	kind    string // text, md, photo, document, send, prompt, edit
	text    string
	markup  *tele.ReplyMarkup
	name    string
	data    []byte
	caption string
}

type fakeChat struct {
	mu  sync.Mutex
	out []reply
}

func (f *fakeChat) add(r reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, r)
}

func (f *fakeChat) Send(_ context.Context, text string) (dialog.Message, error) {
	f.add(reply{kind: "send", text: text})
	return dialog.Message{ID: "1", ChatID: 1}, nil
}

func (f *fakeChat) Prompt(_ context.Context, text string) error {
	f.add(reply{kind: "prompt", text: text})
	return nil
}

func (f *fakeChat) Edit(_ context.Context, _ dialog.Message, text string) error {
	f.add(reply{kind: "edit", text: text})
	return nil
}

func (f *fakeChat) Reply(_ context.Context, text string, markup *tele.ReplyMarkup) error {
	f.add(reply{kind: "text", text: text, markup: markup})
	return nil
}

func (f *fakeChat) ReplyMD(_ context.Context, text string, markup *tele.ReplyMarkup) error {
	f.add(reply{kind: "md", text: text, markup: markup})
	return nil
}

func (f *fakeChat) Photo(_ context.Context, png []byte, caption string) error {
	f.add(reply{kind: "photo", data: png, caption: caption})
	return nil
}

func (f *fakeChat) Document(_ context.Context, name string, data []byte, caption string) error {
	f.add(reply{kind: "document", name: name, data: data, caption: caption})
	return nil
}

func (f *fakeChat) last() reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.out) == 0 {
		return reply{}
	}
	return f.out[len(f.out)-1]
}

func (f *fakeChat) all() []reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]reply(nil), f.out...)
}

type fakeConversation struct {
	open    map[int64]bool
	calls   []string
	handled bool
}

func (f *fakeConversation) InProgress(userID int64) bool { return f.open[userID] }

func (f *fakeConversation) StartPrediction(_ context.Context, _ int64, _ dialog.Responder) error {
	f.calls = append(f.calls, "predict")
	return nil
}

func (f *fakeConversation) StartResultEntry(_ context.Context, _ int64, id string, _ dialog.Responder) error {
	f.calls = append(f.calls, "result:"+id)
	return nil
}

func (f *fakeConversation) Cancel(_ context.Context, _ int64, _ dialog.Responder) error {
	f.calls = append(f.calls, "cancel")
	return nil
}

func (f *fakeConversation) HandleText(_ context.Context, _ int64, text string, _ dialog.Responder) (bool, error) {
	f.calls = append(f.calls, "text:"+text)
	return f.handled, nil
}

// memRepo keeps experiments in creation order.
type memRepo struct {
	items []experiments.Experiment
	err   error
}

func (m *memRepo) Create(_ context.Context, userID int64, rec params.Record, size, pdi float64) (*experiments.Experiment, error) {
	e := experiments.Experiment{
		ID:                  "exp-" + strconv.Itoa(len(m.items)+1),
		UserID:              userID,
		EuConcentration:     rec.EuConcentration,
		PhenConcentration:   rec.PhenConcentration,
		LigandConcentration: rec.LigandConcentration,
		LigandType:          rec.LigandType,
		PH:                  rec.PH,
		AdditionVolume:      rec.AdditionVolume,
		AdditionTime:        rec.AdditionTime,
		AdditionRate:        rec.AdditionRate,
		PredictedSize:       size,
		PredictedPdI:        pdi,
		CreatedAt:           time.Date(2026, 3, 1, 10, len(m.items), 0, 0, time.UTC),
	}
	m.items = append(m.items, e)
	return &e, nil
}

func (m *memRepo) FindByID(_ context.Context, id string, userID int64) (*experiments.Experiment, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			e := m.items[i]
			return &e, nil
		}
	}
	return nil, experiments.ErrNotFound
}

func (m *memRepo) FindAllByUser(_ context.Context, userID int64, order experiments.Order, limit int) ([]experiments.Experiment, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []experiments.Experiment
	for _, e := range m.items {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	if order == experiments.NewestFirst {
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) FindSince(ctx context.Context, userID int64, since time.Time) ([]experiments.Experiment, error) {
	all, err := m.FindAllByUser(ctx, userID, experiments.OldestFirst, 0)
	if err != nil {
		return nil, err
	}
	var out []experiments.Experiment
	for _, e := range all {
		if !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memRepo) Save(context.Context, *experiments.Experiment) error { return m.err }

func (m *memRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	all, err := m.FindAllByUser(ctx, userID, experiments.OldestFirst, 0)
	return len(all), err
}

type memWhitelist struct {
	entries map[int64]access.Entry
}

func (m *memWhitelist) Add(_ context.Context, userID, addedBy int64, note string) error {
	if _, ok := m.entries[userID]; ok {
		return access.ErrAlreadyListed
	}
	m.entries[userID] = access.Entry{UserID: userID, AddedBy: addedBy, Note: note}
	return nil
}

func (m *memWhitelist) Remove(_ context.Context, userID int64) error {
	if _, ok := m.entries[userID]; !ok {
		return access.ErrNotListed
	}
	delete(m.entries, userID)
	return nil
}

func (m *memWhitelist) List(context.Context) ([]access.Entry, error) {
	out := make([]access.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

type fakeBackups struct {
	list     []backup.Backup
	restored []string
	err      error
}

func (f *fakeBackups) Create(context.Context) (backup.Backup, error) {
	if f.err != nil {
		return backup.Backup{}, f.err
	}
	bk := backup.Backup{Name: "synth_20260301_100000.sql", Size: 2048}
	f.list = append([]backup.Backup{bk}, f.list...)
	return bk, nil
}

func (f *fakeBackups) List() ([]backup.Backup, error) { return f.list, nil }

func (f *fakeBackups) Restore(_ context.Context, name string) error {
	if f.err != nil {
		return f.err
	}
	for _, bk := range f.list {
		if bk.Name == name {
			f.restored = append(f.restored, name)
			return nil
		}
	}
	return fs.ErrNotExist
}

const (
	testUser  int64 = 42
	testAdmin int64 = 7
)

type fixture struct {
	h         *Handlers
	dialog    *fakeConversation
	repo      *memRepo
	whitelist *memWhitelist
	models    *predictor.Switch
	backups   *fakeBackups
}

func newFixture() *fixture {
	f := &fixture{
		dialog:    &fakeConversation{open: map[int64]bool{}},
		repo:      &memRepo{},
		whitelist: &memWhitelist{entries: map[int64]access.Entry{}},
		models:    predictor.NewSwitch(nil, predictor.FormulaPredictor{}, predictor.ModeFormula),
		backups:   &fakeBackups{},
	}
	f.h = NewHandlers(Options{
		Dialog:           f.dialog,
		Experiments:      f.repo,
		Whitelist:        f.whitelist,
		WhitelistEnabled: true,
		Models:           f.models,
		ModelInfo:        ModelInfo{Command: "python3 model.py", Timeout: 30 * time.Second},
		Backups:          f.backups,
		IsAdmin:          func(id int64) bool { return id == testAdmin },
		ExportMaxRows:    3,
	})
	f.h.now = func() time.Time { return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC) }
	return f
}

func (f *fixture) seed(t testing.TB, userID int64, n int) {
	t.Helper()
	rec, err := params.Parse(params.Tokenize("1 1 3 2 11 500 30"))
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := f.repo.Create(context.Background(), userID, rec, 40+float64(i), 0.2)
		require.NoError(t, err)
	}
}

func req(userID int64, out *fakeChat, args ...string) request {
	return request{UserID: userID, Args: args, Out: out}
}
