package dialog

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/m3rciful/synthbot/internal/experiments"
	"github.com/m3rciful/synthbot/internal/params"
	"github.com/m3rciful/synthbot/internal/predictor"
)

type sent struct {
	kind string // send, prompt, edit
	text string
	ref  Message
}

type recorder struct {
	mu   sync.Mutex
	out  []sent
	next int
}

func (r *recorder) Send(_ context.Context, text string) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	msg := Message{ID: strconv.Itoa(r.next), ChatID: 1}
	r.out = append(r.out, sent{kind: "send", text: text, ref: msg})
	return msg, nil
}

func (r *recorder) Prompt(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, sent{kind: "prompt", text: text})
	return nil
}

func (r *recorder) Edit(_ context.Context, msg Message, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, sent{kind: "edit", text: text, ref: msg})
	return nil
}

func (r *recorder) last() sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.out) == 0 {
		return sent{}
	}
	return r.out[len(r.out)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.out)
}

type mockPredictor struct {
	mock.Mock
}

func (m *mockPredictor) Predict(ctx context.Context, rec params.Record) (predictor.Result, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(predictor.Result), args.Error(1)
}

type fakeRepo struct {
	mu      sync.Mutex
	items   map[string]*experiments.Experiment
	seq     int
	saves   int
	failErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: make(map[string]*experiments.Experiment)}
}

func (f *fakeRepo) put(e experiments.Experiment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := e
	f.items[e.ID] = &cp
}

func (f *fakeRepo) get(id string) *experiments.Experiment {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[id]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

func (f *fakeRepo) Create(_ context.Context, userID int64, rec params.Record, size, pdi float64) (*experiments.Experiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	f.seq++
	e := &experiments.Experiment{
		ID:                  "exp-" + strconv.Itoa(f.seq),
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
		CreatedAt:           time.Now(),
	}
	cp := *e
	f.items[e.ID] = &cp
	return e, nil
}

func (f *fakeRepo) FindByID(_ context.Context, id string, userID int64) (*experiments.Experiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	e, ok := f.items[id]
	if !ok || e.UserID != userID {
		return nil, experiments.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeRepo) FindAllByUser(context.Context, int64, experiments.Order, int) ([]experiments.Experiment, error) {
	return nil, nil
}

func (f *fakeRepo) FindSince(context.Context, int64, time.Time) ([]experiments.Experiment, error) {
	return nil, nil
}

func (f *fakeRepo) Save(_ context.Context, e *experiments.Experiment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	if _, ok := f.items[e.ID]; !ok {
		return experiments.ErrNotFound
	}
	cp := *e
	f.items[e.ID] = &cp
	f.saves++
	return nil
}

func (f *fakeRepo) CountByUser(context.Context, int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items), nil
}

func ptr(v float64) *float64 { return &v }
