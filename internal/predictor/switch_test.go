package predictor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/synthbot/internal/params"
)

func TestSwitchRoutesByMode(t *testing.T) {
	process := Func(func(context.Context, params.Record) (Result, error) {
		return Result{Size: 1}, nil
	})
	formula := Func(func(context.Context, params.Record) (Result, error) {
		return Result{Size: 2}, nil
	})
	sw := NewSwitch(process, formula, ModeProcess)
	rec := params.FromStored(1, 1, 3, 2, 11, 500, 30, 500.0/30)

	res, err := sw.Predict(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Size)

	require.NoError(t, sw.SetMode(ModeFormula))
	assert.Equal(t, ModeFormula, sw.Mode())
	res, err = sw.Predict(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Size)
}

func TestSwitchRejectsUnknownMode(t *testing.T) {
	sw := NewSwitch(nil, FormulaPredictor{}, ModeFormula)
	require.Error(t, sw.SetMode("neural"))
	assert.Equal(t, ModeFormula, sw.Mode())
}

func TestSwitchMissingPredictorIsGatewayError(t *testing.T) {
	sw := NewSwitch(nil, FormulaPredictor{}, ModeProcess)
	_, err := sw.Predict(context.Background(), params.FromStored(1, 1, 1, 0, 7, 1, 1, 1))
	assert.ErrorIs(t, err, ErrGateway)
}

func TestSwitchConcurrentModeChanges(t *testing.T) {
	sw := NewSwitch(FormulaPredictor{}, FormulaPredictor{}, ModeProcess)
	rec := params.FromStored(1, 1, 3, 2, 11, 500, 30, 500.0/30)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = sw.SetMode(ModeFormula)
			} else {
				_ = sw.SetMode(ModeProcess)
			}
			_, err := sw.Predict(context.Background(), rec)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Formula ")
	require.NoError(t, err)
	assert.Equal(t, ModeFormula, m)

	_, err = ParseMode("")
	assert.Error(t, err)
}

func TestFormulaPredictorDeterministic(t *testing.T) {
	rec, err := params.Parse(params.Tokenize("1 1 3 2 11 500 30"))
	require.NoError(t, err)

	a, err := FormulaPredictor{}.Predict(context.Background(), rec)
	require.NoError(t, err)
	b, err := FormulaPredictor{}.Predict(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Greater(t, a.Size, 0.0)
	assert.Greater(t, a.PdI, 0.0)
	assert.Nil(t, a.SizeConfidence)
}

func TestDecodeResponseConfidence(t *testing.T) {
	res, err := decodeResponse([]byte(`{"size": 5, "pdi": 0.1, "sizeConfidence": 0.75, "pdiConfidence": null}`))
	require.NoError(t, err)
	require.NotNil(t, res.SizeConfidence)
	assert.Equal(t, 0.75, *res.SizeConfidence)
	assert.Nil(t, res.PdIConfidence)

	for _, raw := range []string{`null`, `"-"`, `"0.5"`, ``} {
		assert.Nil(t, confidence(json.RawMessage(raw)), "confidence %q", raw)
	}
	got := confidence(json.RawMessage(`0`))
	require.NotNil(t, got, "zero is a real confidence")
	assert.Zero(t, *got)
}
