package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/synthbot/core/logger"
	"github.com/m3rciful/synthbot/core/telegram/keyboard"
	"github.com/m3rciful/synthbot/internal/charts"
	"github.com/m3rciful/synthbot/internal/experiments"
	"github.com/m3rciful/synthbot/internal/export"
	"github.com/m3rciful/synthbot/internal/params"
)

const (
	formatCSV  = "csv"
	formatXLSX = "xlsx"
)

func (h *Handlers) start(ctx context.Context, req request) error {
	return req.Out.Reply(ctx, msgWelcome, nil)
}

func (h *Handlers) help(ctx context.Context, req request) error {
	return req.Out.Reply(ctx, formatHelp(h.registry, h.isAdmin(req.UserID)), nil)
}

func (h *Handlers) predict(ctx context.Context, req request) error {
	return h.dialog.StartPrediction(ctx, req.UserID, req.Out)
}

func (h *Handlers) addResult(ctx context.Context, req request) error {
	id := ""
	if len(req.Args) > 0 {
		id = req.Args[0]
	}
	return h.dialog.StartResultEntry(ctx, req.UserID, id, req.Out)
}

func (h *Handlers) cancel(ctx context.Context, req request) error {
	return h.dialog.Cancel(ctx, req.UserID, req.Out)
}

func (h *Handlers) history(ctx context.Context, req request) error {
	limit := defaultHistoryLimit
	if len(req.Args) > 0 {
		n, err := strconv.Atoi(req.Args[0])
		if err != nil || n < 1 || n > maxHistoryLimit {
			return req.Out.Reply(ctx, fmt.Sprintf(msgHistoryUsage, maxHistoryLimit), nil)
		}
		limit = n
	}

	exps, err := h.repo.FindAllByUser(ctx, req.UserID, experiments.NewestFirst, limit)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	if len(exps) == 0 {
		return req.Out.Reply(ctx, msgHistoryEmpty, nil)
	}
	total, err := h.repo.CountByUser(ctx, req.UserID)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	return replyLong(ctx, req.Out, formatHistory(exps, total))
}

func (h *Handlers) plot(ctx context.Context, req request) error {
	if len(req.Args) == 0 {
		return req.Out.Reply(ctx, msgPlotChoose, plotKeyboard())
	}
	field, ok := params.LookupField(req.Args[0])
	if !ok {
		return req.Out.Reply(ctx, fmt.Sprintf(msgPlotUsage, req.Args[0], fieldCodes()), nil)
	}
	ref := ""
	if len(req.Args) > 1 {
		ref = req.Args[1]
	}
	return h.sendParameterChart(ctx, req, field, ref)
}

// plotChoice handles a parameter button from the /plot keyboard.
func (h *Handlers) plotChoice(ctx context.Context, req request) error {
	field, ok := params.LookupField(req.Payload)
	if !ok {
		return req.Out.Reply(ctx, msgUnknownCallback, nil)
	}
	return h.sendParameterChart(ctx, req, field, "")
}

func (h *Handlers) sendParameterChart(ctx context.Context, req request, field params.Field, refID string) error {
	var ref *experiments.Experiment
	if refID != "" {
		e, err := h.repo.FindByID(ctx, refID, req.UserID)
		if errors.Is(err, experiments.ErrNotFound) {
			return req.Out.Reply(ctx, msgPlotRefNotFound, nil)
		}
		if err != nil {
			return h.fail(ctx, req, err)
		}
		ref = e
	}

	exps, err := h.repo.FindAllByUser(ctx, req.UserID, experiments.NewestFirst, h.exportMaxRows)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	start := time.Now()
	chart, err := charts.Parameter(exps, field, ref)
	if errors.Is(err, charts.ErrNotEnoughData) {
		return req.Out.Reply(ctx, msgPlotNoData, nil)
	}
	if err != nil {
		return h.fail(ctx, req, err)
	}
	logExport(ctx, "chart.parameter", len(exps), start, slog.String("field", field.Code()))
	return req.Out.Photo(ctx, chart.PNG, chart.Caption)
}

func (h *Handlers) plotCorrelation(ctx context.Context, req request) error {
	exps, err := h.repo.FindAllByUser(ctx, req.UserID, experiments.NewestFirst, h.exportMaxRows)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	start := time.Now()
	chart, err := charts.Correlation(exps)
	if errors.Is(err, charts.ErrNotEnoughData) {
		return req.Out.Reply(ctx, fmt.Sprintf(msgCorrelationNoData, minCorrelationMeasured), nil)
	}
	if err != nil {
		return h.fail(ctx, req, err)
	}
	logExport(ctx, "chart.correlation", len(exps), start)
	return req.Out.Photo(ctx, chart.PNG, chart.Caption)
}

func (h *Handlers) exportCSV(ctx context.Context, req request) error {
	return h.export(ctx, req, formatCSV)
}

func (h *Handlers) exportXLSX(ctx context.Context, req request) error {
	return h.export(ctx, req, formatXLSX)
}

func (h *Handlers) export(ctx context.Context, req request, kind string) error {
	var since time.Time
	if len(req.Args) > 0 {
		t, ok := export.ParseSince(strings.Join(req.Args, " "), h.now(), time.Local)
		if !ok {
			return req.Out.Reply(ctx, fmt.Sprintf(msgExportUsage, "/export_"+kind), nil)
		}
		since = t
	}
	exps, err := h.repo.FindSince(ctx, req.UserID, since)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	if len(exps) == 0 {
		return req.Out.Reply(ctx, msgExportEmpty, nil)
	}

	caption := ""
	if h.exportMaxRows > 0 && len(exps) > h.exportMaxRows {
		exps = exps[len(exps)-h.exportMaxRows:]
		caption = fmt.Sprintf(msgExportTruncated, h.exportMaxRows)
	}

	start := time.Now()
	var buf bytes.Buffer
	switch kind {
	case formatXLSX:
		err = export.WriteXLSX(&buf, exps)
	default:
		err = export.WriteCSV(&buf, exps)
	}
	if err != nil {
		return h.fail(ctx, req, err)
	}
	logExport(ctx, "export."+kind, len(exps), start, slog.Int("bytes", buf.Len()))
	return req.Out.Document(ctx, export.FileName(kind, h.now()), buf.Bytes(), caption)
}

func plotKeyboard() *tele.ReplyMarkup {
	buttons := make([]keyboard.Button, len(params.Fields))
	for i, f := range params.Fields {
		buttons[i] = keyboard.Button{Text: f.String(), Unique: cbPlot, Data: f.Code()}
	}
	return keyboard.Grid(2, buttons...)
}

// fail tells the user something went wrong and hands err back to the
// handler summary log.
func (h *Handlers) fail(ctx context.Context, req request, err error) error {
	if rerr := req.Out.Reply(ctx, msgFailure, nil); rerr != nil {
		return errors.Join(err, rerr)
	}
	return err
}

func logExport(ctx context.Context, event string, rows int, start time.Time, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{
		slog.String("status", "ok"),
		slog.Int("rows", rows),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	}, attrs...)
	logger.Info(ctx, "service.export", event, attrs...)
}
