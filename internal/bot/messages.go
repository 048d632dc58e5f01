package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	coretelegram "github.com/m3rciful/synthbot/core/telegram"
	"github.com/m3rciful/synthbot/core/telegram/format"
	"github.com/m3rciful/synthbot/internal/access"
	"github.com/m3rciful/synthbot/internal/backup"
	"github.com/m3rciful/synthbot/internal/dialog"
	"github.com/m3rciful/synthbot/internal/experiments"
	"github.com/m3rciful/synthbot/internal/params"
	"github.com/m3rciful/synthbot/internal/predictor"
)

const (
	msgWelcome = "Hi! I predict the size and PdI of Eu nanoparticles from synthesis parameters.\n\n" +
		"Send /predict to start or /help for all commands."
	msgUnauthorized      = "Sorry, you are not allowed to use this bot. Ask an administrator to add your user id: %d"
	msgAdminOnly         = "This command is for administrators only."
	msgRateLimited       = "Too many messages, slow down a little."
	msgUnknownText       = "I did not understand that. Send /predict to start or /help for all commands."
	msgUnknownDocument   = "I only accept text messages."
	msgUnknownCallback   = "This button is no longer active."
	msgFailure           = "Something went wrong. Please try again later."
	msgHistoryEmpty      = "You have no experiments yet. Send /predict to create one."
	msgHistoryUsage      = "Usage: /history [count], count between 1 and %d."
	msgPlotUsage         = "Unknown parameter %q. Choose one of: %s"
	msgPlotChoose        = "Choose the parameter to plot:"
	msgPlotRefNotFound   = "Reference experiment not found."
	msgPlotNoData        = "Not enough experiments to draw this chart yet."
	msgCorrelationNoData = "The correlation chart needs at least %d experiments with measured results."
	msgExportUsage       = "Usage: %s [since], where since is a date like 2026-03-01 or 01.03.2026."
	msgExportEmpty       = "No experiments to export."
	msgExportTruncated   = "Only the newest %d experiments were exported."

	msgWhitelistEmpty      = "The whitelist is empty."
	msgWhitelistDisabled   = "Whitelist checks are disabled; everyone may use the bot."
	msgWhitelistAddUsage   = "Usage: /whitelist_add <user id> [note]"
	msgWhitelistDelUsage   = "Usage: /whitelist_del <user id>"
	msgWhitelistAdded      = "User %d added to the whitelist."
	msgWhitelistRemoved    = "User %d removed from the whitelist."
	msgWhitelistDuplicate  = "User %d is already whitelisted."
	msgWhitelistMissing    = "User %d is not on the whitelist."
	msgModelModeUsage      = "Usage: /model_mode <process|formula>"
	msgModelModeSet        = "Predictor mode set to %s."
	msgModelTestUsage      = "Usage: /model_test <7 or 8 parameters>"
	msgBackupNone          = "No backups yet. Send /backup to create one."
	msgBackupFailed        = "Backup failed: %s"
	msgRestoreUsage        = "Usage: /restore <backup name>. Send /backups to list them."
	msgRestoreInvalid      = "%q is not a backup name. Send /backups to list them."
	msgRestoreMissing      = "Backup %s does not exist."
	msgRestoreStarted      = "Restoring %s..."
	msgRestoreDone         = "Database restored from %s."
	msgRestoreFailed       = "Restore failed: %s"
	defaultHistoryLimit    = 10
	maxHistoryLimit        = 50
	minCorrelationMeasured = 2
)

const dateLayout = "2006-01-02 15:04"

func formatHelp(reg *coretelegram.Registry, admin bool) string {
	var user, adm []coretelegram.Command
	for _, cmd := range reg.Commands() {
		switch {
		case cmd.Hidden:
		case cmd.AdminOnly:
			adm = append(adm, cmd)
		default:
			user = append(user, cmd)
		}
	}

	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, c := range user {
		fmt.Fprintf(&b, "%s - %s\n", c.Name, c.Description)
	}
	if admin && len(adm) > 0 {
		b.WriteString("\nAdmin commands:\n")
		for _, c := range adm {
			fmt.Fprintf(&b, "%s - %s\n", c.Name, c.Description)
		}
	}
	b.WriteString("\n")
	b.WriteString(dialog.PredictionInstructions)
	return b.String()
}

func formatHistory(exps []experiments.Experiment, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Last %d of %d experiments:\n", len(exps), total)
	for i := range exps {
		e := &exps[i]
		fmt.Fprintf(&b, "\n%s  %s\n", e.CreatedAt.Local().Format(dateLayout), e.ID)
		fmt.Fprintf(&b, "  params: %s\n", strings.Join(e.Params().Tokens(), " "))
		fmt.Fprintf(&b, "  size: %s nm -> %s\n", dialog.FormatNumber(e.PredictedSize), measuredValue(e.PredictedSize, e.ActualSize, " nm"))
		fmt.Fprintf(&b, "  PdI: %s -> %s\n", dialog.FormatNumber(e.PredictedPdI), measuredValue(e.PredictedPdI, e.ActualPdI, ""))
	}
	b.WriteString("\nAdd measured results with /add_result <id>.")
	return b.String()
}

func measuredValue(predicted float64, actual *float64, unit string) string {
	if actual == nil {
		return "not measured"
	}
	return fmt.Sprintf("%s%s (%s)", format.OptionalFloat(actual, ""), unit, dialog.FormatDiff(predicted, *actual))
}

func fieldCodes() string {
	codes := make([]string, len(params.Fields))
	for i, f := range params.Fields {
		codes[i] = f.Code()
	}
	return strings.Join(codes, ", ")
}

func formatWhitelist(entries []access.Entry, enabled bool) string {
	var b strings.Builder
	if !enabled {
		b.WriteString("_" + msgWhitelistDisabled + "_\n\n")
	}
	fmt.Fprintf(&b, "*Whitelist* (%d):\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "\n`%d` added %s by `%d`", e.UserID, e.CreatedAt.Local().Format(dateLayout), e.AddedBy)
		if e.Note != "" {
			b.WriteString(" - " + format.Escape(e.Note))
		}
	}
	return b.String()
}

func formatModel(mode predictor.Mode, command string, timeout time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Predictor mode: %s\n", mode)
	if command != "" {
		fmt.Fprintf(&b, "Process command: %s\n", command)
		fmt.Fprintf(&b, "Process timeout: %s\n", timeout)
	} else {
		b.WriteString("Process command: not configured\n")
	}
	b.WriteString("\nSwitch with the buttons below or /model_mode <process|formula>.")
	return b.String()
}

func formatModelTest(rec params.Record, res predictor.Result, mode predictor.Mode, took time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mode: %s, took %s\n\n", mode, took.Round(time.Millisecond))
	b.WriteString(dialog.FormatParams(rec))
	fmt.Fprintf(&b, "\n\nSize: %s nm%s", dialog.FormatNumber(res.Size), confidence(res.SizeConfidence))
	fmt.Fprintf(&b, "\nPdI: %s%s", dialog.FormatNumber(res.PdI), confidence(res.PdIConfidence))
	return b.String()
}

func confidence(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(" (confidence %s)", dialog.FormatNumber(*v))
}

func formatModelError(err error) string {
	var coder interface{ Code() string }
	code := "ERROR"
	if errors.As(err, &coder) {
		code = coder.Code()
	}
	return fmt.Sprintf("Prediction failed [%s]: %s", code, err)
}

func formatBackups(list []backup.Backup) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Backups (%d), newest first:\n", len(list))
	for _, bk := range list {
		fmt.Fprintf(&b, "\n%s  %s  %s", bk.Name, bk.CreatedAt.Local().Format(dateLayout), humanSize(bk.Size))
	}
	b.WriteString("\n\nRestore with /restore <name>.")
	return b.String()
}

func formatBackupCreated(bk backup.Backup) string {
	return fmt.Sprintf("Backup created: %s (%s)", bk.Name, humanSize(bk.Size))
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
