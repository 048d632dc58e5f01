// Package format holds small text helpers for Telegram replies.
package format

import "strings"

// legacyMarkdown escapes the characters that start an entity in Telegram's
// legacy Markdown parse mode (tele.ModeMarkdown).
var legacyMarkdown = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// Escape makes user supplied text safe to embed in a Markdown reply.
func Escape(text string) string {
	return legacyMarkdown.Replace(text)
}
