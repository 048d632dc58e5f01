// Package state provides the per-user conversation session store for Telegram bots.
// It knows nothing about the flows stored in it; callers own the meaning of
// Flow, Step and Data.
package state
