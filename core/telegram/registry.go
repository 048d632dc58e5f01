package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/synthbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command as the registry and the menu see it.
type Command struct {
	// Name includes the leading slash.
	Name        string
	Description string
	Handler     tele.HandlerFunc
	// AdminOnly commands are routed behind the admin guard and left out of
	// the public menu.
	AdminOnly bool
	Hidden    bool
	// Aliases also match plain text without a slash, e.g. "history".
	Aliases []string
}

// Registry holds the commands and callback handlers of one bot. Commands keep
// registration order, which is the order of the menu and /help.
type Registry struct {
	mu        sync.RWMutex
	commands  []Command
	byName    map[string]int
	callbacks map[string]tele.HandlerFunc
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:    make(map[string]int),
		callbacks: make(map[string]tele.HandlerFunc),
	}
}

// Register adds cmd. Names must start with a slash and be unique.
func (r *Registry) Register(cmd Command) error {
	switch {
	case !strings.HasPrefix(cmd.Name, "/") || len(cmd.Name) < 2:
		return fmt.Errorf("telegram: command name %q must start with /", cmd.Name)
	case cmd.Handler == nil:
		return fmt.Errorf("telegram: command %s has no handler", cmd.Name)
	case cmd.Description == "":
		return fmt.Errorf("telegram: command %s has no description", cmd.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[cmd.Name]; dup {
		return fmt.Errorf("telegram: command %s registered twice", cmd.Name)
	}
	r.byName[cmd.Name] = len(r.commands)
	r.commands = append(r.commands, cmd)
	return nil
}

// Commands returns a copy of every command in registration order.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.commands)
}

// Lookup resolves text that names a command, with or without the slash, or
// one of its aliases.
func (r *Registry) Lookup(text string) (Command, bool) {
	name := strings.TrimSpace(text)
	if name == "" {
		return Command{}, false
	}
	bare := strings.TrimPrefix(name, "/")
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i, ok := r.byName["/"+bare]; ok {
		return r.commands[i], true
	}
	for _, c := range r.commands {
		if slices.Contains(c.Aliases, bare) {
			return c, true
		}
	}
	return Command{}, false
}

// Menu lists the commands shown in Telegram's command menu.
func (r *Registry) Menu() []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []tele.Command
	for _, c := range r.commands {
		if !c.Hidden && !c.AdminOnly {
			out = append(out, tele.Command{Text: strings.TrimPrefix(c.Name, "/"), Description: c.Description})
		}
	}
	return out
}

// HandleCallback binds a handler to an inline button key.
func (r *Registry) HandleCallback(key string, h tele.HandlerFunc) error {
	if key == "" || h == nil {
		return errors.New("telegram: callback needs a key and a handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[key]; dup {
		return fmt.Errorf("telegram: callback %s registered twice", key)
	}
	r.callbacks[key] = h
	return nil
}

// Callback returns the handler bound to key.
func (r *Registry) Callback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// CallbackKeys returns the bound keys sorted.
func (r *Registry) CallbackKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// InitBotCommands publishes the registry menu. A failure is logged, not fatal.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	menu := reg.Menu()
	if err := bot.SetCommands(menu); err != nil {
		logger.Error(context.Background(), "tg.wire", "menu.publish",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Info(context.Background(), "tg.wire", "menu.publish",
		slog.String("status", "ok"),
		slog.Int("count", len(menu)),
	)
}
