// Package logging provides utilities for structured logging across mapsources.
//
// Design principles:
//   - Logging is dependency-injected, never global
//   - Each component owns its own scoped logger
//   - Logger scoping happens once at construction time
//   - slog.With() is used to attach default attributes
//   - If no logger is provided, a discard logger is used
//
// Global configuration (output format, level, destination) belongs only in main().
// Components must never call slog.SetDefault or access global loggers.
//
// Logging is intentionally sparse:
//   - No logging inside per-table loops of a database scan
//   - Lifecycle boundaries (refresh, open, close, persist) are the intended log points
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// discardHandler is a handler that discards all log records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that discards all output.
// Use this as a default when no logger is provided.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns the provided logger if non-nil, otherwise returns a discard logger.
// This is the standard pattern for optional logger parameters:
//
//	func NewComponent(logger *slog.Logger) *Component {
//	    logger = logging.Default(logger)
//	    return &Component{logger: logger.With("component", "name")}
//	}
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}

// componentKey is the attribute key used to identify the emitting component.
const componentKey = "component"

// levels holds per-component level overrides. It is shared by every handler
// derived from the same ComponentFilterHandler via WithAttrs/WithGroup.
type levels struct {
	mu        sync.RWMutex
	byName    map[string]slog.Level
	defaultLv slog.Level
}

func (l *levels) get(component string) slog.Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if lv, ok := l.byName[component]; ok {
		return lv
	}
	return l.defaultLv
}

// minLevel is the lowest level any component may log at.
func (l *levels) minLevel() slog.Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lowest := l.defaultLv
	for _, lv := range l.byName {
		if lv < lowest {
			lowest = lv
		}
	}
	return lowest
}

// ComponentFilterHandler filters records by a per-component minimum level.
// The component is read from the "component" attribute, either attached with
// Logger.With or passed on the record itself. Records without a component use
// the default level.
type ComponentFilterHandler struct {
	next      slog.Handler
	levels    *levels
	component string
}

// NewComponentFilterHandler wraps next with per-component level filtering.
func NewComponentFilterHandler(next slog.Handler, defaultLevel slog.Level) *ComponentFilterHandler {
	return &ComponentFilterHandler{
		next: next,
		levels: &levels{
			byName:    make(map[string]slog.Level),
			defaultLv: defaultLevel,
		},
	}
}

// SetLevel overrides the minimum level for one component.
func (h *ComponentFilterHandler) SetLevel(component string, level slog.Level) {
	h.levels.mu.Lock()
	defer h.levels.mu.Unlock()
	h.levels.byName[component] = level
}

// SetDefaultLevel changes the level used for components without an override.
func (h *ComponentFilterHandler) SetDefaultLevel(level slog.Level) {
	h.levels.mu.Lock()
	defer h.levels.mu.Unlock()
	h.levels.defaultLv = level
}

// ApplyLevels applies level specs as given on the command line. A spec is
// either a bare level ("debug"), which sets the default, or
// "component=level", which overrides one component. Specs are applied in
// order; nothing is applied if any spec is invalid.
func (h *ComponentFilterHandler) ApplyLevels(specs []string) error {
	type override struct {
		component string
		level     slog.Level
	}
	parsed := make([]override, 0, len(specs))
	for _, spec := range specs {
		component, name, scoped := strings.Cut(spec, "=")
		if !scoped {
			component, name = "", spec
		}
		if scoped && component == "" {
			return fmt.Errorf("invalid log level %q: empty component", spec)
		}
		var level slog.Level
		if err := level.UnmarshalText([]byte(name)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", spec, err)
		}
		parsed = append(parsed, override{component: component, level: level})
	}

	for _, o := range parsed {
		if o.component == "" {
			h.SetDefaultLevel(o.level)
		} else {
			h.SetLevel(o.component, o.level)
		}
	}
	return nil
}

// Enabled reports whether any component could log at level. The precise
// per-component decision is made in Handle, where the record attributes are known.
func (h *ComponentFilterHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.component != "" {
		return level >= h.levels.get(h.component)
	}
	return level >= h.levels.minLevel()
}

// Handle forwards the record if it meets its component's level.
func (h *ComponentFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	component := h.component
	if component == "" {
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == componentKey {
				component = a.Value.String()
				return false
			}
			return true
		})
	}
	if r.Level < h.levels.get(component) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs returns a handler that remembers a "component" attribute if present.
func (h *ComponentFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	component := h.component
	for _, a := range attrs {
		if a.Key == componentKey {
			component = a.Value.String()
		}
	}
	return &ComponentFilterHandler{
		next:      h.next.WithAttrs(attrs),
		levels:    h.levels,
		component: component,
	}
}

// WithGroup returns a handler that keeps filtering with the same levels.
func (h *ComponentFilterHandler) WithGroup(name string) slog.Handler {
	return &ComponentFilterHandler{
		next:      h.next.WithGroup(name),
		levels:    h.levels,
		component: h.component,
	}
}
