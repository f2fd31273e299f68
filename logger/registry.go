package logger

import "sync"

// Component loggers by name. Packages look theirs up with Get so that a
// binary can swap them out after Init.
var components sync.Map

// Register sets the logger returned by Get(name).
func Register(name string, l *Logger) {
	components.Store(name, l)
}

// Get returns the logger registered under name, or the global logger tagged
// with name as its component.
func Get(name string) *Logger {
	if l, ok := components.Load(name); ok {
		return l.(*Logger)
	}
	return GetGlobalLogger().WithComponent(name)
}

// RegisterDefaults registers a component logger derived from the current
// global logger for each name. Call it after Init.
func RegisterDefaults(names ...string) {
	base := GetGlobalLogger()
	for _, name := range names {
		Register(name, base.WithComponent(name))
	}
}
