// Package ui defines the collaborators the session library drives in the
// presentation layer: transient notifications and navigation.
package ui

import (
	"net/url"
	"strings"
	"sync"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a transient user-visible message (a toast)
type Notification struct {
	Level   Level
	Message string
}

type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// Notifiers fans a notification out to several notifiers
type Notifiers []Notifier

func (ns Notifiers) Notify(n Notification) {
	for _, notifier := range ns {
		if notifier != nil {
			notifier.Notify(n)
		}
	}
}

// Navigator exposes the current location and moves to a new one
type Navigator interface {
	Location() string
	Navigate(to string)
}

// Router is an in-memory Navigator that records its history
type Router struct {
	mu      sync.RWMutex
	current string
	history []string
}

var _ Navigator = (*Router)(nil)

func NewRouter(start string) *Router {
	return &Router{current: start}
}

func (r *Router) Location() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func (r *Router) Navigate(to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, to)
	r.current = to
}

// History returns every location navigated to, oldest first
func (r *Router) History() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.history...)
}

// RedirectTarget returns the local path carried in the "redirect" query
// parameter of location. Absolute and protocol-relative targets are
// rejected so a crafted sign-in link cannot send the user off site.
func RedirectTarget(location string) (string, bool) {
	u, err := url.Parse(location)
	if err != nil {
		return "", false
	}
	target := u.Query().Get("redirect")
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return "", false
	}
	return target, true
}
