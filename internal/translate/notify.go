// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package translate

// Level is the severity of a Notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Kind identifies what a Notification is about.
type Kind string

const (
	KindCancelled         Kind = "cancelled"
	KindNoModels          Kind = "no_models"
	KindDiscoveryFailed   Kind = "discovery_failed"
	KindTranslationFailed Kind = "translation_failed"
	KindPrecondition      Kind = "precondition"
)

// Notification is a user-facing message emitted by the controller.
type Notification struct {
	Level   Level
	Kind    Kind
	Message string
	Err     error
}

// Notifier receives controller notifications. Notify is called without the
// controller lock held and must not block for long.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}
