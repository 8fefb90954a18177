// Package state holds the process-wide client state: the auth status
// machine, the session, per-user sub-states, connectivity, the global
// loading flag and the active error. A Root is constructed explicitly and
// passed to whatever needs it; there is no package-level instance.
package state

import (
	"time"

	"gitlab.com/tinyland/lab/research-pulse/pkg/apperr"
	"gitlab.com/tinyland/lab/research-pulse/pkg/research"
	"gitlab.com/tinyland/lab/research-pulse/pkg/toast"
)

// AuthStatus is where the session is in its lifecycle.
type AuthStatus int

const (
	StatusUnknown AuthStatus = iota
	StatusLoading
	StatusAuthenticated
	StatusUnauthenticated
)

func (s AuthStatus) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "invalid"
	}
}

// MarshalText renders the status by name in JSON snapshots.
func (s AuthStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// CredentialStore persists the session token. Read returns "" when nothing
// is stored.
type CredentialStore interface {
	Read() (string, error)
	Write(token string) error
	Clear() error
}

// ResearchState is the research sub-state: the selected subject and its
// reports.
type ResearchState struct {
	Subject string            `json:"subject,omitempty"`
	Reports []research.Report `json:"reports,omitempty"`
}

// ChangeKind says which part of the Root changed.
type ChangeKind int

const (
	ChangeAuth ChangeKind = iota
	ChangeUser
	ChangeWatchlist
	ChangeResearch
	ChangeOnline
	ChangeGlobalLoading
	ChangeError
)

// Change is emitted after every Root mutation.
type Change struct {
	Kind ChangeKind
	Auth AuthStatus
}

// Snapshot is a render-ready copy of the Root. It never carries the session
// token.
type Snapshot struct {
	Auth          AuthStatus           `json:"auth"`
	User          *research.User       `json:"user,omitempty"`
	Watchlist     []research.WatchItem `json:"watchlist"`
	Research      ResearchState        `json:"research"`
	Online        bool                 `json:"online"`
	GlobalLoading bool                 `json:"global_loading"`
	Error         *ErrorView           `json:"error,omitempty"`
	Toast         *toast.Toast         `json:"toast,omitempty"`
	TakenAt       time.Time            `json:"taken_at"`
}

// ErrorView is the presentation of an apperr.Error.
type ErrorView struct {
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Action    string `json:"action"`
	Retryable bool   `json:"retryable"`
}

// NewErrorView derives the presentation fields of e.
func NewErrorView(e apperr.Error) *ErrorView {
	return &ErrorView{
		Kind:      e.Kind.String(),
		Title:     e.Title(),
		Message:   e.UserMessage(),
		Action:    e.SuggestedAction().String(),
		Retryable: e.Retryable(),
	}
}
