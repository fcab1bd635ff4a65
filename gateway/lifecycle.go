package gateway

// LoginRoute is where the client returns the user after the session ends.
const LoginRoute = "/login"

// SessionExpiredMessage is the user-facing notice for a terminated session.
const SessionExpiredMessage = "Your session has expired. Please sign in again."

type EventKind string

const (
	// EventSessionExpired is emitted when the gateway terminates the session.
	EventSessionExpired EventKind = "session_expired"
	// EventSignedOut is emitted on an explicit sign out.
	EventSignedOut EventKind = "signed_out"
)

// Event tells the UI layer to leave the authenticated surface. The gateway never
// navigates itself; a Listener (router, CLI printer) acts on the event.
type Event struct {
	Kind       EventKind
	Reason     error // nil for EventSignedOut
	Message    string
	LoginRoute string
}

type Listener interface {
	OnSessionEvent(Event)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) OnSessionEvent(e Event) { f(e) }
