package gateway

import "net/http"

// State is a step of one logical authenticated call.
type State int

const (
	StateInvalid State = iota
	StateNoCredential
	StateHasCredential
	StateCalling
	StateAuthExpired
	StateRelogging
	StateRetrying
	StateSuccess
	StateFailed
	StateSessionTerminated
)

var stateNames = map[State]string{
	StateInvalid:           "invalid",
	StateNoCredential:      "no_credential",
	StateHasCredential:     "has_credential",
	StateCalling:           "calling",
	StateAuthExpired:       "auth_expired",
	StateRelogging:         "relogging",
	StateRetrying:          "retrying",
	StateSuccess:           "success",
	StateFailed:            "failed",
	StateSessionTerminated: "session_terminated",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed || s == StateSessionTerminated
}

type event int

const (
	eventSend event = iota + 1
	eventResponse
	eventAuthFailure
	eventTransportFailure
	eventRelogin
	eventReloginSucceeded
	eventReloginFailed
	eventTerminate
)

var transitions = map[State]map[event]State{
	StateNoCredential: {
		eventTerminate: StateSessionTerminated,
	},
	StateHasCredential: {
		eventSend: StateCalling,
	},
	StateCalling: {
		eventResponse:         StateSuccess,
		eventAuthFailure:      StateAuthExpired,
		eventTransportFailure: StateFailed,
	},
	StateAuthExpired: {
		eventRelogin: StateRelogging,
	},
	StateRelogging: {
		eventReloginSucceeded: StateRetrying,
		eventReloginFailed:    StateSessionTerminated,
	},
	// The retry result is delivered whatever its status; there is no second recovery.
	StateRetrying: {
		eventResponse:         StateSuccess,
		eventAuthFailure:      StateSuccess,
		eventTransportFailure: StateFailed,
	},
}

// initialState picks the entry state from the persisted access token lookup.
func initialState(hasToken bool) State {
	if hasToken {
		return StateHasCredential
	}
	return StateNoCredential
}

// next returns the state reached from s on e, or StateInvalid if e is not accepted in s.
func next(s State, e event) State {
	if to, ok := transitions[s][e]; ok {
		return to
	}
	return StateInvalid
}

type outcome int

const (
	outcomeDelivered outcome = iota
	outcomeAuthExpired
)

// classify maps a response status to the gateway's view of it. Only 401 and 403 signal an
// expired credential; every other status, errors included, belongs to the caller.
func classify(status int) outcome {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return outcomeAuthExpired
	default:
		return outcomeDelivered
	}
}

func (o outcome) event() event {
	if o == outcomeAuthExpired {
		return eventAuthFailure
	}
	return eventResponse
}
