// Package apperr holds the error taxonomy shared by the lobby, the game
// sessions and the router. Every rejection that reaches a client is an
// *Error whose Kind decides the error_type and human code of the reply.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Category groups kinds the way they are recovered from.
type Category string

const (
	CategoryProtocol Category = "ProtocolError"
	CategoryRouting  Category = "RoutingError"
	CategoryState    Category = "StateError"
	CategoryDelivery Category = "DeliveryError"
	CategoryInternal Category = "InternalError"
)

// Kind is the error_type sent to clients.
type Kind string

const (
	UnknownMessage   Kind = "UnknownMessage"
	MalformedMessage Kind = "MalformedMessage"
	InvalidPayload   Kind = "InvalidPayload"

	NotInRoom       Kind = "NotInRoom"
	GameNotStarted  Kind = "GameNotStarted"
	SessionNotFound Kind = "SessionNotFound"

	RoomFull            Kind = "RoomFull"
	RoomNotFound        Kind = "RoomNotFound"
	InvalidState        Kind = "InvalidState"
	NotYourTurn         Kind = "NotYourTurn"
	InvalidPhase        Kind = "InvalidPhase"
	PlayerNotFound      Kind = "PlayerNotFound"
	UnknownPlayer       Kind = "UnknownPlayer"
	PlayerAlreadyInRoom Kind = "PlayerAlreadyInRoom"
	CardNotInHand       Kind = "CardNotInHand"
	AlreadyExists       Kind = "AlreadyExists"

	Unreachable Kind = "Unreachable"
	SessionBusy Kind = "SessionBusy"
	Internal    Kind = "Internal"
)

var categories = map[Kind]Category{
	UnknownMessage:   CategoryProtocol,
	MalformedMessage: CategoryProtocol,
	InvalidPayload:   CategoryProtocol,

	NotInRoom:       CategoryRouting,
	GameNotStarted:  CategoryRouting,
	SessionNotFound: CategoryRouting,

	RoomFull:            CategoryState,
	RoomNotFound:        CategoryState,
	InvalidState:        CategoryState,
	NotYourTurn:         CategoryState,
	InvalidPhase:        CategoryState,
	PlayerNotFound:      CategoryState,
	UnknownPlayer:       CategoryState,
	PlayerAlreadyInRoom: CategoryState,
	CardNotInHand:       CategoryState,
	AlreadyExists:       CategoryState,

	Unreachable: CategoryDelivery,
	SessionBusy: CategoryInternal,
	Internal:    CategoryInternal,
}

var codes = map[Kind]int{
	InvalidPayload:  http.StatusUnprocessableEntity,
	RoomNotFound:    http.StatusNotFound,
	SessionNotFound: http.StatusNotFound,
	PlayerNotFound:  http.StatusNotFound,
	UnknownPlayer:   http.StatusNotFound,
	NotYourTurn:     http.StatusForbidden,
	InvalidPhase:    http.StatusConflict,
	InvalidState:    http.StatusConflict,
	AlreadyExists:   http.StatusConflict,
	SessionBusy:     http.StatusServiceUnavailable,
	Unreachable:     http.StatusServiceUnavailable,
	Internal:        http.StatusInternalServerError,
}

// Category returns the recovery group of k. Unknown kinds are internal.
func (k Kind) Category() Category {
	if c, ok := categories[k]; ok {
		return c
	}
	return CategoryInternal
}

// Code returns the human code carried in Error replies.
func (k Kind) Code() int {
	if c, ok := codes[k]; ok {
		return c
	}
	if _, known := categories[k]; !known {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// Error is a typed rejection.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and msg to a lower level error.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind of err. Errors outside the taxonomy are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal server error"
}
