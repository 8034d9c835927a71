package livelist

import "fmt"

// Kind discriminates stream events after they have been decoded.
type Kind string

const (
	KindInitial Kind = "initial"
	KindUpdate  Kind = "update"
	KindAdd     Kind = "add"
	KindDelete  Kind = "delete"
	KindError   Kind = "error"
	// KindReset clears the error flag when a connection (re)opens.
	KindReset Kind = "reset"
)

// ParseErrorPrefix starts the message of every malformed-payload error.
const ParseErrorPrefix = "failed to parse stream event: "

// Event is a decoded stream event.
type Event[T Keyed] struct {
	Kind    Kind
	Items   []T    // initial
	Item    T      // update, add
	ID      string // delete
	Message string // error
}

func InitialEvent[T Keyed](items []T) Event[T] { return Event[T]{Kind: KindInitial, Items: items} }
func UpdateEvent[T Keyed](item T) Event[T]     { return Event[T]{Kind: KindUpdate, Item: item} }
func AddEvent[T Keyed](item T) Event[T]        { return Event[T]{Kind: KindAdd, Item: item} }
func DeleteEvent[T Keyed](id string) Event[T]  { return Event[T]{Kind: KindDelete, ID: id} }
func ErrorEvent[T Keyed](msg string) Event[T]  { return Event[T]{Kind: KindError, Message: msg} }
func ResetEvent[T Keyed]() Event[T]            { return Event[T]{Kind: KindReset} }

// ParseError turns a decode failure into an error event.
func ParseError[T Keyed](err error) Event[T] {
	return ErrorEvent[T](fmt.Sprintf("%s%v", ParseErrorPrefix, err))
}

// Subject returns the identity the event is about, if any.
func (e Event[T]) Subject() string {
	switch e.Kind {
	case KindUpdate, KindAdd:
		return e.Item.Key()
	case KindDelete:
		return e.ID
	}
	return ""
}
