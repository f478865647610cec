package crosstab

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/storage"
)

// ErrMalformedMessage wraps notifications that cannot become a [Message].
var ErrMalformedMessage = errors.New("malformed cross-instance message")

// Kind is the type of a [Message].
type Kind string

const (
	KindRenewalUpdated Kind = "renewal-credential-updated"
	KindCleared        Kind = "session-cleared"
)

// Message is a decoded storage notification.
type Message struct {
	Kind              Kind
	RenewalCredential string
	Origin            string
}

// Decode turns a storage notification into a typed message.
func Decode(n storage.Notification) (Message, error) {
	if n.Err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, n.Err)
	}
	if n.Removed() {
		return Message{Kind: KindCleared, Origin: n.Origin}, nil
	}
	rec, err := storage.DecodeRecord(n.NewValue)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return Message{Kind: KindRenewalUpdated, RenewalCredential: rec.RenewalCredential, Origin: n.Origin}, nil
}
