// Package wire defines the messages exchanged between two actor systems and
// the codec that packs a method invocation into them.
//
// Every websocket text frame carries exactly one [Envelope]:
//
//	{"call":{"callID":"…","recipient":{…},"invocationTarget":"send","genericSubs":[],"args":["…"]}}
//	{"reply":{"callID":"…","value":"…"}}
//	{"connectionClose":{}}
//
// Argument and return payloads are opaque JSON documents, carried as []byte
// (base64 in the frame).
package wire

import (
	"fmt"

	"github.com/codewandler/wsactor/core/identity"
	"github.com/codewandler/wsactor/internal/codec"
)

type Kind int

const (
	KindInvalid Kind = iota
	KindCall
	KindReply
	KindConnectionClose
)

func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindReply:
		return "reply"
	case KindConnectionClose:
		return "connectionClose"
	default:
		return "invalid"
	}
}

// ErrorRemoteFailure is the only failure indicator ever put on the wire.
// The failing side never ships the error itself.
const ErrorRemoteFailure = "remote_call_failed"

type (
	CallEnvelope struct {
		CallID           string      `json:"callID"`
		Recipient        identity.ID `json:"recipient"`
		InvocationTarget string      `json:"invocationTarget"`
		GenericSubs      []string    `json:"genericSubs"`
		Args             [][]byte    `json:"args"`
	}

	ReplyEnvelope struct {
		CallID string       `json:"callID"`
		Sender *identity.ID `json:"sender,omitempty"`
		Value  []byte       `json:"value"`
		Error  string       `json:"error,omitempty"`
	}

	// Envelope is the tagged union sent over the connection.
	Envelope struct {
		Call            *CallEnvelope  `json:"call,omitempty"`
		Reply           *ReplyEnvelope `json:"reply,omitempty"`
		ConnectionClose *struct{}      `json:"connectionClose,omitempty"`
	}
)

func NewCall(c CallEnvelope) Envelope { return Envelope{Call: &c} }

func NewReply(r ReplyEnvelope) Envelope { return Envelope{Reply: &r} }

func NewConnectionClose() Envelope { return Envelope{ConnectionClose: &struct{}{}} }

// Failed reports whether the remote side threw.
func (r ReplyEnvelope) Failed() bool { return r.Error != "" }

func (e Envelope) Kind() Kind {
	n := 0
	k := KindInvalid
	if e.Call != nil {
		n++
		k = KindCall
	}
	if e.Reply != nil {
		n++
		k = KindReply
	}
	if e.ConnectionClose != nil {
		n++
		k = KindConnectionClose
	}
	if n != 1 {
		return KindInvalid
	}
	return k
}

func (e Envelope) Validate() error {
	if e.Kind() == KindInvalid {
		return ErrInvalidEnvelope
	}
	return nil
}

// CallID returns the correlation id for calls and replies.
func (e Envelope) CallID() string {
	switch {
	case e.Call != nil:
		return e.Call.CallID
	case e.Reply != nil:
		return e.Reply.CallID
	default:
		return ""
	}
}

func (e Envelope) String() string {
	switch e.Kind() {
	case KindCall:
		return fmt.Sprintf("call(%s -> %s.%s, args=%d)", e.Call.CallID, e.Call.Recipient, e.Call.InvocationTarget, len(e.Call.Args))
	case KindReply:
		return fmt.Sprintf("reply(%s, bytes=%d, failed=%t)", e.Reply.CallID, len(e.Reply.Value), e.Reply.Failed())
	case KindConnectionClose:
		return "connectionClose"
	default:
		return "invalid"
	}
}

func Encode(e Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if e.Call != nil {
		// keep empty lists as [] on the wire
		c := *e.Call
		if c.GenericSubs == nil {
			c.GenericSubs = []string{}
		}
		if c.Args == nil {
			c.Args = [][]byte{}
		}
		e.Call = &c
	}
	return codec.Default.Marshal(e)
}

func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := codec.Default.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
