// Package identity names actors. A [ID] is either a simple, process-local
// id or a full, network addressable one that carries the endpoint of the
// process hosting the actor.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Protocol string

const ProtocolWS Protocol = "ws"

// Endpoint is where a full identity lives.
type Endpoint struct {
	Protocol Protocol
	Host     string
	Port     int
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s://%s:%d", e.Protocol, e.Host, e.Port)
}

// Address is the host:port form used to dial or listen.
func (e Endpoint) Address() string {
	return e.Host + ":" + strconv.Itoa(e.Port)
}

// Matches reports whether id is a full identity on e.
func (e Endpoint) Matches(id ID) bool {
	return id.full && id.endpoint == e
}

// ID is comparable and is used directly as a map key.
type ID struct {
	full     bool
	typeTag  string
	localID  string
	endpoint Endpoint
}

func Simple(id string) ID {
	return ID{localID: id}
}

func Full(typeTag, localID string, ep Endpoint) ID {
	return ID{full: true, typeTag: typeTag, localID: localID, endpoint: ep}
}

// Random mints a fresh simple id.
func Random() ID {
	return Simple(gonanoid.Must())
}

func (i ID) IsZero() bool       { return i == ID{} }
func (i ID) IsFull() bool       { return i.full }
func (i ID) TypeTag() string    { return i.typeTag }
func (i ID) LocalID() string    { return i.localID }
func (i ID) Endpoint() Endpoint { return i.endpoint }

// Name is "type-localId" for full identities and the bare id otherwise.
func (i ID) Name() string {
	if !i.full {
		return i.localID
	}
	return i.typeTag + "-" + i.localID
}

func (i ID) String() string {
	if !i.full {
		return i.localID
	}
	return i.endpoint.String() + "#" + i.Name()
}

func (i ID) GoString() string {
	if !i.full {
		return "identity.Simple(" + i.localID + ")"
	}
	return "identity.Full(" + i.String() + ")"
}

// === JSON ===

type (
	jsonName struct {
		Type string `json:"type"`
		ID   string `json:"_id"`
	}
	jsonSimple struct {
		ID string `json:"id"`
	}
	jsonFull struct {
		ID       jsonName `json:"id"`
		Protocol Protocol `json:"protocol"`
		Host     string   `json:"host"`
		Port     int      `json:"port"`
	}
	jsonID struct {
		Simple *jsonSimple `json:"simple,omitempty"`
		Full   *jsonFull   `json:"full,omitempty"`
	}
)

var ErrInvalidID = errors.New("invalid actor identity")

func (i ID) MarshalJSON() ([]byte, error) {
	if !i.full {
		return json.Marshal(jsonID{Simple: &jsonSimple{ID: i.localID}})
	}
	return json.Marshal(jsonID{Full: &jsonFull{
		ID:       jsonName{Type: i.typeTag, ID: i.localID},
		Protocol: i.endpoint.Protocol,
		Host:     i.endpoint.Host,
		Port:     i.endpoint.Port,
	}})
}

func (i *ID) UnmarshalJSON(data []byte) error {
	var j jsonID
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidID, err)
	}
	switch {
	case j.Simple != nil && j.Full == nil:
		*i = Simple(j.Simple.ID)
	case j.Full != nil && j.Simple == nil:
		*i = Full(j.Full.ID.Type, j.Full.ID.ID, Endpoint{
			Protocol: j.Full.Protocol,
			Host:     j.Full.Host,
			Port:     j.Full.Port,
		})
	default:
		return fmt.Errorf("%w: %s", ErrInvalidID, string(data))
	}
	return nil
}
