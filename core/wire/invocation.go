package wire

import (
	"fmt"
	"reflect"

	"github.com/codewandler/wsactor/core/identity"
	"github.com/codewandler/wsactor/internal/codec"
	"github.com/codewandler/wsactor/internal/reflector"
)

// TypeRegistry resolves generic substitution names back to Go types.
type TypeRegistry struct {
	r *reflector.Registry
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{r: reflector.NewRegistry()}
}

func (t *TypeRegistry) Register(rt reflect.Type) string { return t.r.Register(rt) }

func (t *TypeRegistry) Lookup(name string) (reflect.Type, bool) {
	if t == nil {
		return nil, false
	}
	return t.r.Lookup(name)
}

// RegisterType adds T to the registry.
func RegisterType[T any](t *TypeRegistry) string {
	return t.Register(reflect.TypeFor[T]())
}

// TypeName is the name a type is recorded under in genericSubs.
func TypeName(rt reflect.Type) string {
	return reflector.TypeInfoForType(rt).Name
}

// InvocationEncoder records one outgoing call.
type InvocationEncoder struct {
	genericSubs []string
	args        [][]byte
	done        bool
}

func NewInvocationEncoder() *InvocationEncoder {
	return &InvocationEncoder{}
}

func (e *InvocationEncoder) RecordGenericSubstitution(rt reflect.Type) {
	e.genericSubs = append(e.genericSubs, TypeName(rt))
}

// RecordArgument serializes v on its own and appends it in call order.
func (e *InvocationEncoder) RecordArgument(v any) error {
	if e.done {
		return fmt.Errorf("wire: argument recorded after DoneRecording")
	}
	data, err := codec.Default.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode argument %d: %w", len(e.args), err)
	}
	e.args = append(e.args, data)
	return nil
}

// RecordReturnType is a no-op: return types are not carried on the wire.
func (e *InvocationEncoder) RecordReturnType(reflect.Type) {}

// RecordErrorType is a no-op: error types are not carried on the wire.
func (e *InvocationEncoder) RecordErrorType(reflect.Type) {}

func (e *InvocationEncoder) DoneRecording() { e.done = true }

func (e *InvocationEncoder) GenericSubs() []string { return e.genericSubs }

func (e *InvocationEncoder) Args() [][]byte { return e.args }

func (e *InvocationEncoder) Envelope(callID string, recipient identity.ID, target string) CallEnvelope {
	return CallEnvelope{
		CallID:           callID,
		Recipient:        recipient,
		InvocationTarget: target,
		GenericSubs:      append([]string(nil), e.genericSubs...),
		Args:             append([][]byte(nil), e.args...),
	}
}

// RecordGeneric records T as a generic substitution.
func RecordGeneric[T any](e *InvocationEncoder) {
	e.RecordGenericSubstitution(reflect.TypeFor[T]())
}

// InvocationDecoder consumes the arguments of a received call in the order
// the encoder appended them.
type InvocationDecoder struct {
	env   CallEnvelope
	types *TypeRegistry
	next  int
}

func NewInvocationDecoder(env CallEnvelope, types *TypeRegistry) *InvocationDecoder {
	return &InvocationDecoder{env: env, types: types}
}

func (d *InvocationDecoder) Target() string { return d.env.InvocationTarget }

// DecodeGenericSubstitutions drops names that do not resolve.
func (d *InvocationDecoder) DecodeGenericSubstitutions() []reflect.Type {
	out := make([]reflect.Type, 0, len(d.env.GenericSubs))
	for _, name := range d.env.GenericSubs {
		if rt, ok := d.types.Lookup(name); ok {
			out = append(out, rt)
		}
	}
	return out
}

// DecodeNextArgument unmarshals the next payload into ptr.
func (d *InvocationDecoder) DecodeNextArgument(ptr any) error {
	if d.next >= len(d.env.Args) {
		return fmt.Errorf("%w: target %s wants argument %d, got %d", ErrInsufficientArguments, d.env.InvocationTarget, d.next, len(d.env.Args))
	}
	data := d.env.Args[d.next]
	d.next++
	if err := codec.Default.Unmarshal(data, ptr); err != nil {
		return fmt.Errorf("%w: argument %d: %w", ErrMalformedPayload, d.next-1, err)
	}
	return nil
}

// Remaining is the number of arguments not consumed yet.
func (d *InvocationDecoder) Remaining() int { return len(d.env.Args) - d.next }

// DecodeReturnType always returns nil; the receiver's dispatch decides the shape.
func (d *InvocationDecoder) DecodeReturnType() reflect.Type { return nil }

// DecodeErrorType always returns nil.
func (d *InvocationDecoder) DecodeErrorType() reflect.Type { return nil }

func DecodeNext[T any](d *InvocationDecoder) (out T, err error) {
	err = d.DecodeNextArgument(&out)
	return
}
