package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type unregistered struct{}

func TestInvocationDecoder_insufficient_arguments(t *testing.T) {
	enc := NewInvocationEncoder()
	require.NoError(t, enc.RecordArgument(1))

	dec := NewInvocationDecoder(enc.Envelope("c", testRecipient, "t"), nil)
	_, err := DecodeNext[int](dec)
	require.NoError(t, err)

	_, err = DecodeNext[int](dec)
	require.ErrorIs(t, err, ErrInsufficientArguments)
}

func TestInvocationDecoder_malformed(t *testing.T) {
	dec := NewInvocationDecoder(CallEnvelope{Args: [][]byte{[]byte(`"text"`)}}, nil)
	_, err := DecodeNext[int](dec)
	require.ErrorIs(t, err, ErrMalformedPayload)
}

func TestInvocationDecoder_drops_unknown_generics(t *testing.T) {
	types := NewTypeRegistry()
	RegisterType[int](types)

	enc := NewInvocationEncoder()
	RecordGeneric[int](enc)
	RecordGeneric[unregistered](enc)

	dec := NewInvocationDecoder(enc.Envelope("c", testRecipient, "t"), types)
	subs := dec.DecodeGenericSubstitutions()
	require.Len(t, subs, 1)
	require.Equal(t, "int", subs[0].String())
	require.Nil(t, dec.DecodeReturnType())
	require.Nil(t, dec.DecodeErrorType())
}

func TestInvocationEncoder_done(t *testing.T) {
	enc := NewInvocationEncoder()
	enc.DoneRecording()
	require.Error(t, enc.RecordArgument(1))
}
