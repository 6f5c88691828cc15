package system

import (
	"context"
	"fmt"

	"github.com/codewandler/wsactor/core/wire"
)

type (
	// Receiver is implemented by actors that accept remote calls.
	Receiver interface {
		Actor
		Targets() Targets
	}

	// Invoke decodes the arguments of one call and runs it. The result is
	// serialized into the reply. Targets are looked up by name only; a
	// generic target reads dec.DecodeGenericSubstitutions itself.
	Invoke func(ctx context.Context, dec *wire.InvocationDecoder) (any, error)

	// Targets maps invocation target names to handlers.
	Targets map[string]Invoke

	// TargetRegistration adds one handler to a Targets table. Create them
	// with Target0, Target1, Target1Void and Target0Void.
	TargetRegistration func(Targets)
)

// NewTargets builds the dispatch table of a skeleton.
//
//	targets := system.NewTargets(
//	    system.Target0("currentState", a.CurrentState),
//	    system.Target1("send", a.Send),
//	)
func NewTargets(regs ...TargetRegistration) Targets {
	t := make(Targets, len(regs))
	for _, reg := range regs {
		reg(t)
	}
	return t
}

func (t Targets) register(name string, fn Invoke) {
	if _, exists := t[name]; exists {
		panic(fmt.Sprintf("system: duplicate invocation target %q", name))
	}
	t[name] = fn
}

func Target0[OUT any](name string, h func(ctx context.Context) (OUT, error)) TargetRegistration {
	return func(t Targets) {
		t.register(name, func(ctx context.Context, _ *wire.InvocationDecoder) (any, error) {
			return h(ctx)
		})
	}
}

func Target0Void(name string, h func(ctx context.Context) error) TargetRegistration {
	return func(t Targets) {
		t.register(name, func(ctx context.Context, _ *wire.InvocationDecoder) (any, error) {
			return nil, h(ctx)
		})
	}
}

func Target1[IN, OUT any](name string, h func(ctx context.Context, in IN) (OUT, error)) TargetRegistration {
	return func(t Targets) {
		t.register(name, func(ctx context.Context, dec *wire.InvocationDecoder) (any, error) {
			in, err := wire.DecodeNext[IN](dec)
			if err != nil {
				return nil, err
			}
			return h(ctx, in)
		})
	}
}

func Target1Void[IN any](name string, h func(ctx context.Context, in IN) error) TargetRegistration {
	return func(t Targets) {
		t.register(name, func(ctx context.Context, dec *wire.InvocationDecoder) (any, error) {
			in, err := wire.DecodeNext[IN](dec)
			if err != nil {
				return nil, err
			}
			return nil, h(ctx, in)
		})
	}
}
