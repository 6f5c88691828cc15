// Package sf provides a generic single-flight mechanism for deduplicating
// concurrent function calls with the same key.
//
// Single-flight ensures that only one execution of a function is in-flight
// for a given key at a time. If multiple goroutines call [Singleflight.Do]
// with the same key concurrently, only the first call executes the function;
// subsequent callers block until the first call completes and then receive
// the same result.
//
// The actor registry uses it so that an on-demand factory runs at most once
// per identity at a time, outside of any registry lock.
//
// # Usage
//
//	group := sf.New[Actor]()
//
//	// concurrent resolutions of the same id construct the actor once
//	a, _, err := group.Do(id.String(), func() (Actor, error) {
//	    return factory(id)
//	})
//
// The generic type parameter T allows type-safe returns without casting.
package sf
