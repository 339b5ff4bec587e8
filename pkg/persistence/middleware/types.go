// Package middleware wraps verbgate's persistence ports with at-rest protection:
// encryption of pending choices and redaction of trace records.
package middleware

import "github.com/aretw0/verbgate/pkg/ports"

// Middleware allows wrapping a ChoiceStore to add behavior.
type Middleware func(ports.ChoiceStore) ports.ChoiceStore

// Chain applies mws to store so that the first one is the outermost.
func Chain(store ports.ChoiceStore, mws ...Middleware) ports.ChoiceStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
