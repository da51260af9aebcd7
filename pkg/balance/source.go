// Package balance defines the collaborator that fetches live cycle balances.
// The snapshot tracker depends only on the Source interface; the HTTP
// implementation talks to a status gateway.
package balance

import (
	"context"
	"fmt"
)

// Source queries live cycle balances. Implementations must return a typed
// error rather than hang; timeout policy belongs to the implementation.
type Source interface {
	// CanisterStatus returns one canister's balance, queried through its
	// blackhole proxy.
	CanisterStatus(ctx context.Context, proxyID, canisterID string) (uint64, error)
	// SNSCanisters returns the balances of every canister under an SNS
	// root, keyed by canister id. Registered canisters absent from the map
	// are treated as failures by the caller.
	SNSCanisters(ctx context.Context, rootID string) (map[string]uint64, error)
}

// QueryError is a per-call remote failure. It never aborts a cycle; the
// tracker counts it and moves on.
type QueryError struct {
	Proxy    string
	Canister string // empty for grouped root queries
	Err      error
}

func (e *QueryError) Error() string {
	if e.Canister == "" {
		return fmt.Sprintf("balance query via %s failed: %v", e.Proxy, e.Err)
	}
	return fmt.Sprintf("balance query for %s via %s failed: %v", e.Canister, e.Proxy, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
