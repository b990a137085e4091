// Package secrets provides the secret store collaborator. Secrets are JSON
// values addressed by a project/stage/purpose scope path and are fetched
// lazily per run rather than cached, so recipient configuration changes take
// effect without a redeploy.
package secrets

import (
	"context"
	"fmt"
)

// Scope addresses one secret value.
type Scope struct {
	Project string
	Stage   string
	Purpose string
}

// Path renders the scope as the storage key, e.g. "seatool-alerts/prod/alerts".
func (s Scope) Path() string {
	return fmt.Sprintf("%s/%s/%s", s.Project, s.Stage, s.Purpose)
}

// Store is the secret store contract.
type Store interface {
	// Exists reports whether a secret is present at the scope.
	Exists(ctx context.Context, scope Scope) (bool, error)
	// GetJSON decodes the secret value at the scope into out.
	GetJSON(ctx context.Context, scope Scope, out any) error
}
