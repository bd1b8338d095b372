package common

import (
	"fmt"

	"proplend/crypto"
)

// Role names a capability within a scope.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleMinter   Role = "minter"
	RoleBurner   Role = "burner"
)

// Scopes partition role membership per component.
const (
	ScopeBank          = "bank"
	ScopeLending       = "lending"
	ScopeWaterfall     = "waterfall"
	ScopeMarket        = "market"
	ScopeTrancheSenior = "tranche/senior"
	ScopeTrancheJunior = "tranche/junior"
)

// Scopes lists every scope in a stable order.
var Scopes = []string{
	ScopeBank,
	ScopeLending,
	ScopeWaterfall,
	ScopeMarket,
	ScopeTrancheSenior,
	ScopeTrancheJunior,
}

func ValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleOperator, RoleMinter, RoleBurner:
		return true
	}
	return false
}

func ValidScope(scope string) bool {
	for _, s := range Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Authorizer answers capability checks. Implementations must not mutate
// state.
type Authorizer interface {
	HasRole(scope string, role Role, addr crypto.Address) bool
}

// RequireRole fails with ErrUnauthorized unless caller holds role in scope.
// A nil authorizer denies everything.
func RequireRole(auth Authorizer, scope string, role Role, caller crypto.Address) error {
	if auth == nil || !auth.HasRole(scope, role, caller) {
		return fmt.Errorf("%w: %s lacks %s on %s", ErrUnauthorized, caller, role, scope)
	}
	return nil
}
