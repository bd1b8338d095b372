package events

import (
	"proplend/core/types"
	"proplend/crypto"
)

const (
	TypeRoleGranted = "access.role.granted"
	TypeRoleRevoked = "access.role.revoked"
	// TypeBindingSet is emitted whenever a configuration address is bound.
	TypeBindingSet = "config.binding.set"
)

type RoleChanged struct {
	Granted bool
	Scope   string
	Role    string
	Account crypto.Address
	Admin   crypto.Address
}

func (e RoleChanged) EventType() string {
	if e.Granted {
		return TypeRoleGranted
	}
	return TypeRoleRevoked
}

func (e RoleChanged) Event() *types.Event {
	attrs := map[string]string{
		"scope": e.Scope,
		"role":  e.Role,
	}
	putAddress(attrs, "account", e.Account)
	putAddress(attrs, "admin", e.Admin)
	return &types.Event{Type: e.EventType(), Attributes: attrs}
}

type BindingSet struct {
	Module  string
	Field   string
	Address crypto.Address
}

func (BindingSet) EventType() string { return TypeBindingSet }

func (e BindingSet) Event() *types.Event {
	attrs := map[string]string{
		"module": e.Module,
		"field":  e.Field,
	}
	putAddress(attrs, "address", e.Address)
	return &types.Event{Type: TypeBindingSet, Attributes: attrs}
}
