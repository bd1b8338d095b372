package state

import (
	"bytes"
	"fmt"
	"sort"

	"proplend/crypto"
	nativecommon "proplend/native/common"
)

func roleKey(scope string, role nativecommon.Role) []byte {
	return joinKey(rolePrefix, []byte(scope), []byte(role))
}

func (m *Manager) roleMembers(scope string, role nativecommon.Role) ([][]byte, error) {
	var members [][]byte
	if err := m.KVGetList(roleKey(scope, role), &members); err != nil {
		return nil, err
	}
	return members, nil
}

// SetRole grants role within scope to addr. Duplicate grants are ignored and
// the member list stays sorted for determinism.
func (m *Manager) SetRole(scope string, role nativecommon.Role, addr crypto.Address) error {
	if !nativecommon.ValidScope(scope) || !nativecommon.ValidRole(role) {
		return fmt.Errorf("state: unknown role %s/%s", scope, role)
	}
	if addr.IsZero() {
		return fmt.Errorf("state: role member must not be the zero address")
	}
	members, err := m.roleMembers(scope, role)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr[:]) {
			return nil
		}
	}
	members = append(members, addr.Bytes())
	sort.Slice(members, func(i, j int) bool { return bytes.Compare(members[i], members[j]) < 0 })
	return m.KVPut(roleKey(scope, role), members)
}

// RevokeRole removes addr from role within scope. Revoking an absent member
// is a no-op.
func (m *Manager) RevokeRole(scope string, role nativecommon.Role, addr crypto.Address) error {
	members, err := m.roleMembers(scope, role)
	if err != nil {
		return err
	}
	kept := members[:0]
	for _, existing := range members {
		if !bytes.Equal(existing, addr[:]) {
			kept = append(kept, existing)
		}
	}
	return m.KVPut(roleKey(scope, role), kept)
}

// RoleMembers returns every address holding role within scope.
func (m *Manager) RoleMembers(scope string, role nativecommon.Role) ([]crypto.Address, error) {
	members, err := m.roleMembers(scope, role)
	if err != nil {
		return nil, err
	}
	out := make([]crypto.Address, 0, len(members))
	for _, raw := range members {
		addr, err := crypto.BytesToAddress(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// HasRole reports whether addr holds role within scope. Read errors result
// in a false return.
func (m *Manager) HasRole(scope string, role nativecommon.Role, addr crypto.Address) bool {
	if addr.IsZero() {
		return false
	}
	members, err := m.roleMembers(scope, role)
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr[:]) {
			return true
		}
	}
	return false
}
