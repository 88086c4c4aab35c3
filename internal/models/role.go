package models

import "fmt"

// Role is an authorization tier. Roles are totally ordered: user < superuser.
type Role int

const (
	RoleUser Role = iota + 1
	RoleSuperuser
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleSuperuser:
		return "superuser"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole accepts "user" or "superuser".
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "superuser":
		return RoleSuperuser, nil
	default:
		return 0, newValidationError("role", fmt.Sprintf("%q", s), "expected user or superuser")
	}
}

// Satisfies reports whether r is at least min.
func (r Role) Satisfies(min Role) bool {
	return r >= min && r >= RoleUser
}

// Principal is an authenticated caller.
type Principal struct {
	Username string
	Role     Role
}

// Operation names a gated HTTP operation. Values double as config keys.
type Operation string

const (
	OpReadTemperatureHe      Operation = "read_temperature_he"
	OpReadTemperatureOutside Operation = "read_temperature_outside"
	OpReadTemperatureInside  Operation = "read_temperature_inside"
	OpReadTemperatureFeed    Operation = "read_temperature_feed"
	OpSetTemperatureFeed     Operation = "set_temperature_feed"
	OpReadHysteresis         Operation = "read_hysteresis"
	OpSetHysteresis          Operation = "set_hysteresis"
	OpReadMode               Operation = "read_mode"
	OpSetMode                Operation = "set_mode"
	OpReadValve              Operation = "read_valve"
	OpSetValve               Operation = "set_valve"
	OpReadValveActivated     Operation = "read_valve_activated"
	OpSetValveActivated      Operation = "set_valve_activated"
	OpReadFullState          Operation = "read_full_state"
	OpReadSuAccess           Operation = "read_su_access"
	OpIssueToken             Operation = "issue_token"
	OpReadLogs               Operation = "read_logs"
)

// Policy maps each operation to the minimum role allowed to invoke it.
type Policy map[Operation]Role

// DefaultPolicy returns the built-in role requirements.
func DefaultPolicy() Policy {
	return Policy{
		OpReadTemperatureHe:      RoleUser,
		OpReadTemperatureOutside: RoleUser,
		OpReadTemperatureInside:  RoleUser,
		OpReadTemperatureFeed:    RoleUser,
		OpSetTemperatureFeed:     RoleUser,
		OpReadHysteresis:         RoleUser,
		OpSetHysteresis:          RoleSuperuser,
		OpReadMode:               RoleUser,
		OpSetMode:                RoleSuperuser,
		OpReadValve:              RoleUser,
		OpSetValve:               RoleSuperuser,
		OpReadValveActivated:     RoleUser,
		OpSetValveActivated:      RoleSuperuser,
		OpReadFullState:          RoleUser,
		OpReadSuAccess:           RoleUser,
		OpIssueToken:             RoleUser,
		OpReadLogs:               RoleSuperuser,
	}
}

// Required returns the minimum role for op. Unknown operations require
// superuser.
func (p Policy) Required(op Operation) Role {
	if r, ok := p[op]; ok {
		return r
	}
	return RoleSuperuser
}

// WithOverrides returns a copy of p with the given operation -> role names
// applied on top.
func (p Policy) WithOverrides(overrides map[string]string) (Policy, error) {
	out := make(Policy, len(p))
	for op, r := range p {
		out[op] = r
	}
	for name, roleName := range overrides {
		op := Operation(name)
		if _, known := p[op]; !known {
			return nil, newValidationError("policy operation", name, "unknown operation")
		}
		r, err := ParseRole(roleName)
		if err != nil {
			return nil, err
		}
		out[op] = r
	}
	return out, nil
}
