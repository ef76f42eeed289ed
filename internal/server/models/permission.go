package models

// PermissionLevel is the closed set of roles carried in session tokens.
type PermissionLevel string

const (
	PermissionAltoComando PermissionLevel = "ALTO-COMANDO"
	PermissionComando     PermissionLevel = "COMANDO"
	PermissionAdmin       PermissionLevel = "ADMIN"
	PermissionBase        PermissionLevel = "BASE"
	PermissionRecruta     PermissionLevel = "RECRUTA"
)

// PermissionLevels lists every known level, highest first.
var PermissionLevels = []PermissionLevel{
	PermissionAltoComando,
	PermissionComando,
	PermissionAdmin,
	PermissionBase,
	PermissionRecruta,
}

func (p PermissionLevel) Valid() bool {
	for _, l := range PermissionLevels {
		if p == l {
			return true
		}
	}
	return false
}

func (p PermissionLevel) String() string { return string(p) }
