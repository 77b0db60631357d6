package auth

// CommandClass groups protocol commands by the capability they require.
type CommandClass string

const (
	// ClassView covers read-only queries: house/room state, device status,
	// device listings.
	ClassView CommandClass = "view"

	// ClassControl covers device and group actions, including alarm
	// arm/disarm.
	ClassControl CommandClass = "control"

	// ClassStructure covers structural changes: add/remove rooms and
	// devices, alarm threshold.
	ClassStructure CommandClass = "structure"
)

// roleClasses maps each role to the command classes it may execute.
// This is the single source of truth for the authorisation model.
var roleClasses = map[Role][]CommandClass{
	RoleGuest:   {ClassView},
	RoleRegular: {ClassView, ClassControl},
	RoleAdmin:   {ClassView, ClassControl, ClassStructure},
}

// Allows returns true if the given role may execute the command class.
func Allows(role Role, class CommandClass) bool {
	classes, ok := roleClasses[role]
	if !ok {
		return false
	}
	for _, c := range classes {
		if c == class {
			return true
		}
	}
	return false
}

// ClassesForRole returns all command classes granted to a role.
// Returns nil for unknown roles.
func ClassesForRole(role Role) []CommandClass {
	classes := roleClasses[role]
	if classes == nil {
		return nil
	}
	result := make([]CommandClass, len(classes))
	copy(result, classes)
	return result
}
