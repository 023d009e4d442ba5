package model

// Role is the caller's role inside the current course, as resolved by the
// identity provider. The numeric codes are stable and travel inside tokens.
type Role int

const (
	RoleUnknown Role = iota
	RoleGuest
	RoleUser
	RoleStudent
	RoleNonEditingTeacher
	RoleTeacher
	RoleDegreeAdmin
	RoleCenterAdmin
	RoleInstitutionAdmin
	RoleSysAdmin
)

var roleNames = map[Role]string{
	RoleUnknown:           "unknown",
	RoleGuest:             "guest",
	RoleUser:              "user",
	RoleStudent:           "student",
	RoleNonEditingTeacher: "non_editing_teacher",
	RoleTeacher:           "teacher",
	RoleDegreeAdmin:       "degree_admin",
	RoleCenterAdmin:       "center_admin",
	RoleInstitutionAdmin:  "institution_admin",
	RoleSysAdmin:          "sys_admin",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return roleNames[RoleUnknown]
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// IsStaff reports whether the role sees hidden exams, hidden sessions,
// every result and the access log.
func (r Role) IsStaff() bool {
	return r >= RoleNonEditingTeacher && r <= RoleSysAdmin
}

// CanEdit reports whether the role may change exams, sets, questions and sessions.
func (r Role) CanEdit() bool {
	return r >= RoleTeacher && r <= RoleSysAdmin
}
