package auth

import "testing"

func TestRoleClassMatrix(t *testing.T) {
	tests := []struct {
		role  Role
		class CommandClass
		want  bool
	}{
		{RoleGuest, ClassView, true},
		{RoleGuest, ClassControl, false},
		{RoleGuest, ClassStructure, false},
		{RoleRegular, ClassView, true},
		{RoleRegular, ClassControl, true},
		{RoleRegular, ClassStructure, false},
		{RoleAdmin, ClassView, true},
		{RoleAdmin, ClassControl, true},
		{RoleAdmin, ClassStructure, true},
	}

	for _, tt := range tests {
		if got := Allows(tt.role, tt.class); got != tt.want {
			t.Errorf("Allows(%s, %s) = %v, want %v", tt.role, tt.class, got, tt.want)
		}
	}
}

func TestAllowsUnknownRole(t *testing.T) {
	if Allows(Role("landlord"), ClassView) {
		t.Error("unknown role granted view access")
	}
	if Allows(Role(""), ClassView) {
		t.Error("empty role granted view access")
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range ValidRoles {
		if !IsValidRole(r) {
			t.Errorf("IsValidRole(%s) = false", r)
		}
	}
	if IsValidRole(Role("owner")) {
		t.Error("IsValidRole(owner) = true")
	}
}
