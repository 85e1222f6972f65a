package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "employee read", role: RoleEmployee, action: ActionRead, allow: true},
		{name: "employee write", role: RoleEmployee, action: ActionWrite, allow: true},
		{name: "employee manage teams", role: RoleEmployee, action: ActionManageTeams, allow: false},
		{name: "employee see all", role: RoleEmployee, action: ActionSeeAll, allow: false},
		{name: "manager manage teams", role: RoleManager, action: ActionManageTeams, allow: true},
		{name: "manager manage users", role: RoleManager, action: ActionManageUsers, allow: false},
		{name: "manager see all", role: RoleManager, action: ActionSeeAll, allow: false},
		{name: "admin see all", role: RoleAdmin, action: ActionSeeAll, allow: true},
		{name: "unknown role", role: Role("GUEST"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]Role{
		"ADMIN":    RoleAdmin,
		"MANAGER":  RoleManager,
		"EMPLOYEE": RoleEmployee,
		"":         RoleEmployee,
		"admin":    RoleEmployee,
	}
	for input, want := range cases {
		if got := Normalize(input); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}
