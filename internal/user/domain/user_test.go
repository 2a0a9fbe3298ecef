package domain

import "testing"

func TestUser_Validate(t *testing.T) {
	u := &User{Email: "  Alice@Example.COM "}
	if err := u.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("Email = %q, want normalized", u.Email)
	}
	if u.Status != UserStatusActive {
		t.Errorf("Status = %q, want active", u.Status)
	}
	if !u.HasRole(RoleUser) || u.HasRole("admin") {
		t.Errorf("Roles = %v, want [user]", u.Roles)
	}

	for _, email := range []string{"", "   ", "no-at-sign"} {
		if err := (&User{Email: email}).Validate(); err == nil {
			t.Errorf("Validate(%q) should fail", email)
		}
	}
}
