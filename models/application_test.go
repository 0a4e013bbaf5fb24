package models

import "testing"

func TestParseItrFlag(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Y", "Y", true},
		{"y", "Y", true},
		{" n ", "N", true},
		{"true", "Y", true},
		{"FALSE", "N", true},
		{"Maybe", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		flag, ok := ParseItrFlag(c.in)
		if ok != c.ok {
			t.Fatalf("ParseItrFlag(%q): ok = %v, want %v", c.in, ok, c.ok)
		}
		if got := ItrFlagString(flag); got != c.want {
			t.Fatalf("ParseItrFlag(%q) renders %q, want %q", c.in, got, c.want)
		}
	}
}

func TestItrFlagStringTriState(t *testing.T) {
	if got := ItrFlagString(nil); got != "" {
		t.Fatalf("unset flag must render empty, got %q", got)
	}
}

func TestApplicationStatusScanValue(t *testing.T) {
	var s ApplicationStatus
	if err := s.Scan([]byte("Pending Maker")); err != nil {
		t.Fatal(err)
	}
	if s != ApplicationStatusPendingMaker {
		t.Fatalf("got %q", s)
	}
	v, err := s.Value()
	if err != nil {
		t.Fatal(err)
	}
	if v != "Pending Maker" {
		t.Fatalf("got %v", v)
	}
}

func TestReviewerRoleMapping(t *testing.T) {
	if role, err := UserRoleMaker.ReviewerRole(); err != nil || role != ReviewerRoleMaker {
		t.Fatalf("M must map to maker, got %q (%v)", role, err)
	}
	if role, err := UserRoleChecker.ReviewerRole(); err != nil || role != ReviewerRoleChecker {
		t.Fatalf("C must map to checker, got %q (%v)", role, err)
	}
	if _, err := UserRoleAdmin.ReviewerRole(); err == nil {
		t.Fatal("admin has no reviewer role")
	}
	if UserRole("X").IsValid() {
		t.Fatal("unknown role must be invalid")
	}
}
