package role

import (
	"reflect"
	"testing"
)

func TestHasAccess(t *testing.T) {
	cases := []struct {
		have, need Role
		want       bool
	}{
		{Read, Read, true},
		{Read, Write, false},
		{Write, Read, true},
		{Admin, Write, true},
		{Admin, Owner, false},
		{Owner, Admin, true},
		{Owner, Owner, true},
	}
	for _, c := range cases {
		if got := c.have.HasAccess(c.need); got != c.want {
			t.Errorf("%s.HasAccess(%s) = %v, want %v", c.have, c.need, got, c.want)
		}
	}
}

func TestCanManageRole(t *testing.T) {
	if !Owner.CanManageRole(Owner) {
		t.Error("owner must be able to manage owner")
	}
	if !Admin.CanManageRole(Write) {
		t.Error("admin must manage roles below it")
	}
	if Admin.CanManageRole(Admin) {
		t.Error("admin must not manage its own level")
	}
	if Write.CanManageRole(Admin) {
		t.Error("write must not manage admin")
	}
}

func TestSetNamesSortedAndDeduplicated(t *testing.T) {
	s := NewSet(Owner, Write, Read, Read)
	got := s.Names()
	want := []string{"OWNER", "READ", "WRITE"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestParseSet(t *testing.T) {
	s, err := ParseSet([]string{"owner", " read ", "", "WRITE"})
	if err != nil {
		t.Fatalf("ParseSet: %v", err)
	}
	if s != FounderSet {
		t.Errorf("parsed set = %v, want founder set %v", s, FounderSet)
	}
	if _, err := ParseSet([]string{"superuser"}); err == nil {
		t.Error("expected error for unknown role name")
	}
}

func TestSetMaxAndAccess(t *testing.T) {
	var empty Set
	if _, ok := empty.Max(); ok {
		t.Error("empty set must have no max")
	}
	if empty.HasAccess(Read) {
		t.Error("empty set must grant nothing")
	}
	s := NewSet(Read, Admin)
	if m, _ := s.Max(); m != Admin {
		t.Errorf("Max = %s, want ADMIN", m)
	}
	if !s.HasAccess(Write) {
		t.Error("ADMIN set must satisfy WRITE")
	}
}
