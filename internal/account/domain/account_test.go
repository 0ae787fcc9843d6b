package domain

import (
	"reflect"
	"testing"
)

func TestAccount_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		account Account
		wantErr bool
	}{
		{"valid", Account{Username: "alice", Email: "alice@example.com", PasswordHash: "h"}, false},
		{"blank username", Account{Username: "  ", Email: "alice@example.com", PasswordHash: "h"}, true},
		{"bad email", Account{Username: "alice", Email: "alice", PasswordHash: "h"}, true},
		{"no hash", Account{Username: "alice", Email: "alice@example.com"}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.account.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestRole_Validate(t *testing.T) {
	if err := (&Role{Name: "ADMIN"}).Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := (&Role{}).Validate(); err == nil {
		t.Error("Validate should reject an empty name")
	}
}

func TestActiveRoleNames(t *testing.T) {
	roles := []*Role{
		{Name: "ADMIN", Active: true},
		{Name: "LEGACY", Active: false},
		nil,
		{Name: "USER", Active: true},
	}
	got := ActiveRoleNames(roles)
	if want := []string{"ADMIN", "USER"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ActiveRoleNames = %v, want %v", got, want)
	}
	if got := ActiveRoleNames(nil); got == nil || len(got) != 0 {
		t.Errorf("ActiveRoleNames(nil) = %#v, want empty non-nil", got)
	}
}
