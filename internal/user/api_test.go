package user

import "testing"

func TestValidateCreate(t *testing.T) {
	tests := []struct {
		name  string
		req   CreateRequest
		field string
	}{
		{"missing username", CreateRequest{Password: "longenough", Role: "nurse"}, "username"},
		{"short password", CreateRequest{Username: "n1", Password: "short", Role: "nurse"}, "password"},
		{"bad role", CreateRequest{Username: "n1", Password: "longenough", Role: "doctor"}, "role"},
		{"empty role", CreateRequest{Username: "n1", Password: "longenough"}, "role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCreate(&tt.req)
			if err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	if err := validateCreate(&CreateRequest{Username: "n1", Password: "longenough", Role: "nurse"}); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
	if err := validateCreate(&CreateRequest{Username: "a1", Password: "longenough", Role: "admin"}); err != nil {
		t.Errorf("valid admin request rejected: %v", err)
	}
}
