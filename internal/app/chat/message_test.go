package chat

import (
	"testing"

	"dischat/internal/pkg/errs"
)

func TestValidateInbound(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		wantCode int
	}{
		{"login ok", Message{Type: TypeLogin, Username: "alice", Password: "pw"}, 0},
		{"login missing username", Message{Type: TypeLogin, Password: "pw"}, errs.ErrMissingField},
		{"register missing password", Message{Type: TypeRegister, Username: "alice"}, errs.ErrMissingField},
		{"chat ok", Message{Type: TypeChat, Text: "hi"}, 0},
		{"chat missing text", Message{Type: TypeChat}, errs.ErrMissingField},
		{"command missing text", Message{Type: TypeCommand}, errs.ErrMissingField},
		{"private missing target", Message{Type: TypePrivate, Text: "hi"}, errs.ErrMissingField},
		{"private missing text", Message{Type: TypePrivate, Target: "bob"}, errs.ErrMissingField},
		{"typing ok", Message{Type: TypeTyping, Status: true}, 0},
		{"file ok", Message{Type: TypeFile, Name: "a.png", Size: 12}, 0},
		{"file missing name", Message{Type: TypeFile, Size: 12}, errs.ErrMissingField},
		{"file non-positive size", Message{Type: TypeFile, Name: "a.png"}, errs.ErrMissingField},
		{"server-only type rejected", Message{Type: TypeSystem, Text: "hi"}, errs.ErrUnknownType},
		{"unknown type rejected", Message{Type: "bogus"}, errs.ErrUnknownType},
		{"empty type rejected", Message{}, errs.ErrUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInbound(&tt.msg)

			if tt.wantCode == 0 {
				if err != nil {
					t.Fatalf("ValidateInbound = %v, want nil", err)
				}
				return
			}

			if err == nil {
				t.Fatalf("ValidateInbound = nil, want code %d", tt.wantCode)
			}
			if err.Code != tt.wantCode {
				t.Fatalf("error code = %d, want %d", err.Code, tt.wantCode)
			}
		})
	}
}
