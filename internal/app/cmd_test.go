package app

import (
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"empty defaults to serve", []string{}, CommandServe},
		{"nil defaults to serve", nil, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"migrate", []string{"migrate"}, CommandMigrate},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"extra args are ignored", []string{"migrate", "--flag", "value"}, CommandMigrate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.args)
			if err != nil {
				t.Fatalf("ParseCommand(%v) returned error: %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseCommand_UnknownReturnsError(t *testing.T) {
	for _, arg := range []string{"worker", "migarte", "--help"} {
		t.Run(arg, func(t *testing.T) {
			got, err := ParseCommand([]string{arg})
			if err == nil {
				t.Fatalf("ParseCommand([%s]) = %q, want error", arg, got)
			}
			if !strings.Contains(err.Error(), arg) {
				t.Errorf("error should name the command: %v", err)
			}
			if !strings.Contains(err.Error(), "serve, migrate, healthcheck") {
				t.Errorf("error should list available commands: %v", err)
			}
		})
	}
}
