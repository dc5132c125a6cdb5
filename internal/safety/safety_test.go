package safety

import "testing"

func TestCanWriteToDiskMatrix(t *testing.T) {
	cases := []struct {
		name    string
		ctx     Context
		allowed bool
	}{
		{"no_token_no_force", Context{ForceMode: false, ConfirmationToken: ""}, false},
		{"no_token_force", Context{ForceMode: true, ConfirmationToken: ""}, false},
		{"bad_token_force", Context{ForceMode: true, ConfirmationToken: "BAD"}, false},
		{"good_token_no_force", Context{ForceMode: false, ConfirmationToken: "PHX-x"}, false},
		{"good_token_force", Context{ForceMode: true, ConfirmationToken: "PHX-x"}, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			decision := CanWriteToDisk(c.ctx, false)
			if decision.Allowed != c.allowed {
				t.Errorf("CanWriteToDisk(%+v) = %+v, want allowed=%v", c.ctx, decision, c.allowed)
			}
			if !c.allowed && decision.Reason == "" {
				t.Error("expected a deny reason")
			}
		})
	}
}

func TestCanWriteToDiskIgnoresSystemTargetFlag(t *testing.T) {
	ctx := Context{ForceMode: true, ConfirmationToken: "PHX-x"}
	if !CanWriteToDisk(ctx, true).Allowed {
		t.Error("gate itself must not reject based on isSystemTarget; that is a separate preflight refusal")
	}
}
