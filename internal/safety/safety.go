// Package safety implements the authorization predicate guarding every
// destructive workflow action: force-mode plus a syntactically valid
// confirmation token. It does not know about disks or targets beyond
// the boolean the caller supplies for system-disk classification.
package safety

import "strings"

// TokenPrefix is the required prefix of a confirmation token. The
// gate checks only this prefix and non-emptiness; it does not track
// token issuance or single-use enforcement, which is a caller
// convention.
const TokenPrefix = "PHX-"

// Context carries the two inputs the gate needs for one step.
type Context struct {
	ForceMode         bool
	ConfirmationToken string
}

// Decision is the outcome of a gate evaluation.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// CanWriteToDisk evaluates the gate rules in order, first-deny-wins.
// isSystemTarget is accepted for symmetry with the spec's signature
// but is not itself a gate rule: system-disk targeting is refused at
// each action's preflight, independent of and prior to this gate.
func CanWriteToDisk(ctx Context, isSystemTarget bool) Decision {
	_ = isSystemTarget
	if !ctx.ForceMode {
		return deny("destructive ops require force-mode")
	}
	if ctx.ConfirmationToken == "" {
		return deny("confirmation token missing")
	}
	if !strings.HasPrefix(ctx.ConfirmationToken, TokenPrefix) {
		return deny("invalid confirmation token")
	}
	return allow()
}

// RequireConfirmationToken is a convenience check for callers that
// want to fail fast before even building a device graph.
func RequireConfirmationToken(token string) bool {
	return strings.HasPrefix(token, TokenPrefix) && token != TokenPrefix
}
