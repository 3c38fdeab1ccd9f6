// Package guard decides whether a session may reach protected dashboard
// surfaces.
package guard

// Decision is the access verdict for a protected surface.
type Decision string

const (
	// Granted allows access.
	Granted Decision = "granted"
	// Blocked denies access.
	Blocked Decision = "blocked"
)

// Evaluate is the single access rule: a session passes only when a wallet is
// connected and a user is authenticated. Either one alone is not enough.
func Evaluate(connected, authenticated bool) Decision {
	if connected && authenticated {
		return Granted
	}
	return Blocked
}
