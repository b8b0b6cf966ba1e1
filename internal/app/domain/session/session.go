// Package session holds the wallet session snapshot.
package session

// Session is a point-in-time view of the authenticated wallet.
type Session struct {
	Authenticated bool   `json:"authenticated"`
	Address       string `json:"address,omitempty"`
}

// Anonymous is the unauthenticated session.
func Anonymous() Session {
	return Session{}
}
