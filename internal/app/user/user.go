/*
Package user contains the core data structure for user identity.

It defines the basic representation of a chat participant, used both
internally and inside wire envelopes sent to clients.
*/
package user

// User represents the identity of a chat participant for the duration of a
// connection. Credentials live in the credential store; room membership and
// mute state live in the session registry.
type User struct {

	// Name is the unique, case-sensitive username chosen at registration.
	Name string `json:"name"`

	// Avatar is an opaque client-chosen tag, echoed to other clients and
	// never interpreted by the server.
	Avatar string `json:"avatar,omitempty"`
}
