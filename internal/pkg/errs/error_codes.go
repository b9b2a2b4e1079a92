/*
Package errs provides coded errors shared between the server core and the
wire protocol.

These constants identify specific protocol, validation, auth, and lookup
failures both internally and in error envelopes sent to clients.
*/
package errs

// 1xxx: Protocol Errors
const (
	// ErrInvalidJSON indicates a line that is not well-formed JSON.
	ErrInvalidJSON = 1001

	// ErrUnknownType indicates an envelope whose type is outside the protocol.
	ErrUnknownType = 1002

	// ErrMissingField indicates an envelope missing a field its type requires.
	ErrMissingField = 1003

	// ErrUnitTooLarge indicates a line exceeding the configured size ceiling.
	ErrUnitTooLarge = 1004

	// ErrRateLimited indicates the sender exceeded the message rate limit.
	ErrRateLimited = 1005
)

// 2xxx: Validation and Room Errors
const (
	// ErrUsernameTooShort indicates a registration username under 3 characters.
	ErrUsernameTooShort = 2001

	// ErrPasswordTooShort indicates a registration password under 4 characters.
	ErrPasswordTooShort = 2002

	// ErrWrongRoomPassword indicates a join attempt with a mismatched room password.
	ErrWrongRoomPassword = 2101

	// ErrNotInRoom indicates a room-scoped action from a user who is in no room.
	ErrNotInRoom = 2102

	// ErrBadCommandArgs indicates a slash command with missing or invalid arguments.
	ErrBadCommandArgs = 2201
)

// 3xxx: Auth, Session, and Permission Errors
const (
	// ErrInvalidCredentials indicates a login with a wrong username or password.
	ErrInvalidCredentials = 3001

	// ErrBanned indicates an authentication attempt by a banned username.
	ErrBanned = 3002

	// ErrAlreadyOnline indicates a login while another session holds the username.
	ErrAlreadyOnline = 3003

	// ErrUserExists indicates a registration for a username that is taken.
	ErrUserExists = 3004

	// ErrAuthRequired indicates a non-auth envelope before authentication completed.
	ErrAuthRequired = 3005

	// ErrAdminPassword indicates a failed admin password attempt.
	ErrAdminPassword = 3101

	// ErrPermissionDenied indicates an admin command from a non-admin session.
	ErrPermissionDenied = 3102
)

// 4xxx: Lookup Errors
const (
	// ErrUserNotFound indicates a target username with no live session.
	ErrUserNotFound = 4001

	// ErrUserNotBanned indicates an unban for a username not in the ban list.
	ErrUserNotBanned = 4002

	// ErrUnknownCommand indicates a slash command outside the dispatch table.
	ErrUnknownCommand = 4101
)

// 5xxx: Internal Errors
const (
	// ErrUnknown represents an unclassified internal server error.
	ErrUnknown = 5000
)
