/*
Package errs provides coded errors shared between the server core and the
wire protocol.

This file defines the map from error codes to message templates used by
NewError.
*/
package errs

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: Protocol Errors
	ErrInvalidJSON:  {Code: ErrInvalidJSON, Message: "Invalid message format."},
	ErrUnknownType:  {Code: ErrUnknownType, Message: "Unsupported message type %q."},
	ErrMissingField: {Code: ErrMissingField, Message: "Message is missing the %q field."},
	ErrUnitTooLarge: {Code: ErrUnitTooLarge, Message: "Message exceeds the maximum allowed size."},
	ErrRateLimited:  {Code: ErrRateLimited, Message: "You are sending messages too fast. Slow down."},

	// 2xxx: Validation and Room Errors
	ErrUsernameTooShort:  {Code: ErrUsernameTooShort, Message: "Username must be at least 3 characters."},
	ErrPasswordTooShort:  {Code: ErrPasswordTooShort, Message: "Password must be at least 4 characters."},
	ErrWrongRoomPassword: {Code: ErrWrongRoomPassword, Message: "Incorrect room password."},
	ErrNotInRoom:         {Code: ErrNotInRoom, Message: "You are not in any room."},
	ErrBadCommandArgs:    {Code: ErrBadCommandArgs, Message: "Usage: %s"},

	// 3xxx: Auth, Session, and Permission Errors
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Invalid username or password."},
	ErrBanned:             {Code: ErrBanned, Message: "You are banned from this server."},
	ErrAlreadyOnline:      {Code: ErrAlreadyOnline, Message: "Username already in use."},
	ErrUserExists:         {Code: ErrUserExists, Message: "Username %q already exists. Please choose another."},
	ErrAuthRequired:       {Code: ErrAuthRequired, Message: "Expected a login or register message."},
	ErrAdminPassword:      {Code: ErrAdminPassword, Message: "Invalid admin password."},
	ErrPermissionDenied:   {Code: ErrPermissionDenied, Message: "Admin rights required."},

	// 4xxx: Lookup Errors
	ErrUserNotFound:   {Code: ErrUserNotFound, Message: "User %q not found."},
	ErrUserNotBanned:  {Code: ErrUserNotBanned, Message: "User %q is not banned."},
	ErrUnknownCommand: {Code: ErrUnknownCommand, Message: "Unknown command. Use /help for help."},

	// 5xxx: Internal Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again."},
}
