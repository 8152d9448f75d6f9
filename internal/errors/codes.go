package errors

// Code is a machine-readable error code.
type Code string

const (
	CodeBadValues       Code = "BAD_VALUES"
	CodeNotFound        Code = "NOT_FOUND"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeUnavailable     Code = "UNAVAILABLE"
	CodeRateLimited     Code = "RATE_LIMITED"

	// Sync layer
	CodeTargetNotFound Code = "TARGET_NOT_FOUND"

	// Account errors
	CodeUserNotFound       Code = "USER_NOT_FOUND"
	CodeUsernameTaken      Code = "USERNAME_TAKEN"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeWrongPassword      Code = "WRONG_PASSWORD"

	// Session errors
	CodeSessionNotFound Code = "SESSION_NOT_FOUND"
	CodeSessionExpired  Code = "SESSION_EXPIRED"
	CodeLoggedIn        Code = "ALREADY_LOGGED_IN"

	// Friend errors
	CodeAlreadyFriends       Code = "ALREADY_FRIENDS"
	CodeRequestAlreadyExists Code = "FRIEND_REQUEST_ALREADY_EXISTS"
	CodeRequestNotFound      Code = "FRIEND_REQUEST_NOT_FOUND"
	CodeFriendNotFound       Code = "FRIEND_NOT_FOUND"
	CodeSelfFriendRequest    Code = "SELF_FRIEND_REQUEST"

	// Lock errors
	CodeLockNotFound        Code = "LOCK_NOT_FOUND"
	CodeInvalidLockInterval Code = "INVALID_LOCK_INTERVAL"
	CodeContentLocked       Code = "CONTENT_LOCKED"

	// Comment errors
	CodeCommentNotFound       Code = "COMMENT_NOT_FOUND"
	CodeCommentAuthorMismatch Code = "COMMENT_AUTHOR_MISMATCH"

	// Song errors
	CodeSongNotFound       Code = "SONG_NOT_FOUND"
	CodeSongAuthorMismatch Code = "SONG_AUTHOR_MISMATCH"
)
