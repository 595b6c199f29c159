// Package protocol defines the wire frames and the length-prefixed framing codec.
//
// A frame on the wire is a 4-byte big-endian length prefix followed by exactly
// that many bytes of JSON payload. The payload is a Frame envelope with exactly
// one kind field set.
package protocol

// Frame wraps all protocol messages. Exactly one field is set per frame.
type Frame struct {
	// Client -> server requests.
	Register        *Register        `json:"register,omitempty"`
	Login           *Login           `json:"login,omitempty"`
	Logout          *Logout          `json:"logout,omitempty"`
	UserListRequest *UserListRequest `json:"user_list_request,omitempty"`
	Search          *Search          `json:"search,omitempty"`
	SendMessage     *SendMessage     `json:"send_message,omitempty"`

	// Server -> client replies and pushes.
	UserList      *UserList      `json:"user_list,omitempty"`
	SearchResults *SearchResults `json:"search_results,omitempty"`
	Deliver       *Deliver       `json:"deliver_message,omitempty"`
	OK            *OK            `json:"ok,omitempty"`
	Error         *Error         `json:"error,omitempty"`
}

// Kind returns the frame kind name, for logging and dispatch diagnostics.
func (f *Frame) Kind() string {
	switch {
	case f.Register != nil:
		return "register"
	case f.Login != nil:
		return "login"
	case f.Logout != nil:
		return "logout"
	case f.UserListRequest != nil:
		return "user_list_request"
	case f.Search != nil:
		return "search"
	case f.SendMessage != nil:
		return "send_message"
	case f.UserList != nil:
		return "user_list"
	case f.SearchResults != nil:
		return "search_results"
	case f.Deliver != nil:
		return "deliver_message"
	case f.OK != nil:
		return "ok"
	case f.Error != nil:
		return "error"
	default:
		return "empty"
	}
}

// ----- Requests -----

type Register struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	FullName   string `json:"full_name"`
	Department string `json:"department"`
	Position   string `json:"position"`
}

type Login struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Logout struct{}

type UserListRequest struct{}

type Search struct {
	Query string `json:"query"`
}

type SendMessage struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// ----- Replies and pushes -----

// UserEntry is one directory entry in a user list or search result.
type UserEntry struct {
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	Department string `json:"department"`
	Position   string `json:"position"`
	Online     bool   `json:"online"`
}

type UserList struct {
	Users []UserEntry `json:"users"`
}

type SearchResults struct {
	Users []UserEntry `json:"users"`
}

// Deliver is a server-initiated push carrying a point-to-point message.
// It has no reply.
type Deliver struct {
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// OK acknowledges a successful request. Op names the request kind it answers.
type OK struct {
	Op     string `json:"op"`
	Detail string `json:"detail,omitempty"`
}

type Error struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

// Error codes for request-level failures.
const (
	CodeBadRequest      int32 = 1  // malformed or unexpected request
	CodeAuthRequired    int32 = 2  // protected operation while unauthenticated
	CodeInternal        int32 = 3  // server-side failure
	CodeAlreadyExists   int32 = 10 // registration for an existing username
	CodeBadCredentials  int32 = 11 // unknown username or wrong password
	CodeAlreadyLoggedIn int32 = 12 // username already has an active session
	CodeOffline         int32 = 20 // message recipient is not connected
)
