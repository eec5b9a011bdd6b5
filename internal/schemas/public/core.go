// package public contains structs that can be sent to vibbin clients.
// These structs do not contain private information such as password hashes. Structs used to
// represent database records and other server-specific objects live in package schemas.
package public

import "time"

// User is the public profile of a vibbin user
type User struct {
	Id             string  `json:"id"`
	Name           string  `json:"name"`
	Username       string  `json:"username"`
	ProfilePicture *string `json:"profilePicture"`
}

// Friend is a User together with their current presence
type Friend struct {
	User
	IsOnline bool       `json:"isOnline"`
	InCall   bool       `json:"inCall"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// StatusResponse is returned by GET /status
type StatusResponse struct {
	Self    User     `json:"self"`
	Friends []Friend `json:"friends"`
}

// CallLog is one entry of GET /calls/history
type CallLog struct {
	Id        string     `json:"id"`
	Caller    User       `json:"caller"`
	Receiver  User       `json:"receiver"`
	Status    string     `json:"status"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Duration  *int64     `json:"duration,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}
