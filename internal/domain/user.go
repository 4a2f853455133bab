package domain

// GuestUserID owns orders placed without an active session.
const GuestUserID = "guest"

type UserIdentity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
