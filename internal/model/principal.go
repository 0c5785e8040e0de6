package model

// Principal is the authenticated student, passed explicitly to everything that
// talks to the remote API on their behalf.
type Principal struct {
	UserID   int
	Username string
	Token    string
}
