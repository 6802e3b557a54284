// internal/core/domain/session.go
package domain

// Session identifies the signed-in customer and carries the bearer token
// forwarded to the backend.
type Session struct {
	CustomerID string
	Token      string
}

// Anonymous reports whether the session cannot be used for cart operations.
func (s Session) Anonymous() bool {
	return s.CustomerID == "" || s.Token == ""
}
