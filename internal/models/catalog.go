package models

import "github.com/shopspring/decimal"

// Service is a catalog entry used for id -> name resolution.
type Service struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// User is an account from the upstream user list.
type User struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// DisplayName prefers the full name and falls back to the login.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
