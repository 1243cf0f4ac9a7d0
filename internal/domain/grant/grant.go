package grant

import "time"

// Grant is a durable access record. It stays authoritative while the
// guild role it implies is missing or cannot be read.
type Grant struct {
	UserID    string
	IsAdmin   bool
	GrantedBy *string
	GrantedAt time.Time
}

type CreateGrantInput struct {
	UserID    string
	GrantedBy string
}
