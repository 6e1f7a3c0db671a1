package domain

// Facility is a tenant of the system (a hospital, clinic or practice).
type Facility struct {
	ID      string
	Name    string
	Address string
}

// KeyPrefix is the default storage key prefix for all medrag keys.
const KeyPrefix = "medrag:"
