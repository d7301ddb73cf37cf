package models

// Account is the slice of a marketplace user the messaging feature needs.
// Accounts are owned by the user service; messaging only reads them.
type Account struct {
	ID           string  `json:"_id" db:"id"`
	Name         string  `json:"name" db:"name"`
	ProfilePhoto *string `json:"profilePhoto,omitempty" db:"profile_photo"`
}
