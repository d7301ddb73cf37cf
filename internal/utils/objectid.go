package utils

import "go.mongodb.org/mongo-driver/bson/primitive"

// IsObjectID reports whether id is a 24-character hexadecimal identifier
func IsObjectID(id string) bool {
	if len(id) != 24 {
		return false
	}
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

// NewObjectID returns a fresh identifier in hex form
func NewObjectID() string {
	return primitive.NewObjectID().Hex()
}
