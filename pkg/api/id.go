package api

import "github.com/google/uuid"

// NewID generates a new random (version 4) identifier for projects and
// messages.
func NewID() string {
	return uuid.NewString()
}

// CanonicalID parses id as a UUID in its 36 character form and returns the
// lower-case canonical spelling. Stores and attachment keys only ever see
// canonical ids, so lookups do not depend on the case a client used.
func CanonicalID(id string) (string, bool) {
	if len(id) != 36 {
		return "", false
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

// ValidateID checks whether the given string is a well-formed UUID in its
// 36 character form, in any case.
func ValidateID(id string) bool {
	_, ok := CanonicalID(id)
	return ok
}
