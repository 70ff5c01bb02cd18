package specification

import "gorm.io/gorm"

// Specification narrows a gorm query. The in-memory repositories match the
// concrete types instead of calling Apply, so every new specification needs
// a case there too.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}
