package scope

import "gorm.io/gorm"

// OrderByCreatedAsc is appended after any caller ordering, so it only breaks ties.
func OrderByCreatedAsc(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}

func OrderByChunkIndex(db *gorm.DB) *gorm.DB {
	return db.Order("chunk_index ASC")
}
