package orm

import "gorm.io/gorm"

// MaxPageSize caps the limit a caller may ask for.
const MaxPageSize = 200

// Paginate is a query scope for 1-based pages. A page or limit <= 0 leaves
// the query unbounded.
func Paginate(page, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page <= 0 || limit <= 0 {
			return db
		}
		if limit > MaxPageSize {
			limit = MaxPageSize
		}
		return db.Offset((page - 1) * limit).Limit(limit)
	}
}
