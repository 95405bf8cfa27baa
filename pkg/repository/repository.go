package repository

import (
	"gorm.io/gorm"
)

// DefaultPageSize is the default pagination page size when page size is not assigned
const DefaultPageSize = 10

// MaxPageSize is the maximum pagination page size if the assigned value is over this number
const MaxPageSize = 100

// Repository bundles the persistence operations of the attachment service.
type Repository interface {
	File
	ToolResourceLink
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a Repository backed by a gorm connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{
		db: db,
	}
}
