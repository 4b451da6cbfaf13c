package repository

import (
	"context"

	"github.com/Fi44er/wallet_ledger/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *utils.Logger
}

func NewRepository(db *gorm.DB, logger *utils.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	db := tx
	if tx == nil {
		db = r.db
	}
	return db.WithContext(ctx)
}

// forUpdate adds a row lock where the dialect supports one. SQLite
// serializes writers on its own.
func (r *Repository) forUpdate(db *gorm.DB) *gorm.DB {
	if r.db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}
