package db

import (
	"time"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/Fi44er/wallet_ledger/utils"
	"gorm.io/driver/postgres"

	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func ConnectDb(url string, log *utils.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  url,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Error),
	})

	if err != nil {
		return nil, err
	}

	log.Info("Connected to database")

	log.Info("Configuring database connection pool")
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetMaxOpenConns(200)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Models lists every table owned by the wallet subsystem.
func Models() []interface{} {
	return []interface{}{
		&models.Wallet{},
		&models.LedgerEntry{},
		&models.WithdrawalRequest{},
	}
}

func Migrate(db *gorm.DB, trigger bool, log *utils.Logger) error {
	if !trigger {
		return nil
	}

	log.Info("Migrating database")
	if err := db.AutoMigrate(Models()...); err != nil {
		log.Errorf("Failed to migrate database: %v", err)
		return err
	}

	log.Info("Database migrated")
	return nil
}
