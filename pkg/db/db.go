package db

import (
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/loomchat/attachment-backend/config"
)

var db *gorm.DB
var once sync.Once

// GetConnection returns a shared gorm connection configured from the
// application config.
func GetConnection(databaseConfig config.DatabaseConfig) *gorm.DB {
	once.Do(func() {
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=%s",
			databaseConfig.Host,
			databaseConfig.Username,
			databaseConfig.Password,
			databaseConfig.Name,
			databaseConfig.Port,
			databaseConfig.TimeZone,
		)

		var err error
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true, // disables implicit prepared statement usage
		}), &gorm.Config{
			QueryFields: true, // QueryFields mode will select by all fields' name for current model
			NamingStrategy: schema.NamingStrategy{
				SingularTable: true,
			},
		})
		if err != nil {
			log.Fatalf("connect database: %v", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("access database pool: %v", err)
		}

		sqlDB.SetMaxIdleConns(databaseConfig.Pool.IdleConnections)
		sqlDB.SetMaxOpenConns(databaseConfig.Pool.MaxConnections)
		if databaseConfig.Pool.ConnLifeTime > 0 {
			sqlDB.SetConnMaxLifetime(databaseConfig.Pool.ConnLifeTime)
		} else {
			sqlDB.SetConnMaxLifetime(30 * time.Minute)
		}
	})

	return db
}

// Close closes the underlying sql.DB of a gorm connection.
func Close(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
