package database

import (
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect() {
	var err error

	// Hosted platforms (Render, Railway) hand us a single URL
	dsn := os.Getenv("DATABASE_URL")

	if dsn == "" {
		// Local development: assemble a TCP DSN from parts
		dbUser := os.Getenv("DB_USER")
		if dbUser == "" {
			dbUser = "postgres"
		}

		dbPass := os.Getenv("DB_PASS")
		dbName := os.Getenv("DB_NAME")
		if dbName == "" {
			dbName = "habitloop"
		}

		dsn = fmt.Sprintf("host=localhost user=%s password=%s dbname=%s port=5432 sslmode=disable",
			dbUser, dbPass, dbName)
		log.Println("Connecting to local PostgreSQL")
	} else {
		log.Println("Connecting to PostgreSQL via DATABASE_URL")
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		panic(err)
	}

	log.Println("✅ Database connected successfully!")
}
