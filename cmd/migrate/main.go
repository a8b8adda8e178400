package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/EventBooth/app/models"
	"github.com/ManuelReschke/EventBooth/internal/pkg/database"
	"github.com/ManuelReschke/EventBooth/internal/pkg/env"
	"github.com/ManuelReschke/EventBooth/internal/pkg/security"
)

func main() {
	src := env.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	// hash-password does not need a database
	if command == "hash-password" {
		if len(os.Args) < 3 {
			log.Fatalf("Please provide a password")
		}
		hash, err := security.HashPassword(os.Args[2])
		if err != nil {
			log.Fatalf("Hashing failed: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg := database.LoadConfig(src)
	log.Printf("Connecting to database: %s@%s:%s/%s", cfg.User, cfg.Host, cfg.Port, cfg.Name)

	// Open migrates the schema
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("Database setup failed: %v", err)
	}

	switch command {
	case "up":
		log.Println("Schema is up to date")

	case "status":
		for _, m := range database.Models() {
			var n int64
			stmt := &gorm.Statement{DB: db}
			if err := stmt.Parse(m); err != nil {
				log.Fatalf("Parsing model failed: %v", err)
			}
			if err := db.Model(m).Count(&n).Error; err != nil {
				log.Fatalf("Counting %s failed: %v", stmt.Schema.Table, err)
			}
			log.Printf("%-24s %d rows", stmt.Schema.Table, n)
		}

	case "import-packages":
		if len(os.Args) < 3 {
			log.Fatalf("Please provide a JSON file")
		}
		n, err := importPackages(db, os.Args[2])
		if err != nil {
			log.Fatalf("Package import failed: %v", err)
		}
		log.Printf("Imported %d package definitions", n)

	default:
		printUsage()
		os.Exit(1)
	}
}

// importPackages upserts the package definitions in file by SKU.
func importPackages(db *gorm.DB, file string) (int, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return 0, err
	}
	var packages []models.PackageDefinition
	if err := json.Unmarshal(raw, &packages); err != nil {
		return 0, fmt.Errorf("decode %s: %w", file, err)
	}
	for i := range packages {
		p := &packages[i]
		p.ID = 0
		p.SKU = strings.TrimSpace(p.SKU)
		p.Type = strings.ToUpper(strings.TrimSpace(p.Type))
		if p.SKU == "" || p.Tier == "" {
			return 0, fmt.Errorf("package %d: sku and tier are required", i)
		}
		if p.Type != models.PackageTypeBase && p.Type != models.PackageTypeUpgrade {
			return 0, fmt.Errorf("package %s: type must be BASE or UPGRADE", p.SKU)
		}
	}
	if len(packages) == 0 {
		return 0, nil
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for i := range packages {
			p := packages[i]
			active := p.IsActive
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "sku"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "type", "tier", "storage_mb", "updated_at"}),
			}).Create(&p).Error; err != nil {
				return err
			}
			// is_active has a column default, so false must be written explicitly
			if err := tx.Model(&models.PackageDefinition{}).
				Where("sku = ?", p.SKU).
				Update("is_active", active).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return len(packages), err
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go [command]")
	fmt.Println("Available commands:")
	fmt.Println("  up                    - Create or update the schema")
	fmt.Println("  status                - Show row counts per table")
	fmt.Println("  import-packages FILE  - Upsert package definitions from a JSON array")
	fmt.Println("  hash-password PASS    - Print a bcrypt hash for OPERATOR_PASSWORD_HASH")
}
