package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	bolt "go.etcd.io/bbolt"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Back up and inspect the hub's BoltDB store",
	Long: `migrate backs up the hub's database file and reports a row count
for every bucket it finds. There is no legacy on-disk schema to convert
in this store, so the command's job is the operational housekeeping a
database migration tool would otherwise also do: a safety backup before
any maintenance, and a quick inventory of what's in the buckets.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().String("data-dir", "./data", "Hub data directory")
	migrateCmd.Flags().Bool("dry-run", false, "Inspect buckets without creating a backup")
	migrateCmd.Flags().String("backup", "", "Path to back up the database to (default: <data-dir>/caephub.db.backup)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	backupPath, _ := cmd.Flags().GetString("backup")

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("caephub store inspector")
	log.Println("========================")

	dbPath := filepath.Join(dataDir, "caephub.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database not found at %s", dbPath)
	}

	log.Printf("Database: %s", dbPath)
	log.Printf("Dry run: %v", dryRun)

	if !dryRun {
		backupFile := backupPath
		if backupFile == "" {
			backupFile = dbPath + ".backup"
		}
		log.Printf("Creating backup: %s", backupFile)
		if err := copyFile(dbPath, backupFile); err != nil {
			return fmt.Errorf("failed to create backup: %v", err)
		}
		log.Println("✓ Backup created successfully")
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := reportBuckets(db); err != nil {
		return fmt.Errorf("inspection failed: %v", err)
	}

	log.Println("\n✓ Inspection complete")
	return nil
}

func reportBuckets(db *bolt.DB) error {
	return db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			count := 0
			if err := b.ForEach(func(k, v []byte) error {
				count++
				return nil
			}); err != nil {
				return err
			}
			log.Printf("  %-24s %d rows", name, count)
			return nil
		})
	})
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0600)
}
