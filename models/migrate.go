package models

import (
	"fmt"

	"gorm.io/gorm"
)

// byteOrderColumns are compared by keyset cursors on the server and in Go.
// Both sides must agree on byte order, so postgres gets the C collation.
var byteOrderColumns = []struct {
	table  string
	column string
}{
	{"feed_items", "uri"},
	{"feed_items", "cid"},
	{"feed_items", "sort_at"},
	{"follow_records", "target"},
}

func collationStatements() []string {
	out := make([]string, 0, len(byteOrderColumns))
	for _, c := range byteOrderColumns {
		out = append(out, fmt.Sprintf(`ALTER TABLE %s ALTER COLUMN %s TYPE text COLLATE "C"`, c.table, c.column))
	}
	return out
}

// Migrate creates or updates every read path table. sqlite already compares
// text bytewise; postgres columns are switched to the C collation.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return err
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}

	for _, stmt := range collationStatements() {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("setting byte order collation: %w", err)
		}
	}
	return nil
}
