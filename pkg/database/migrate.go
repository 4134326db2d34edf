package database

import (
	"go-inventory-cost/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Migrate creates or updates every engine table. MySQL has no uuid column
// type, so ids are kept there as char(36).
func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == "mysql" {
		if err := retype(db, "uuid", "char(36)"); err != nil {
			return err
		}
	}
	return db.AutoMigrate(model.All()...)
}

// retype swaps the column type of every model field declared as from. The
// parsed schemas are cached on db, so AutoMigrate and later queries see it.
func retype(db *gorm.DB, from, to schema.DataType) error {
	for _, m := range model.All() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return err
		}
		for _, field := range stmt.Schema.Fields {
			if field.DataType == from {
				field.DataType = to
			}
		}
	}
	return nil
}
