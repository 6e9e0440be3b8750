package migration_1

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Model struct {
	Id    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Error sql.NullString
}

type Endpoint struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name string `gorm:"not null"`

	ModelId uuid.UUID `gorm:"type:uuid;not null"`
	Model   *Model    `gorm:"foreignKey:ModelId"`

	MachineType    string
	MinReplicas    int
	MaxReplicas    int
	ServiceAccount string
	Status         string `gorm:"size:20;not null"`
	Error          sql.NullString

	CreationTime time.Time
	DeployTime   sql.NullTime
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&Model{}, "Error"); err != nil {
		return fmt.Errorf("error adding Error column to models: %w", err)
	}

	if err := db.Migrator().CreateTable(&Endpoint{}); err != nil {
		return fmt.Errorf("error creating endpoints table: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&Endpoint{}); err != nil {
		return fmt.Errorf("error dropping endpoints table: %w", err)
	}

	if err := db.Migrator().DropColumn(&Model{}, "Error"); err != nil {
		return fmt.Errorf("error dropping Error column from models: %w", err)
	}

	return nil
}
