package migration_0

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Model struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name           string `gorm:"not null;index"`
	TrainingName   string
	ServiceAccount string
	Experiment     string
	Status         string `gorm:"size:20;not null"`

	Options  datatypes.JSON `gorm:"type:jsonb"`
	TestSize float64
	Seed     int64

	ArtifactBucket string
	ArtifactKey    string

	Accuracy        sql.NullFloat64
	ConfusionMatrix datatypes.JSON `gorm:"type:jsonb"`
	ClassNames      datatypes.JSON `gorm:"type:jsonb"`

	CreationTime   time.Time
	CompletionTime sql.NullTime
}

type ExperimentRun struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Experiment string `gorm:"not null;index"`
	RunName    string

	ModelId uuid.NullUUID `gorm:"type:uuid"`
	Model   *Model        `gorm:"foreignKey:ModelId;constraint:OnDelete:SET NULL"`

	Params          datatypes.JSON `gorm:"type:jsonb"`
	Accuracy        float64
	ConfusionMatrix datatypes.JSON `gorm:"type:jsonb"`
	ClassNames      datatypes.JSON `gorm:"type:jsonb"`
	TrainSize       int
	EvalSize        int
	ArtifactPath    string
	DurationMs      int64

	Timestamp time.Time
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&Model{}, &ExperimentRun{}); err != nil {
		return fmt.Errorf("initial migration failed: %w", err)
	}
	return nil
}
