package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ModelQueued   string = "QUEUED"
	ModelTraining string = "TRAINING"
	ModelTrained  string = "TRAINED"
	ModelFailed   string = "FAILED"
)

const (
	EndpointDeploying string = "DEPLOYING"
	EndpointDeployed  string = "DEPLOYED"
	EndpointFailed    string = "FAILED"
)

// Model is one training job and, once trained, the registered model it
// produced. Several models may share a display name; the newest trained one is
// that name's latest version.
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
	Error           sql.NullString

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
