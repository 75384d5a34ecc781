package avs

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TaskTemplate is an admin defined unit of work. Deadline is relative, in days.
type TaskTemplate struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Deadline    int       `gorm:"column:deadline_days;not null" json:"deadline"`
	Tags        []string  `gorm:"type:text;serializer:json" json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func TaskTemplateTableName() string {
	return "task_template"
}

func (TaskTemplate) TableName() string { return TaskTemplateTableName() }

func (t *TaskTemplate) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

type UserTaskStatus string

const (
	UserTaskStatusPending    UserTaskStatus = "PENDING"
	UserTaskStatusRejected   UserTaskStatus = "REJECTED"
	UserTaskStatusInProgress UserTaskStatus = "IN_PROGRESS"
	UserTaskStatusSubmitted  UserTaskStatus = "SUBMITTED"
	UserTaskStatusCompleted  UserTaskStatus = "COMPLETED"
	UserTaskStatusDisputed   UserTaskStatus = "DISPUTED"
	UserTaskStatusSlashed    UserTaskStatus = "SLASHED"
	UserTaskStatusCancelled  UserTaskStatus = "CANCELLED"
)

// transitions lists the moves the lifecycle allows. The chain is
// authoritative, so TaskCompleted may finish an application from any state
// before SUBMITTED as well.
var transitions = map[UserTaskStatus][]UserTaskStatus{
	UserTaskStatusPending:    {UserTaskStatusInProgress, UserTaskStatusRejected, UserTaskStatusCompleted, UserTaskStatusCancelled},
	UserTaskStatusInProgress: {UserTaskStatusSubmitted, UserTaskStatusCompleted, UserTaskStatusDisputed, UserTaskStatusCancelled},
	UserTaskStatusSubmitted:  {UserTaskStatusCompleted, UserTaskStatusDisputed, UserTaskStatusCancelled},
	UserTaskStatusDisputed:   {UserTaskStatusSlashed, UserTaskStatusCancelled},
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s UserTaskStatus) CanTransition(next UserTaskStatus) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// UserTask is one identity's application for a task template against one
// asset on one chain, correlated with the AVS contract through AvsTaskHash.
type UserTask struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	IdentityID   string         `gorm:"size:36;not null;uniqueIndex:ux_user_task_apply,priority:1" json:"user"`
	TaskID       string         `gorm:"size:36;not null;uniqueIndex:ux_user_task_apply,priority:2" json:"task_id"`
	Task         *TaskTemplate  `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	AssetAddress string         `gorm:"size:42;not null;uniqueIndex:ux_user_task_apply,priority:3" json:"rwa_token_address"`
	ChainID      string         `gorm:"size:32;not null;uniqueIndex:ux_user_task_apply,priority:4" json:"chain_id"`
	Status       UserTaskStatus `gorm:"size:20;not null;default:PENDING;index" json:"status"`

	TaskCreationTxHash   string     `gorm:"size:66" json:"task_creation_tx_hash,omitempty"`
	TaskCompletionTxHash string     `gorm:"size:66" json:"task_completion_tx_hash,omitempty"`
	SlashingTxHash       string     `gorm:"size:66" json:"slashing_tx_hash,omitempty"`
	AvsTaskID            string     `gorm:"size:78;index" json:"avs_task_id,omitempty"`
	AvsTaskHash          string     `gorm:"size:66;index" json:"avs_task_hash"`
	AvsDeadline          *time.Time `json:"avs_deadline,omitempty"`

	VerificationData map[string]interface{} `gorm:"type:text;serializer:json" json:"verification_data,omitempty"`
	Metadata         map[string]interface{} `gorm:"type:text;serializer:json" json:"metadata,omitempty"`
	ReasonMessage    string                 `gorm:"type:text" json:"reason_message,omitempty"`

	StakedAmount  decimal.NullDecimal `gorm:"type:varchar(80)" json:"staked_amount"`
	RewardAmount  decimal.NullDecimal `gorm:"type:varchar(80)" json:"reward_amount"`
	SlashedAmount decimal.NullDecimal `gorm:"type:varchar(80)" json:"slashed_amount"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Version   int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func UserTaskTableName() string {
	return "user_task"
}

func (UserTask) TableName() string { return UserTaskTableName() }

func (t *UserTask) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
