package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubmissionStatus string

// 判题状态机：PENDING → GRADING → {COMPLETED, ERROR}，终态不再迁移
const (
	StatusPending   SubmissionStatus = "PENDING"
	StatusGrading   SubmissionStatus = "GRADING"
	StatusCompleted SubmissionStatus = "COMPLETED"
	StatusError     SubmissionStatus = "ERROR"
)

// Submission 学员针对某个关卡的一次代码提交及其判题结果
type Submission struct {
	ID            string           `gorm:"primaryKey;type:varchar(36)" json:"submissionId"`
	LearnerID     string           `gorm:"type:varchar(36);not null;index" json:"learnerId"`
	QuestID       string           `gorm:"type:varchar(36);not null;index" json:"questId"`
	SubmittedCode string           `gorm:"type:longtext;not null" json:"submittedCode"`
	Language      string           `gorm:"type:varchar(64)" json:"language"`
	Status        SubmissionStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	IsSuccess     bool             `json:"isSuccess"`
	Score         *float64         `json:"score"` // 0-100，单次运行模式下为空
	Stdout        string           `gorm:"type:longtext" json:"stdout"`
	Stderr        string           `gorm:"type:longtext" json:"stderr"`
	ResultsJSON   string           `gorm:"column:results_json;type:longtext" json:"resultsJson"`
	CreatedAt     time.Time        `gorm:"not null" json:"createdAt"`
}

func (Submission) TableName() string {
	return "submissions"
}

func (s *Submission) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return
}
