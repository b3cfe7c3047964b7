package repository

import (
	"grading_backend/internal/model"

	"gorm.io/gorm"
)

// SubmissionRepository 处理提交记录的数据库操作
type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) Create(submission *model.Submission) error {
	return r.DB.Create(submission).Error
}

func (r *SubmissionRepository) FindByID(id string) (*model.Submission, error) {
	var submission model.Submission
	err := r.DB.Where("id = ?", id).First(&submission).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

// Update 全量覆盖写入。重复投递会重判并覆盖终态，结果幂等
func (r *SubmissionRepository) Update(submission *model.Submission) error {
	return r.DB.Save(submission).Error
}

// FindByLearner 按学员分页查询，questID/status 为空时不过滤
func (r *SubmissionRepository) FindByLearner(learnerID, questID string, status model.SubmissionStatus, page, limit int) ([]model.Submission, int64, error) {
	query := r.DB.Model(&model.Submission{}).Where("learner_id = ?", learnerID)
	if questID != "" {
		query = query.Where("quest_id = ?", questID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var submissions []model.Submission
	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&submissions).Error
	if err != nil {
		return nil, 0, err
	}
	return submissions, total, nil
}

func (r *SubmissionRepository) FindRecentByLearner(learnerID string, limit int) ([]model.Submission, error) {
	var submissions []model.Submission
	err := r.DB.Where("learner_id = ?", learnerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}
