package service

import (
	"context"
	"errors"
	"fmt"

	"grading_backend/internal/model"
	"grading_backend/internal/queue"
	"grading_backend/internal/util"
	"grading_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SubmissionStore 提交服务需要的存储能力
type SubmissionStore interface {
	Create(submission *model.Submission) error
	FindByID(id string) (*model.Submission, error)
	FindByLearner(learnerID, questID string, status model.SubmissionStatus, page, limit int) ([]model.Submission, int64, error)
	FindRecentByLearner(learnerID string, limit int) ([]model.Submission, error)
}

// JobPublisher 判题任务发布
type JobPublisher interface {
	Publish(ctx context.Context, job *queue.GradingJob) error
}

// TestCaseSource 按关卡解析用例，失败时返回空列表
type TestCaseSource interface {
	FetchTestCases(ctx context.Context, questID string) []queue.TestCasePayload
}

// SubmissionRequest 提交请求体
type SubmissionRequest struct {
	QuestID   string                  `json:"questId" binding:"required"`
	Source    string                  `json:"source" binding:"required"`
	Language  string                  `json:"language"`
	TestCases []queue.TestCasePayload `json:"testCases"`
}

// SubmissionService 异步受理判题：先落 PENDING 记录再入队，调用方不等待判题完成
type SubmissionService struct {
	repo      SubmissionStore
	publisher JobPublisher
	testCases TestCaseSource
}

func NewSubmissionService(repo SubmissionStore, publisher JobPublisher, testCases TestCaseSource) *SubmissionService {
	return &SubmissionService{
		repo:      repo,
		publisher: publisher,
		testCases: testCases,
	}
}

// CreateSubmission 受理一次提交：持久化 PENDING 记录，组装任务快照并入队。
// 记录先于任何队列交互写入，保证 worker 能按 id 找到它
func (s *SubmissionService) CreateSubmission(ctx context.Context, learnerID string, req *SubmissionRequest) (*model.Submission, error) {
	submission := &model.Submission{
		LearnerID:     learnerID,
		QuestID:       req.QuestID,
		SubmittedCode: req.Source,
		Language:      req.Language,
		Status:        model.StatusPending,
	}
	if err := s.repo.Create(submission); err != nil {
		return nil, fmt.Errorf("persist submission: %w", err)
	}

	testCases := req.TestCases
	if len(testCases) == 0 {
		// 请求未携带用例时向内容服务解析；不可达降级为空列表，走单次运行模式
		testCases = s.testCases.FetchTestCases(ctx, req.QuestID)
	}
	if testCases == nil {
		testCases = []queue.TestCasePayload{}
	}

	job := &queue.GradingJob{
		SubmissionID:  submission.ID,
		QuestID:       submission.QuestID,
		SubmittedCode: submission.SubmittedCode,
		Language:      req.Language,
		TestCases:     testCases,
	}
	if err := s.publisher.Publish(ctx, job); err != nil {
		logger.Log.Error("Failed to enqueue grading job",
			zap.String("submissionId", submission.ID),
			zap.Error(err))
		return nil, fmt.Errorf("enqueue grading job: %w", err)
	}

	logger.Log.Info("Submission accepted",
		zap.String("submissionId", submission.ID),
		zap.String("questId", submission.QuestID),
		zap.Int("testCases", len(testCases)))
	return submission, nil
}

func (s *SubmissionService) ListSubmissions(learnerID, questID string, status model.SubmissionStatus, page, limit int) ([]model.Submission, int64, error) {
	return s.repo.FindByLearner(learnerID, questID, status, page, limit)
}

// GetSubmission 按 id 查询，只允许本人访问
func (s *SubmissionService) GetSubmission(learnerID, submissionID string) (*model.Submission, error) {
	submission, err := s.repo.FindByID(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}
	if submission.LearnerID != learnerID {
		return nil, util.ErrSubmissionNotFound
	}
	return submission, nil
}

func (s *SubmissionService) RecentSubmissions(learnerID string, limit int) ([]model.Submission, error) {
	return s.repo.FindRecentByLearner(learnerID, limit)
}
