package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"grading_backend/internal/model"
	"grading_backend/internal/piston"
	"grading_backend/internal/queue"
	"grading_backend/pkg/logger"
	"grading_backend/pkg/monitoring"
	"grading_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SubmissionStore 判题器需要的提交存取能力
type SubmissionStore interface {
	FindByID(id string) (*model.Submission, error)
	Update(submission *model.Submission) error
}

// Executor 沙箱执行调用
type Executor interface {
	Execute(ctx context.Context, language, sourceCode, stdin string) (*piston.ExecutionResponse, error)
}

// TestCaseResult 单个用例的判题明细，存入 resultsJson
type TestCaseResult struct {
	Description    string  `json:"description"`
	Input          string  `json:"input"`
	ExpectedOutput string  `json:"expectedOutput"`
	ActualOutput   string  `json:"actualOutput"`
	Passed         bool    `json:"passed"`
	ExitCode       *int    `json:"exitCode"`
	Stdout         string  `json:"stdout"`
	Stderr         string  `json:"stderr"`
	Error          *string `json:"error"`
}

// TestSuiteSummary 套题模式的聚合结果文档
type TestSuiteSummary struct {
	Passed  int              `json:"passed"`
	Total   int              `json:"total"`
	Score   float64          `json:"score"`
	Results []TestCaseResult `json:"results"`
}

// Grader 把一条判题任务推进到提交的终态
type Grader struct {
	store    SubmissionStore
	executor Executor
}

func NewGrader(store SubmissionStore, executor Executor) *Grader {
	return &Grader{store: store, executor: executor}
}

// ProcessJob 处理一条判题任务。任何错误都收敛为提交的 ERROR 终态，
// 不向队列传播失败；找不到提交记录时直接丢弃任务
func (g *Grader) ProcessJob(ctx context.Context, job *queue.GradingJob) {
	start := time.Now()
	ctx, span := tracing.Tracer.Start(ctx, "grading.process_job")
	span.SetAttributes(attribute.String("submission.id", job.SubmissionID))
	defer span.End()

	logger.Log.Info("Received grading job", zap.String("submissionId", job.SubmissionID))

	submission, err := g.store.FindByID(job.SubmissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 没有记录可更新，任务无从判起，丢弃而不重投
			logger.Log.Error("Submission not found, dropping job",
				zap.String("submissionId", job.SubmissionID))
		} else {
			logger.Log.Error("Failed to load submission, dropping job",
				zap.String("submissionId", job.SubmissionID),
				zap.Error(err))
		}
		return
	}

	// 先落 GRADING，读到的就不再是过期的 PENDING；顺带清掉重判时的旧分数
	submission.Status = model.StatusGrading
	submission.Score = nil
	if err := g.store.Update(submission); err != nil {
		logger.Log.Error("Failed to mark submission as grading",
			zap.String("submissionId", job.SubmissionID),
			zap.Error(err))
		return
	}

	var gradeErr error
	if len(job.TestCases) == 0 {
		gradeErr = g.runSingle(ctx, submission, job)
	} else {
		g.runSuite(ctx, submission, job)
	}

	if gradeErr != nil {
		logger.Log.Error("Execution failed for submission",
			zap.String("submissionId", job.SubmissionID),
			zap.Error(gradeErr))
		score := 0.0
		submission.Status = model.StatusError
		submission.IsSuccess = false
		submission.Score = &score
		submission.Stdout = ""
		submission.Stderr = gradeErr.Error()
		submission.ResultsJSON = "{}"
	}

	if err := g.store.Update(submission); err != nil {
		logger.Log.Error("Failed to persist grading result",
			zap.String("submissionId", job.SubmissionID),
			zap.Error(err))
		return
	}

	monitoring.ObserveGradingJob(string(submission.Status), start)
	logger.Log.Info("Grading complete",
		zap.String("submissionId", job.SubmissionID),
		zap.String("status", string(submission.Status)))
}

// runSingle 无用例的单次运行模式：仅退出码恰好为 0 视为成功，分数保持为空
func (g *Grader) runSingle(ctx context.Context, submission *model.Submission, job *queue.GradingJob) error {
	logger.Log.Debug("Calling sandbox executor", zap.String("language", job.Language))
	response, err := g.executor.Execute(ctx, job.Language, job.SubmittedCode, "")
	if err != nil {
		return err
	}

	run := response.Run
	success := run != nil && run.Code != nil && *run.Code == 0

	if success {
		submission.Status = model.StatusCompleted
	} else {
		submission.Status = model.StatusError
	}
	submission.IsSuccess = success
	if run != nil {
		submission.Stdout = run.Stdout
		submission.Stderr = run.Stderr
	} else {
		submission.Stdout = ""
		submission.Stderr = ""
	}
	submission.ResultsJSON = piston.SerializeResponse(response)
	return nil
}

// runSuite 套题模式：按给定顺序逐个执行，单个用例失败不影响其余用例，
// 部分得分不是错误态，套题判题总是以 COMPLETED 收尾
func (g *Grader) runSuite(ctx context.Context, submission *model.Submission, job *queue.GradingJob) {
	logger.Log.Info("Running test cases",
		zap.String("submissionId", job.SubmissionID),
		zap.Int("count", len(job.TestCases)))

	results := make([]TestCaseResult, 0, len(job.TestCases))
	passed := 0
	for _, testCase := range job.TestCases {
		response, err := g.executor.Execute(ctx, job.Language, job.SubmittedCode, testCase.Input)
		if err != nil {
			logger.Log.Warn("Test case execution failed",
				zap.String("submissionId", job.SubmissionID),
				zap.Error(err))
			message := err.Error()
			results = append(results, TestCaseResult{
				Description:    testCase.Description,
				Input:          testCase.Input,
				ExpectedOutput: testCase.ExpectedOutput,
				ActualOutput:   "",
				Passed:         false,
				Stdout:         "",
				Stderr:         message,
				Error:          &message,
			})
			monitoring.TestCaseCounter.WithLabelValues("error").Inc()
			continue
		}

		var run *piston.RunResult
		if response != nil {
			run = response.Run
		}
		stdout, stderr := "", ""
		var exitCode *int
		if run != nil {
			stdout = run.Stdout
			stderr = run.Stderr
			exitCode = run.Code
		}

		actual := normalizeOutput(stdout)
		matches := actual == normalizeOutput(testCase.ExpectedOutput)
		passedCase := isCleanExit(exitCode) && matches
		if passedCase {
			passed++
			monitoring.TestCaseCounter.WithLabelValues("passed").Inc()
		} else {
			monitoring.TestCaseCounter.WithLabelValues("failed").Inc()
		}

		results = append(results, TestCaseResult{
			Description:    testCase.Description,
			Input:          testCase.Input,
			ExpectedOutput: testCase.ExpectedOutput,
			ActualOutput:   actual,
			Passed:         passedCase,
			ExitCode:       exitCode,
			Stdout:         stdout,
			Stderr:         stderr,
		})
	}

	total := len(job.TestCases)
	score := float64(passed) * 100.0 / float64(total)
	submission.Status = model.StatusCompleted
	submission.IsSuccess = passed == total
	submission.Score = &score
	// 明细都在结果文档里，提交本身的 stdout/stderr 置空
	submission.Stdout = ""
	submission.Stderr = ""
	submission.ResultsJSON = marshalSummary(TestSuiteSummary{
		Passed:  passed,
		Total:   total,
		Score:   score,
		Results: results,
	})
}

// isCleanExit 部分运行时(如 Java)正常结束时不上报退出码，
// null 退出码按干净退出处理
func isCleanExit(code *int) bool {
	return code == nil || *code == 0
}

// normalizeOutput CRLF 归一为 LF 并去掉首尾空白，再做输出比对
func normalizeOutput(value string) string {
	return strings.TrimSpace(strings.ReplaceAll(value, "\r\n", "\n"))
}

func marshalSummary(summary TestSuiteSummary) string {
	data, err := json.Marshal(summary)
	if err != nil {
		logger.Log.Warn("Unable to serialize grading summary", zap.Error(err))
		return "{}"
	}
	return string(data)
}
