package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"grading_backend/internal/model"
	"grading_backend/internal/piston"
	"grading_backend/internal/queue"
	"grading_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	m.Run()
}

type fakeStore struct {
	submission *model.Submission
	findErr    error
	updateErr  error
	updates    []model.Submission
}

func (f *fakeStore) FindByID(id string) (*model.Submission, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.submission == nil || f.submission.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return f.submission, nil
}

func (f *fakeStore) Update(submission *model.Submission) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, *submission)
	return nil
}

// fakeExecutor answers execution calls in order; an entry may carry an error instead
type executorCall struct {
	response *piston.ExecutionResponse
	err      error
}

type fakeExecutor struct {
	calls  []executorCall
	stdins []string
	next   int
}

func (f *fakeExecutor) Execute(_ context.Context, _, _, stdin string) (*piston.ExecutionResponse, error) {
	f.stdins = append(f.stdins, stdin)
	if f.next >= len(f.calls) {
		return nil, errors.New("unexpected execution call")
	}
	call := f.calls[f.next]
	f.next++
	return call.response, call.err
}

func intPtr(v int) *int { return &v }

func runResponse(stdout, stderr string, code *int) *piston.ExecutionResponse {
	return &piston.ExecutionResponse{
		Language: "python",
		Version:  "3.10.0",
		Run:      &piston.RunResult{Stdout: stdout, Stderr: stderr, Code: code},
	}
}

func pendingSubmission(id string) *model.Submission {
	return &model.Submission{
		ID:            id,
		LearnerID:     "learner-1",
		QuestID:       "quest-1",
		SubmittedCode: "print(1)",
		Language:      "python",
		Status:        model.StatusPending,
	}
}

func job(id string, testCases ...queue.TestCasePayload) *queue.GradingJob {
	return &queue.GradingJob{
		SubmissionID:  id,
		QuestID:       "quest-1",
		SubmittedCode: "print(1)",
		Language:      "python",
		TestCases:     testCases,
	}
}

func TestProcessJobSingleRunSuccess(t *testing.T) {
	store := &fakeStore{submission: pendingSubmission("sub-1")}
	executor := &fakeExecutor{calls: []executorCall{
		{response: runResponse("hello\n", "", intPtr(0))},
	}}
	grader := NewGrader(store, executor)

	grader.ProcessJob(context.Background(), job("sub-1"))

	if len(store.updates) != 2 {
		t.Fatalf("expected 2 persisted updates, got %d", len(store.updates))
	}
	if store.updates[0].Status != model.StatusGrading {
		t.Errorf("first update should be GRADING, got %s", store.updates[0].Status)
	}
	if store.updates[0].Score != nil {
		t.Error("GRADING update should clear score")
	}

	final := store.updates[1]
	if final.Status != model.StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", final.Status)
	}
	if !final.IsSuccess {
		t.Error("expected success")
	}
	if final.Score != nil {
		t.Error("single-run mode must leave score nil")
	}
	if final.Stdout != "hello\n" {
		t.Errorf("unexpected stdout: %q", final.Stdout)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(final.ResultsJSON), &doc); err != nil {
		t.Fatalf("resultsJson not valid JSON: %v", err)
	}
	if doc["language"] != "python" {
		t.Errorf("results document should be the raw execution response, got %v", doc)
	}
}

func TestProcessJobSingleRunNonZeroExit(t *testing.T) {
	store := &fakeStore{submission: pendingSubmission("sub-1")}
	executor := &fakeExecutor{calls: []executorCall{
		{response: runResponse("", "traceback", intPtr(1))},
	}}
	NewGrader(store, executor).ProcessJob(context.Background(), job("sub-1"))

	final := store.updates[len(store.updates)-1]
	if final.Status != model.StatusError {
		t.Errorf("expected ERROR, got %s", final.Status)
	}
	if final.IsSuccess {
		t.Error("expected failure")
	}
	if final.Stderr != "traceback" {
		t.Errorf("unexpected stderr: %q", final.Stderr)
	}
}

// 单次运行模式要求退出码恰好为 0，缺失退出码不算成功
func TestProcessJobSingleRunNilExitCode(t *testing.T) {
	store := &fakeStore{submission: pendingSubmission("sub-1")}
	executor := &fakeExecutor{calls: []executorCall{
		{response: runResponse("done", "", nil)},
	}}
	NewGrader(store, executor).ProcessJob(context.Background(), job("sub-1"))

	final := store.updates[len(store.updates)-1]
	if final.Status != model.StatusError || final.IsSuccess {
		t.Errorf("nil exit code must not pass single-run mode: status=%s success=%v", final.Status, final.IsSuccess)
	}
}

func TestProcessJobSuiteScoring(t *testing.T) {
	store := &fakeStore{submission: pendingSubmission("sub-1")}
	executor := &fakeExecutor{calls: []executorCall{
		{response: runResponse("3\n", "", intPtr(0))},
		{response: runResponse("4\n", "", intPtr(0))},
	}}
	grader := NewGrader(store, executor)

	grader.ProcessJob(context.Background(), job("sub-1",
		queue.TestCasePayload{Description: "sum 1", Input: "1 2", ExpectedOutput: "3"},
		queue.TestCasePayload{Description: "sum 2", Input: "2 2", ExpectedOutput: "5"},
	))

	if executor.stdins[0] != "1 2" || executor.stdins[1] != "2 2" {
		t.Errorf("test case inputs must be passed as stdin in order, got %v", executor.stdins)
	}

	final := store.updates[len(store.updates)-1]
	if final.Status != model.StatusCompleted {
		t.Errorf("partial credit is not an error state, got %s", final.Status)
	}
	if final.IsSuccess {
		t.Error("success must require all cases passing")
	}
	if final.Score == nil || *final.Score != 50.0 {
		t.Fatalf("expected score 50.0, got %v", final.Score)
	}
	if final.Stdout != "" || final.Stderr != "" {
		t.Error("suite mode clears submission-level stdout/stderr")
	}

	var summary TestSuiteSummary
	if err := json.Unmarshal([]byte(final.ResultsJSON), &summary); err != nil {
		t.Fatalf("resultsJson not valid JSON: %v", err)
	}
	if summary.Passed != 1 || summary.Total != 2 || summary.Score != 50.0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if len(summary.Results) != 2 {
		t.Fatalf("expected 2 result entries, got %d", len(summary.Results))
	}
	if !summary.Results[0].Passed || summary.Results[1].Passed {
		t.Errorf("expected passed=[true,false], got [%v,%v]", summary.Results[0].Passed, summary.Results[1].Passed)
	}
	if summary.Results[1].ActualOutput != "4" {
		t.Errorf("actual output should be normalized, got %q", summary.Results[1].ActualOutput)
	}
}

func TestProcessJobSuiteAllPassing(t *testing.T) {
	store := &fakeStore{submission: pendingSubmission("sub-1")}
	executor := &fakeExecutor{calls: []executorCall{
		{response: runResponse("a", "", intPtr(0))},
		{response: runResponse("b", "", intPtr(0))},
		{response: runResponse("c", "", intPtr(0))},
	}}
	NewGrader(store, executor).ProcessJob(context.Background(), job("sub-1",
		queue.TestCasePayload{Input: "1", ExpectedOutput: "a"},
		queue.TestCasePayload{Input: "2", ExpectedOutput: "b"},
		queue.TestCasePayload{Input: "3", ExpectedOutput: "c"},
	))

	final := store.updates[len(store.updates)-1]
	if !final.IsSuccess {
		t.Error("all cases passing must set success")
	}
	if final.Score == nil || *final.Score != 100.0 {
		t.Errorf("expected score 100, got %v", final.Score)
	}
}

func TestProcessJobWhitespaceTolerance(t *testing.T) {
	store := &fakeStore{submission: pendingSubmission("sub-1")}
	executor := &fakeExecutor{calls: []executorCall{
		{response: runResponse("1\r\n2\r\n3\r\n", "", intPtr(0))},
	}}
	NewGrader(store, executor).ProcessJob(context.Background(), job("sub-1",
		queue.TestCasePayload{Input: "", ExpectedOutput: "1\n2\n3"},
	))

	final := store.updates[len(store.updates)-1]
	if final.Score == nil || *final.Score != 100.0 {
		t.Errorf("CRLF and trailing newline must be tolerated, score=%v", final.Score)
	}
}

func TestProcessJobNilExitCodeLeniencyInSuite(t *testing.T) {
	store := &fakeStore{submission: pendingSubmission("sub-1")}
	executor := &fakeExecutor{calls: []executorCall{
		{response: runResponse("ok", "", nil)},
		{response: runResponse("ok", "", intPtr(1))},
	}}
	NewGrader(store, executor).ProcessJob(context.Background(), job("sub-1",
		queue.TestCasePayload{Input: "a", ExpectedOutput: "ok"},
		queue.TestCasePayload{Input: "b", ExpectedOutput: "ok"},
	))

	final := store.updates[len(store.updates)-1]
	var summary TestSuiteSummary
	if err := json.Unmarshal([]byte(final.ResultsJSON), &summary); err != nil {
		t.Fatalf("resultsJson not valid JSON: %v", err)
	}
	if !summary.Results[0].Passed {
		t.Error("nil exit code with matching output must pass")
	}
	if summary.Results[1].Passed {
		t.Error("non-zero exit code must fail even with matching output")
	}
}

func TestProcessJobPerCaseIsolation(t *testing.T) {
	store := &fakeStore{submission: pendingSubmission("sub-1")}
	executor := &fakeExecutor{calls: []executorCall{
		{response: runResponse("a", "", intPtr(0))},
		{err: errors.New("sandbox hiccup")},
		{response: runResponse("c", "", intPtr(0))},
	}}
	NewGrader(store, executor).ProcessJob(context.Background(), job("sub-1",
		queue.TestCasePayload{Description: "one", Input: "1", ExpectedOutput: "a"},
		queue.TestCasePayload{Description: "two", Input: "2", ExpectedOutput: "b"},
		queue.TestCasePayload{Description: "three", Input: "3", ExpectedOutput: "c"},
	))

	final := store.updates[len(store.updates)-1]
	if final.Status != model.StatusCompleted {
		t.Fatalf("submission must still reach a terminal state, got %s", final.Status)
	}

	var summary TestSuiteSummary
	if err := json.Unmarshal([]byte(final.ResultsJSON), &summary); err != nil {
		t.Fatalf("resultsJson not valid JSON: %v", err)
	}
	if len(summary.Results) != 3 {
		t.Fatalf("one failing case must not abort the suite, got %d results", len(summary.Results))
	}
	failed := summary.Results[1]
	if failed.Passed {
		t.Error("failing case must be marked failed")
	}
	if failed.Error == nil || *failed.Error != "sandbox hiccup" {
		t.Errorf("error message must be captured, got %v", failed.Error)
	}
	if failed.Description != "two" || failed.Input != "2" || failed.ExpectedOutput != "b" {
		t.Errorf("case identity must be preserved on failure: %+v", failed)
	}
	if failed.ActualOutput != "" {
		t.Errorf("failed execution has no actual output, got %q", failed.ActualOutput)
	}
	if summary.Passed != 2 || summary.Total != 3 {
		t.Errorf("unexpected counts: %+v", summary)
	}
}

func TestProcessJobSubmissionNotFound(t *testing.T) {
	store := &fakeStore{}
	executor := &fakeExecutor{}
	NewGrader(store, executor).ProcessJob(context.Background(), job("missing"))

	if len(store.updates) != 0 {
		t.Errorf("missing submission must be dropped without writes, got %d updates", len(store.updates))
	}
	if len(executor.stdins) != 0 {
		t.Error("missing submission must not reach the sandbox")
	}
}

func TestProcessJobExecutorFailure(t *testing.T) {
	store := &fakeStore{submission: pendingSubmission("sub-1")}
	executor := &fakeExecutor{calls: []executorCall{
		{err: errors.New("connection refused")},
	}}
	NewGrader(store, executor).ProcessJob(context.Background(), job("sub-1"))

	final := store.updates[len(store.updates)-1]
	if final.Status != model.StatusError {
		t.Errorf("expected ERROR, got %s", final.Status)
	}
	if final.IsSuccess {
		t.Error("expected failure")
	}
	if final.Score == nil || *final.Score != 0.0 {
		t.Errorf("expected score 0, got %v", final.Score)
	}
	if final.Stderr != "connection refused" {
		t.Errorf("stderr must carry the failure message, got %q", final.Stderr)
	}
	if final.ResultsJSON != "{}" {
		t.Errorf("results document must reset to empty object, got %q", final.ResultsJSON)
	}
}

// 重复投递会重判并覆盖原终态，结果幂等
func TestProcessJobRedeliveryOverwritesTerminalState(t *testing.T) {
	score := 100.0
	submission := pendingSubmission("sub-1")
	submission.Status = model.StatusCompleted
	submission.IsSuccess = true
	submission.Score = &score
	submission.ResultsJSON = `{"passed":1,"total":1}`

	store := &fakeStore{submission: submission}
	executor := &fakeExecutor{calls: []executorCall{
		{response: runResponse("wrong", "", intPtr(0))},
	}}
	NewGrader(store, executor).ProcessJob(context.Background(), job("sub-1",
		queue.TestCasePayload{Input: "1", ExpectedOutput: "right"},
	))

	final := store.updates[len(store.updates)-1]
	if final.Status != model.StatusCompleted || final.IsSuccess {
		t.Errorf("redelivery must re-grade and overwrite: status=%s success=%v", final.Status, final.IsSuccess)
	}
	if final.Score == nil || *final.Score != 0.0 {
		t.Errorf("expected overwritten score 0, got %v", final.Score)
	}
}

func TestIsCleanExit(t *testing.T) {
	if !isCleanExit(nil) {
		t.Error("nil exit code is a clean exit")
	}
	if !isCleanExit(intPtr(0)) {
		t.Error("zero exit code is a clean exit")
	}
	if isCleanExit(intPtr(1)) {
		t.Error("non-zero exit code is not a clean exit")
	}
}

func TestNormalizeOutput(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1\r\n2\r\n3\r\n", "1\n2\n3"},
		{"  hello  ", "hello"},
		{"\n\nresult\n", "result"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := normalizeOutput(tc.in); got != tc.want {
			t.Errorf("normalizeOutput(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
