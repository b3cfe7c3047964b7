package queue

// GradingJob 判题队列消息：提交的不可变输入快照，外加入队时已解析好的用例列表，
// 消费端无需再回查内容服务
type GradingJob struct {
	SubmissionID  string            `json:"submissionId"`
	QuestID       string            `json:"questId"`
	SubmittedCode string            `json:"submittedCode"`
	Language      string            `json:"language"`
	TestCases     []TestCasePayload `json:"testCases"`
}

// TestCasePayload 单个判题用例。hidden 只控制学员可见性，判题行为一致，故不入队
type TestCasePayload struct {
	Description    string `json:"description"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}
