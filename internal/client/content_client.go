package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"grading_backend/internal/queue"
	"grading_backend/pkg/logger"

	"go.uber.org/zap"
)

// ContentClient 从内容服务按关卡拉取判题用例。
// 内容服务不可达或关卡不存在时降级为空列表（走单次运行模式），不向上抛错
type ContentClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewContentClient(baseURL string) *ContentClient {
	return &ContentClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
	}
}

// testCaseDto 内容服务内部接口返回的用例结构
type testCaseDto struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	Hidden         bool   `json:"hidden"`
}

// FetchTestCases 返回关卡的有序用例列表，任何失败都降级为空
func (c *ContentClient) FetchTestCases(ctx context.Context, questID string) []queue.TestCasePayload {
	url := fmt.Sprintf("%s/api/internal/quests/%s/test-cases", c.baseURL, questID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.Log.Warn("Failed to build test case request",
			zap.String("questId", questID),
			zap.Error(err))
		return []queue.TestCasePayload{}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Log.Warn("Failed to fetch test cases",
			zap.String("questId", questID),
			zap.Error(err))
		return []queue.TestCasePayload{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Log.Warn("Content service returned non-200 for test cases",
			zap.String("questId", questID),
			zap.Int("status", resp.StatusCode))
		return []queue.TestCasePayload{}
	}

	var dtos []testCaseDto
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		logger.Log.Warn("Malformed test case response",
			zap.String("questId", questID),
			zap.Error(err))
		return []queue.TestCasePayload{}
	}

	// hidden 用例照常参与判题，只是不回显给学员
	payloads := make([]queue.TestCasePayload, 0, len(dtos))
	for _, dto := range dtos {
		payloads = append(payloads, queue.TestCasePayload{
			Description:    dto.Description,
			Input:          dto.Input,
			ExpectedOutput: dto.ExpectedOutput,
		})
	}
	return payloads
}
