package piston

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"grading_backend/internal/config"
	"grading_backend/pkg/logger"

	"go.uber.org/zap"
)

const defaultLanguage = "python"

var languageAliases = map[string]string{
	"py":         "python",
	"py3":        "python",
	"python3":    "python",
	"python2":    "python",
	"javascript": "javascript",
	"js":         "javascript",
	"nodejs":     "javascript",
	"node":       "javascript",
}

// entryFilenames 各语言沙箱约定的入口文件名
var entryFilenames = map[string]string{
	"python":     "Main.py",
	"javascript": "main.js",
	"java":       "Main.java",
	"go":         "main.go",
	"cpp":        "main.cpp",
	"c++":        "main.cpp",
	"c":          "main.c",
}

// Client 封装对 Piston 沙箱执行接口的调用
type Client struct {
	httpClient *http.Client

	mu  sync.RWMutex
	cfg config.PistonConfig
}

func NewClient(cfg config.PistonConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.CompileTimeout+cfg.RunTimeout)*time.Millisecond + 10*time.Second,
		},
		cfg: cfg,
	}
}

// UpdateConfig 配置热更新时替换语言版本表和超时上限
func (c *Client) UpdateConfig(cfg config.PistonConfig) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

func (c *Client) snapshot() config.PistonConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// NormalizeLanguage 将调用方任意写法的语言标识归一为沙箱认识的规范键：
// 小写、分隔符统一为 -、截断首个 -/:/@ 之后的版本后缀，再查别名表。
// 空值回落到 python，未知语言原样透传
func NormalizeLanguage(language string) string {
	cleaned := strings.ToLower(strings.TrimSpace(language))
	if cleaned == "" {
		return defaultLanguage
	}
	cleaned = strings.ReplaceAll(cleaned, "_", "-")
	cleaned = strings.ReplaceAll(cleaned, " ", "-")

	for _, delimiter := range []string{"-", ":", "@"} {
		if idx := strings.Index(cleaned, delimiter); idx > 0 {
			cleaned = cleaned[:idx]
			break
		}
	}

	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return defaultLanguage
	}
	if canonical, ok := languageAliases[cleaned]; ok {
		return canonical
	}
	return cleaned
}

// EntryFilename 规范语言对应的入口文件名，未知语言退回通用文本文件
func EntryFilename(language string) string {
	if name, ok := entryFilenames[language]; ok {
		return name
	}
	return "main.txt"
}

// ResolveVersion 查语言版本表，未配置时使用 latest
func (c *Client) ResolveVersion(language string) string {
	cfg := c.snapshot()
	if version, ok := cfg.Languages[strings.ToLower(language)]; ok {
		return version
	}
	return "latest"
}

// Execute 执行一段代码：每次调用一次网络请求。
// 网络或协议错误向上传播；响应体无法解析时降级为空执行结果而不是报错
func (c *Client) Execute(ctx context.Context, language, sourceCode, stdin string) (*ExecutionResponse, error) {
	resolved := NormalizeLanguage(language)
	cfg := c.snapshot()

	request := ExecutionRequest{
		Language: resolved,
		Version:  c.ResolveVersion(resolved),
		Files: []FileEntry{
			{Name: EntryFilename(resolved), Content: sourceCode},
		},
		Stdin:              stdin,
		Args:               []string{},
		CompileTimeout:     cfg.CompileTimeout,
		RunTimeout:         cfg.RunTimeout,
		CompileMemoryLimit: cfg.CompileMemoryLimit,
		RunMemoryLimit:     cfg.RunMemoryLimit,
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal piston request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build piston request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call piston: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read piston response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("piston returned status %d: %s", resp.StatusCode, string(body))
	}

	var response ExecutionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		logger.Log.Warn("Unparseable piston response, treating as empty execution",
			zap.String("language", resolved),
			zap.Error(err))
		return &ExecutionResponse{}, nil
	}
	return &response, nil
}

// SerializeResponse 将沙箱原始响应序列化为结果文档，失败时退回空对象
func SerializeResponse(response *ExecutionResponse) string {
	if response == nil {
		return "{}"
	}
	data, err := json.Marshal(response)
	if err != nil {
		logger.Log.Warn("Unable to serialize piston response", zap.Error(err))
		return "{}"
	}
	return string(data)
}
