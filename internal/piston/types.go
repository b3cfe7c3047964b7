package piston

// ExecutionRequest Piston /api/v2/execute 请求体
type ExecutionRequest struct {
	Language           string      `json:"language"`
	Version            string      `json:"version"`
	Files              []FileEntry `json:"files"`
	Stdin              string      `json:"stdin"`
	Args               []string    `json:"args"`
	CompileTimeout     int         `json:"compile_timeout"`
	RunTimeout         int         `json:"run_timeout"`
	CompileMemoryLimit int         `json:"compile_memory_limit"`
	RunMemoryLimit     int         `json:"run_memory_limit"`
}

type FileEntry struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ExecutionResponse 沙箱返回结果，未知字段忽略
type ExecutionResponse struct {
	Language string     `json:"language,omitempty"`
	Version  string     `json:"version,omitempty"`
	Run      *RunResult `json:"run,omitempty"`
	Compile  *RunResult `json:"compile,omitempty"`
}

// RunResult 单个阶段(编译或运行)的输出
// Code 为空表示运行时未报告退出码，Signal 在异常终止时出现
type RunResult struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Code   *int    `json:"code"`
	Output string  `json:"output,omitempty"`
	Signal *string `json:"signal"`
}
