// @title 判题服务 API
// @version 1.0
// @description 异步代码判题流水线：受理提交、调用沙箱执行、落库评分结果。

// @host localhost:8084
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-User-Id

package main

import (
	"log"

	"grading_backend/internal/app"
	"grading_backend/internal/config"
	"grading_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	application.Run()
}
