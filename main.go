// @title CoderEdu 考试锁定网关 API
// @version 1.0
// @description 测验作答会话、倒计时与防作弊监控。

// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"coder_edu_lockdown/internal/app"
	"coder_edu_lockdown/internal/config"
	"coder_edu_lockdown/pkg/logger"
	"flag"
	"log"
	"path/filepath"
)

func main() {
	configDir := flag.String("config", "configs", "配置文件目录（包含 config.yaml）")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg, filepath.Join(*configDir, "config.yaml"))
	defer logger.Log.Sync()

	application.Run()
}
