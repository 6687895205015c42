// @title Chunks Server API
// @version 1.0
// @description 场景对话与英语块生成服务
// @host localhost:8080
// @BasePath /api
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"chunks-server-go/internal/bootstrap"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: $CHUNKS_CONFIG or ./config.yaml)")
	dotEnv := flag.Bool("dotenv", true, "load ./.env before reading configuration")
	flag.Parse()

	fmt.Printf("[%s] [INFO] [引导] 开始启动 chunks-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background(), bootstrap.Options{
		ConfigPath: *configPath,
		DotEnv:     *dotEnv,
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "chunks-server failed: %v\n", err)
		os.Exit(1)
	}
}
