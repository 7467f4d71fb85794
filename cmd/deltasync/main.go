package main

import (
	"os"

	cmd "github.com/MrSnakeDoc/deltasync/internal"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/middleware"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if !middleware.IsLogged(err) {
			logger.LogError("%v", err)
		}
		os.Exit(1)
	}
}
