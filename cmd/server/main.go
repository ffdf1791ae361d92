package main

import (
	"github.com/meetpulse/backend/internal/server"
	"github.com/meetpulse/backend/internal/util"
	"github.com/meetpulse/backend/pkg/logger"
	"github.com/meetpulse/backend/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
