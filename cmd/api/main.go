// @title           PageIndex API
// @version         1.0
// @description     Indexes PDFs into a table-of-contents tree and answers questions by LLM reasoning over that tree. Ingest and query run as asynchronous jobs.
// @termsOfService  http://swagger.io/terms/

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/PageIndexAPI/internal/app"
	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/internal/domain/jobModel"
	"github.com/akolanti/PageIndexAPI/internal/handlers"
	"github.com/akolanti/PageIndexAPI/internal/job"
	"github.com/akolanti/PageIndexAPI/internal/mcpServer"
	"github.com/akolanti/PageIndexAPI/internal/middleware"
	"github.com/akolanti/PageIndexAPI/internal/server"
	"github.com/akolanti/PageIndexAPI/internal/worker"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
)

var version = "dev"

var (
	listenAddr        string
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {
	settings := config.Load()
	logger_i.Init(settings)
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", settings.ListenAddr, "server listen address")
	flag.Parse()

	if err := settings.Validate(); err != nil {
		logger.Error("invalid_configuration", "error", err)
		os.Exit(1)
	}

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	components, err := app.New(serviceContext, settings, app.Options{WithJobStore: true})
	if err != nil {
		logger.Error("startup_failed", "error", err)
		os.Exit(1)
	}

	//init buffered job channel
	jobChannel := make(chan jobModel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	logger.Info("Starting job service")
	jobService := job.InitJobService(job.ServiceConfig{
		JobChannel:        jobChannel,
		DispatcherChannel: dispatcherChannel,
		JobStore:          components.JobStore,
	})

	//init worker pool
	worker.NewPool(jobService, components.Service, stopWorkerChannel, &workerWaitGroup).Start()

	h := handlers.NewHandler(jobService, components.Service, handlers.Options{
		UploadDir:     settings.UploadsDir(),
		MaxUploadSize: config.MaxUploadSize,
	})
	router := server.NewRouter(h, middleware.New(settings), mcpServer.HTTPHandler(components.Service, version))

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	srv := server.CreateServer(listenAddr, router)
	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices: func() {
			closeExternalServices()
			if err := components.Close(); err != nil {
				logger.Error("close_services_failed", "error", err)
			}
		},
	}
	go srv.ShutDownHandler(shutdownParams)
	go srv.Run()

	<-stopExecution
	logger.Info("Server stopped")
}
