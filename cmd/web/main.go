package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	ginSwagger "github.com/swaggo/gin-swagger" // gin-swagger middleware
	"github.com/swaggo/gin-swagger/swaggerFiles"

	_ "github.com/Eventual-Inc/modelfn/cmd/web/docs"
	"github.com/Eventual-Inc/modelfn/pkg/config"
	"github.com/Eventual-Inc/modelfn/pkg/inference"
	"github.com/Eventual-Inc/modelfn/pkg/logging"
)

// @title           modelfn Web API
// @version         0.1
// @description     Serves model predictions over HTTP, backed by the same handler as the Lambda function

// @host      localhost:8080
// @BasePath  /api/v1

type webServer struct {
	handler *inference.Handler
}

func setupRouter(s *webServer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1")
	{
		invocations := v1.Group("/invocations")
		{
			invocations.POST("", s.InvocationsPostHandler)
		}
	}
	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.String(200, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return r
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logrus.Fatal(err)
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		logrus.Fatal(err)
	}
	handler, err := inference.New(context.Background(), cfg)
	if err != nil {
		logrus.Fatal(err)
	}
	r := setupRouter(&webServer{handler: handler})
	logrus.WithField("addr", cfg.ListenAddr).Info("Serving invocations")
	if err := r.Run(cfg.ListenAddr); err != nil {
		logrus.Fatal(err)
	}
}
