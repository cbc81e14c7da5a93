package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"github.com/Eventual-Inc/modelfn/pkg/config"
	"github.com/Eventual-Inc/modelfn/pkg/inference"
	"github.com/Eventual-Inc/modelfn/pkg/logging"
)

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
	logrus.WithField("artifact", cfg.ModelPath()).Info("Starting inference handler")
	lambda.Start(handler.Handle)
}
