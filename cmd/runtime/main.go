// Command runtime emulates the Lambda invoke API in front of the inference handler so the
// function can be exercised locally with the same event payloads Lambda would deliver.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Eventual-Inc/modelfn/pkg/config"
	"github.com/Eventual-Inc/modelfn/pkg/inference"
	"github.com/Eventual-Inc/modelfn/pkg/logging"
)

const invocationsPath = "/2015-03-31/functions/{function}/invocations"

// EventHandler is the part of inference.Handler the emulator needs
type EventHandler interface {
	Handle(ctx context.Context, event inference.Event) (events.APIGatewayProxyResponse, error)
}

type invokeError struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorType    string `json:"errorType"`
}

type runtimeServer struct {
	function string
	handler  EventHandler
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("unable to write response: %v", err)
	}
}

func writeFunctionError(w http.ResponseWriter, errorType string, err error) {
	w.Header().Set("X-Amz-Function-Error", "Unhandled")
	writeJSON(w, http.StatusOK, invokeError{ErrorMessage: err.Error(), ErrorType: errorType})
}

func (s *runtimeServer) invoke(w http.ResponseWriter, req *http.Request) {
	function := mux.Vars(req)["function"]
	if function != s.function && function != "function" {
		writeJSON(w, http.StatusNotFound, invokeError{
			ErrorMessage: fmt.Sprintf("Function not found: %s", function),
			ErrorType:    "ResourceNotFoundException",
		})
		return
	}

	raw, err := io.ReadAll(req.Body)
	if err != nil {
		writeFunctionError(w, "Runtime.ReadError", err)
		return
	}
	var event inference.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		writeFunctionError(w, "Runtime.UnmarshalError", err)
		return
	}

	start := time.Now()
	resp, err := s.handler.Handle(req.Context(), event)
	if err != nil {
		writeFunctionError(w, "Runtime.HandlerError", err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"function":   function,
		"status":     resp.StatusCode,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("Invocation finished")
	writeJSON(w, http.StatusOK, resp)
}

func newRouter(s *runtimeServer) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(invocationsPath, s.invoke).Methods("POST")
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

	ctx := context.Background()
	handler, err := inference.New(ctx, cfg)
	if err != nil {
		logrus.Fatal(err)
	}
	if err := handler.Warm(ctx); err != nil {
		logrus.Fatal(err)
	}

	function := os.Getenv("AWS_LAMBDA_FUNCTION_NAME")
	if function == "" {
		function = "modelfn"
	}
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: newRouter(&runtimeServer{function: function, handler: handler}),
	}
	logrus.WithFields(logrus.Fields{"addr": cfg.ListenAddr, "function": function}).Info("Emulating Lambda invoke API")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.Fatal(err)
	}
}
