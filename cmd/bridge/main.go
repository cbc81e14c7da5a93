// Command bridge serves native model documents over the bridge protocol, reading the input
// frame as an arrow IPC stream on stdin. It lets a native model run out of process the same
// way a pickled estimator does behind a Python bridge.
//
//	MODELFN_MODEL_FORMAT=bridge MODELFN_BRIDGE_COMMAND=/opt/bin/bridge
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Eventual-Inc/modelfn/pkg/logging"
	"github.com/Eventual-Inc/modelfn/pkg/model"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: bridge <artifact>")
		os.Exit(2)
	}
	// logging.Setup writes to stderr, stdout carries the response
	if err := logging.Setup(os.Getenv("MODELFN_LOG_LEVEL"), "json"); err != nil {
		logrus.Fatal(err)
	}
	artifact := os.Args[len(os.Args)-1]
	logrus.WithField("artifact", artifact).Debug("Serving bridge request")
	os.Exit(model.ServeBridge(context.Background(), model.NativeLoader{}, artifact, os.Stdin, os.Stdout))
}
