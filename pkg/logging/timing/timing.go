package timing

import (
	"time"

	"github.com/sirupsen/logrus"
)

func Timeit(log logrus.FieldLogger, name string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		log.WithField("elapsed_ms", float64(elapsed.Microseconds())/1000.0).
			Debugf("Timeit: %s execution time %s", name, elapsed)
	}
}
