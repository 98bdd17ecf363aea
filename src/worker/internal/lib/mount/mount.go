package mount

import (
	"os"
	"time"

	"github.com/apex/log"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/lib/cerr"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/pipeerrors"
)

// A stat against a dead NFS mount can hang indefinitely, so every
// probe runs with its own timeout.
const probeTimeout = 5 * time.Second
const pollInterval = 2 * time.Second

// WaitAvailable probes path until it is reachable or the grace period
// runs out. Callers treat unavailability as a warning, not a fatal
// condition - jobs referencing the mount will fail individually.
func WaitAvailable(path string, gracePeriod time.Duration) error {
	deadline := time.Now().Add(gracePeriod)

	for {
		if available(path) {
			log.WithField("path", path).Info("Mount is available")
			return nil
		}

		if time.Now().After(deadline) {
			return pipeerrors.MarkMountUnavailable(
				cerr.Field("path", path).
					Field("grace_period", gracePeriod.String()).
					Error("Mount did not become available within the grace period"))
		}

		log.WithField("path", path).Info("Mount not available yet, retrying")
		time.Sleep(pollInterval)
	}
}

func available(path string) bool {
	statResult := make(chan error, 1)

	go func() {
		_, err := os.Stat(path)
		statResult <- err
	}()

	select {
	case err := <-statResult:
		return err == nil
	case <-time.After(probeTimeout):
		return false
	}
}
