package job_router

import (
	"github.com/rabbitmq/amqp091-go"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/application/jobs/restore"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/lib/cerr"
)

// JobRouter dispatches queue messages to the handler for their type.
type JobRouter struct {
	restoreHandler restore.RestoreJobHandler
}

func NewJobRouter(restoreHandler restore.RestoreJobHandler) JobRouter {
	return JobRouter{
		restoreHandler: restoreHandler,
	}
}

func (j JobRouter) HandleMessage(message amqp091.Delivery) error {
	switch message.Type {
	case restore.JobType:
		if _, err := j.restoreHandler.HandleRestoreJob(message.Body); err != nil {
			return cerr.Wrap(err).Error(restore.ErrorMessage)
		}

		return nil

	default:
		return cerr.Field("message_type", message.Type).
			Error("Unrecognized message type")
	}
}
