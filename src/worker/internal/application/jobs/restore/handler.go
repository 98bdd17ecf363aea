package restore

import (
	"context"
	"encoding/json"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/retunelab/voicefixer-worker/src/shared/lib/rabbitmq"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/application/jobs/job_message"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/lib/cerr"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline"
)

const JobType string = "restore_song"
const ResultType string = "restore_result"
const ErrorMessage string = "Failed to restore the song audio"

type RestoreJobHandler interface {
	HandleRestoreJob(message []byte) (job_message.RestoreResult, error)
}

type Pipeline interface {
	Run(ctx context.Context, inputPath string, jobRoot string, jobID string) (pipeline.Result, error)
}

func NewJobHandler(pipeline Pipeline, publisher rabbitmq.Publisher, jobRoot string) JobHandler {
	return JobHandler{
		pipeline:  pipeline,
		publisher: publisher,
		jobRoot:   jobRoot,
	}
}

type JobHandler struct {
	pipeline  Pipeline
	publisher rabbitmq.Publisher
	jobRoot   string
}

// HandleRestoreJob runs the whole restoration pipeline for one message.
// A result is published for every job that got as far as a job ID,
// whether the pipeline succeeded or failed; the pipeline error is still
// returned so the message gets nacked.
func (r JobHandler) HandleRestoreJob(message []byte) (job_message.RestoreResult, error) {
	params, err := unmarshalMessage(message)
	if err != nil {
		return job_message.RestoreResult{}, cerr.Wrap(err).Error("Failed to unmarshal message JSON")
	}

	jobID := uuid.NewString()

	errctx := cerr.Field("job_id", jobID).
		Field("file_path", params.FilePath).
		Field("original_name", params.OriginalName)

	log.WithFields(log.Fields{
		"job_id":        jobID,
		"file_path":     params.FilePath,
		"original_name": params.OriginalName,
	}).Info("Restoring song")

	result, runErr := r.pipeline.Run(context.Background(), params.FilePath, r.jobRoot, jobID)

	resultMsg := job_message.RestoreResult{
		JobID:  jobID,
		Status: job_message.StatusSuccess,
	}

	if runErr != nil {
		resultMsg.Status = job_message.StatusFailed
	} else {
		resultMsg.FinalPath = result.MasteredPath
		resultMsg.VocalsPath = result.VocalPath
	}

	if err := r.publishResult(resultMsg); err != nil {
		if runErr != nil {
			cerr.Log(errctx.Wrap(err).Error("Failed to publish the failure result"))
			return resultMsg, errctx.Wrap(runErr).Error(ErrorMessage)
		}

		return resultMsg, errctx.Wrap(err).Error("Failed to publish the success result")
	}

	if runErr != nil {
		return resultMsg, errctx.Wrap(runErr).Error(ErrorMessage)
	}

	return resultMsg, nil
}

func (r JobHandler) publishResult(result job_message.RestoreResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return cerr.Field("result", result).
			Wrap(err).Error("Failed to marshal result message")
	}

	msg := amqp091.Publishing{
		Type: ResultType,
		Body: body,
	}

	if err := r.publisher.Publish(msg); err != nil {
		return cerr.Field("result", result).
			Wrap(err).Error("Failed to publish result message")
	}

	return nil
}

func unmarshalMessage(message []byte) (job_message.RestoreRequest, error) {
	params := job_message.RestoreRequest{}
	err := json.Unmarshal(message, &params)
	if err != nil {
		return job_message.RestoreRequest{}, cerr.Wrap(err).Error("Failed to unmarshal message JSON")
	}

	errctx := cerr.Field("job_params", params)

	if params.FilePath == "" {
		return job_message.RestoreRequest{}, errctx.Error("Missing file path")
	}

	return params, nil
}
