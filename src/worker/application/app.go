package application

import (
	"os"
	"time"

	"github.com/apex/log"
	"github.com/rabbitmq/amqp091-go"
	"github.com/retunelab/voicefixer-worker/src/shared/lib/rabbitmq"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/application/executor"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/application/jobs/job_router"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/application/jobs/restore"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/application/worker"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/lib/cerr"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/lib/mount"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/convert"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/denoise"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/enhance"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/mix"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/separate"
)

const separationModel = "hdemucs_mmi"
const cudaDevice = "cuda"

func must[T any](t T, err error) T {
	if err != nil {
		panic(err)
	}

	return t
}

type App struct {
	worker  worker.QueueWorker
	jobRoot string

	mountGracePeriod time.Duration
}

type Config struct {
	RabbitMQURL             string
	RabbitMQQueueName       string
	RabbitMQResultQueueName string

	FFmpegBinPath     string
	DemucsBinPath     string
	DemucsDevice      string
	VoicefixerBinPath string

	JobRootPath      string
	MountGracePeriod time.Duration
}

func NewApp(config Config) App {
	consumerConn := must(amqp091.Dial(config.RabbitMQURL))

	return App{
		worker:           newWorker(config, consumerConn),
		jobRoot:          config.JobRootPath,
		mountGracePeriod: config.MountGracePeriod,
	}
}

func (a *App) Start() error {
	if err := mount.WaitAvailable(a.jobRoot, a.mountGracePeriod); err != nil {
		log.WithField("job_root", a.jobRoot).
			WithError(err).Warn("Job root is not available, jobs may fail")
	}

	err := a.worker.Start()
	if err != nil {
		return cerr.Wrap(err).Error("Failed to start worker")
	}

	return nil
}

func (a *App) Stop() {
	a.worker.Stop()
}

func newWorker(config Config, consumerConn *amqp091.Connection) worker.QueueWorker {
	publisher := newResultPublisher(config)

	queueWorker := must(worker.NewQueueWorkerFromConnection(
		consumerConn,
		config.RabbitMQQueueName,
		newJobRouter(config, publisher)))

	return queueWorker
}

func newResultPublisher(config Config) *rabbitmq.QueuePublisher {
	return must(rabbitmq.NewQueuePublisher(config.RabbitMQURL, config.RabbitMQResultQueueName))
}

func newJobRouter(config Config, publisher rabbitmq.Publisher) job_router.JobRouter {
	return job_router.NewJobRouter(newRestoreJobHandler(config, publisher))
}

func newRestoreJobHandler(config Config, publisher rabbitmq.Publisher) restore.JobHandler {
	if err := os.MkdirAll(config.JobRootPath, os.ModePerm); err != nil {
		panic(err)
	}

	return restore.NewJobHandler(newPipeline(config), publisher, config.JobRootPath)
}

func newPipeline(config Config) pipeline.Pipeline {
	binExecutor := executor.BinaryFileExecutor{}

	converter := convert.NewConverter(config.FFmpegBinPath, binExecutor)

	preRestorer := must(denoise.NewRestorer(
		config.FFmpegBinPath,
		denoise.VinylProfile(denoise.AggressiveIntensity),
		binExecutor))

	postRestorer := must(denoise.NewRestorer(
		config.FFmpegBinPath,
		denoise.VinylProfile(denoise.LightIntensity),
		binExecutor))

	splitter := must(separate.NewSplitter(
		config.DemucsBinPath,
		separationModel,
		config.DemucsDevice,
		separate.VintageMode,
		binExecutor))

	enhancer := enhance.NewEnhancer(
		config.VoicefixerBinPath,
		config.DemucsDevice == cudaDevice,
		binExecutor)

	mixer := must(mix.NewEngine(converter, config.JobRootPath))

	return pipeline.NewPipeline(
		converter,
		preRestorer,
		postRestorer,
		splitter,
		enhancer,
		mixer)
}
