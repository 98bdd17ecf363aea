package main

import (
	"time"

	"github.com/retunelab/voicefixer-worker/src/shared/config/dev"
	"github.com/retunelab/voicefixer-worker/src/shared/config/envvar"
	"github.com/retunelab/voicefixer-worker/src/shared/lib/env"
	"github.com/retunelab/voicefixer-worker/src/worker/application"
)

const prodMountGracePeriod = 30 * time.Second

func main() {
	var appConfig application.Config

	switch env.Get() {
	case env.Production:
		appConfig = application.Config{
			RabbitMQURL:             envvar.MustGet(envvar.RABBITMQ_URL),
			RabbitMQQueueName:       envvar.MustGet(envvar.RABBITMQ_QUEUE_NAME),
			RabbitMQResultQueueName: envvar.MustGet(envvar.RABBITMQ_RESULT_QUEUE_NAME),
			FFmpegBinPath:           envvar.MustGet(envvar.FFMPEG_BIN_PATH),
			DemucsBinPath:           envvar.MustGet(envvar.DEMUCS_BIN_PATH),
			DemucsDevice:            envvar.MustGet(envvar.DEMUCS_DEVICE),
			VoicefixerBinPath:       envvar.MustGet(envvar.VOICEFIXER_BIN_PATH),
			JobRootPath:             envvar.MustGet(envvar.JOB_ROOT_PATH),
			MountGracePeriod:        prodMountGracePeriod,
		}

	case env.Development:
		appConfig = application.Config{
			RabbitMQURL:             dev.RabbitMQHost,
			RabbitMQQueueName:       dev.RabbitMQQueueName,
			RabbitMQResultQueueName: dev.RabbitMQResultQueueName,
			FFmpegBinPath:           dev.FFmpegBinPath,
			DemucsBinPath:           dev.DemucsBinPath,
			DemucsDevice:            dev.DemucsDevice,
			VoicefixerBinPath:       dev.VoicefixerBinPath,
			JobRootPath:             dev.JobRootPath,
			MountGracePeriod:        dev.MountGracePeriod,
		}

	default:
		panic("Unexpected environment")
	}

	app := application.NewApp(appConfig)
	if err := app.Start(); err != nil {
		panic(err)
	}
}
