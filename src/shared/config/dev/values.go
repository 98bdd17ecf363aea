package dev

import "time"

// RabbitMQ
const (
	RabbitMQHost            = "amqp://localhost:5672"
	RabbitMQQueueName       = "restore-jobs-dev"
	RabbitMQResultQueueName = "restore-results-dev"
)

// Collaborator binaries, assumed to be on PATH in development
const (
	FFmpegBinPath     = "ffmpeg"
	DemucsBinPath     = "demucs"
	DemucsDevice      = "cpu"
	VoicefixerBinPath = "voicefixer"
)

// Job artifacts
const (
	JobRootPath      = "./wd/jobs"
	MountGracePeriod = 5 * time.Second
)
