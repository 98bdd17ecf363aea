package envvar

import (
	"fmt"
	"os"
)

const (
	ENVIRONMENT                = "ENVIRONMENT"
	RABBITMQ_URL               = "RABBITMQ_URL"
	RABBITMQ_QUEUE_NAME        = "RABBITMQ_QUEUE_NAME"
	RABBITMQ_RESULT_QUEUE_NAME = "RABBITMQ_RESULT_QUEUE_NAME"
	FFMPEG_BIN_PATH            = "FFMPEG_BIN_PATH"
	DEMUCS_BIN_PATH            = "DEMUCS_BIN_PATH"
	DEMUCS_DEVICE              = "DEMUCS_DEVICE"
	VOICEFIXER_BIN_PATH        = "VOICEFIXER_BIN_PATH"
	JOB_ROOT_PATH              = "JOB_ROOT_PATH"
)

func MustGet(key string) string {
	val, isSet := os.LookupEnv(key)
	if !isSet {
		panic(fmt.Sprintf("No env variable found for key %s", key))
	}

	if val == "" {
		panic(fmt.Sprintf("Env variable is empty for key %s", key))
	}

	return val
}
