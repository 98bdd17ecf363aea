package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rabbitmq/amqp091-go"
	"github.com/retunelab/voicefixer-worker/src/shared/config/dev"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/application/jobs/job_message"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/application/jobs/restore"
)

func main() {
	if len(os.Args) < 2 {
		panic("Usage: sender <file_path>")
	}

	filePath := os.Args[1]

	conn, err := amqp091.Dial(dev.RabbitMQHost)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	rabbitChannel, err := conn.Channel()
	if err != nil {
		panic(err)
	}
	defer rabbitChannel.Close()

	queue, err := rabbitChannel.QueueDeclare(
		dev.RabbitMQQueueName,
		true,
		false,
		false,
		false,
		nil,
	)

	if err != nil {
		panic(err)
	}

	restoreParams := job_message.RestoreRequest{
		FilePath:     filePath,
		OriginalName: filepath.Base(filePath),
	}

	jobBody, err := json.Marshal(restoreParams)

	if err != nil {
		panic(err)
	}

	job := amqp091.Publishing{Type: restore.JobType, Body: jobBody}

	job.DeliveryMode = amqp091.Persistent
	job.ContentType = "application/json"

	err = rabbitChannel.Publish("", queue.Name, true, false, job)

	if err != nil {
		panic(err)
	}
}
