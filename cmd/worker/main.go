package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"safety-backend/internal/bootstrap"
	"safety-backend/internal/shared/config"
	"safety-backend/internal/shared/metrics"
	"safety-backend/internal/shared/telemetry"
	"safety-backend/internal/workerproc"
)

const (
	sqsRegion                 = "us-east-1"
	defaultVisibilitySeconds  = 1200
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
)

func main() {
	cfg := config.Load()

	queueURL := strings.TrimSpace(os.Getenv("WS_SQS_QUEUE_URL"))
	if queueURL == "" {
		log.Fatal("WS_SQS_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("WS_SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	concurrency := envInt("WS_WORKER_CONCURRENCY", defaultWorkerConcurrency)
	shutdownTimeout := time.Duration(envInt("WS_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(sqsRegion))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	// The worker drains the queue itself; leave the pipeline's queue client
	// unset so Process runs inline.
	cfg.SQSQueueURL = ""
	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	sem := make(chan struct{}, max(1, concurrency))
	var wg sync.WaitGroup

	log.Printf("worker started queue=%s concurrency=%d visibility=%ds", queueURL, concurrency, visibilitySeconds)

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			log.Printf("receive message: %v", err)
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			metrics.IncWorkerJobsReceived()
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(ctx, app, sqsClient, queueURL, m)
			}(msg)
		}
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight jobs")
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func handleMessage(ctx context.Context, app *bootstrap.App, client sqsAPI, queueURL string, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	if strings.TrimSpace(body) == "" {
		fields := baseFields(msg, "", "")
		fields["body_len"] = 0
		telemetry.Error("worker.job.empty_body", fields)
		if deleteMessage(ctx, client, queueURL, msg, "", "") {
			metrics.IncWorkerJobsDeletedUnrecoverable()
		}
		return
	}

	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		switch e := err.(type) {
		case workerproc.ErrDecode:
			fields := baseFields(msg, "", "")
			fields["body_len"] = meta.BodyLen
			fields["body_sha256"] = meta.BodySHA
			fields["error"] = e.Err.Error()
			telemetry.Error("worker.job.decode_failed", fields)
			if deleteMessage(ctx, client, queueURL, msg, "", "") {
				metrics.IncWorkerJobsDeletedUnrecoverable()
			}
			return
		case workerproc.ErrMissingJobID:
			fields := baseFields(msg, "", e.RequestID)
			fields["body_len"] = meta.BodyLen
			fields["body_sha256"] = meta.BodySHA
			telemetry.Error("worker.job.missing_id", fields)
			if deleteMessage(ctx, client, queueURL, msg, "", e.RequestID) {
				metrics.IncWorkerJobsDeletedUnrecoverable()
			}
			return
		default:
			fields := baseFields(msg, "", "")
			fields["body_len"] = meta.BodyLen
			if meta.BodySHA != "" {
				fields["body_sha256"] = meta.BodySHA
			}
			fields["error"] = err.Error()
			telemetry.Error("worker.job.decode_failed", fields)
			if deleteMessage(ctx, client, queueURL, msg, "", "") {
				metrics.IncWorkerJobsDeletedUnrecoverable()
			}
			return
		}
	}

	telemetry.Info("worker.job.received", baseFields(msg, decoded.JobID, decoded.RequestID))

	ctxWithParsed := workerproc.WithParsedMessage(ctx, decoded)
	if err := workerproc.HandleMessage(ctxWithParsed, app, body); err != nil {
		if procErr, ok := err.(workerproc.ErrProcess); ok {
			fields := baseFields(msg, procErr.JobID, procErr.RequestID)
			fields["error"] = procErr.Err.Error()
			telemetry.Error("worker.job.failed", fields)
			metrics.IncWorkerJobsFailed()
			return
		}

		fields := baseFields(msg, decoded.JobID, decoded.RequestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.job.failed", fields)
		metrics.IncWorkerJobsFailed()
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.JobID, decoded.RequestID) {
		telemetry.Info("worker.job.completed", baseFields(msg, decoded.JobID, decoded.RequestID))
		metrics.IncWorkerJobsCompleted()
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, jobID, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, jobID, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.job.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, jobID, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.job.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, jobID, requestID string) map[string]any {
	fields := map[string]any{
		"job_id":         jobID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
