package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"notion-sync-backend/internal/sync/domain"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// NewPubSubClient creates a Pub/Sub client for the given project
func NewPubSubClient(ctx context.Context, projectID, credentialsFile string) (*pubsub.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return client, nil
}

// PubSubDispatcher publishes sync jobs to a topic so any instance can run them
type PubSubDispatcher struct {
	topic *pubsub.Topic
}

// NewPubSubDispatcher creates a dispatcher publishing to topicName
func NewPubSubDispatcher(client *pubsub.Client, topicName string) *PubSubDispatcher {
	return &PubSubDispatcher{topic: client.Topic(topicName)}
}

// Submit publishes the job and waits for the server to accept it. The handle is the message id.
func (d *PubSubDispatcher) Submit(ctx context.Context, job domain.SyncJob) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to encode sync job: %w", err)
	}

	result := d.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"jobId": job.ID, "userId": job.UserID},
	})
	serverID, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to publish sync job: %w", err)
	}
	log.Printf("[PubSub] Published sync job %s (message %s)", job.ID, serverID)
	return serverID, nil
}

// Stop flushes pending publishes
func (d *PubSubDispatcher) Stop() {
	d.topic.Stop()
}

// PubSubConsumer receives sync jobs from the topic's subscription and runs them
type PubSubConsumer struct {
	client      *pubsub.Client
	topicName   string
	subName     string
	workerCount int
}

// NewPubSubConsumer creates a consumer on the "<topic>-sub" subscription
func NewPubSubConsumer(client *pubsub.Client, topicName string, workerCount int) *PubSubConsumer {
	if workerCount <= 0 {
		workerCount = 3
	}
	return &PubSubConsumer{
		client:      client,
		topicName:   topicName,
		subName:     topicName + "-sub", // Convention: topic-sub
		workerCount: workerCount,
	}
}

// Start blocks receiving messages until ctx is cancelled
func (c *PubSubConsumer) Start(ctx context.Context, handler JobHandler) {
	log.Printf("[PubSub] Starting sync consumer with topic: %s, subscription: %s", c.topicName, c.subName)

	sub := c.client.Subscription(c.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := c.client.Topic(c.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic %s does not exist, cannot create subscription", c.topicName)
			return
		}

		sub, err = c.client.CreateSubscription(ctx, c.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Minute, // maximum allowed; a run holds its message until done
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", c.subName)
	}

	sub.ReceiveSettings.MaxOutstandingMessages = c.workerCount

	log.Printf("[PubSub] Listening for sync jobs on subscription: %s", c.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		job, err := decodeJob(msg.Data)
		if err != nil {
			log.Printf("[PubSub] Dropping malformed sync job: %v", err)
			msg.Ack()
			return
		}
		handler(ctx, job)
		settle(ctx, msg)
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

type ackNacker interface {
	Ack()
	Nack()
}

// settle acks a handled message, or nacks it when shutdown interrupted the
// handler so Pub/Sub redelivers the job to another instance.
func settle(ctx context.Context, msg ackNacker) {
	if ctx.Err() != nil {
		msg.Nack()
		return
	}
	msg.Ack()
}

func decodeJob(data []byte) (domain.SyncJob, error) {
	var job domain.SyncJob
	if err := json.Unmarshal(data, &job); err != nil {
		return job, err
	}
	if job.ID == "" || job.UserID == "" {
		return job, errors.New("job is missing id or user")
	}
	return job, nil
}
