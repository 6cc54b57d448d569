package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// KeyRegistry remembers idempotency keys for transports that cannot check them.
type KeyRegistry interface {
	// Reserve records key and reports false if it was already recorded.
	Reserve(ctx context.Context, key string) (bool, error)
	// Release forgets key so the task can be enqueued again.
	Release(ctx context.Context, key string) error
}

var _ KeyRegistry = (*RedisKeyRegistry)(nil)

// RedisKeyRegistry keeps idempotency keys in redis for the retention period.
type RedisKeyRegistry struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisKeyRegistry(client *redis.Client, retention time.Duration) *RedisKeyRegistry {
	return &RedisKeyRegistry{client: client, retention: retention}
}

func (r *RedisKeyRegistry) Reserve(ctx context.Context, key string) (bool, error) {
	return r.client.SetNX(ctx, registryKey(key), time.Now().Unix(), r.retention).Result()
}

func (r *RedisKeyRegistry) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, registryKey(key)).Err()
}

func registryKey(key string) string {
	return "task:key:" + key
}

var _ Queue = (*KafkaQueue)(nil)

// KafkaQueue publishes tasks to a kafka topic. Delivery is at least once, keyed
// tasks are filtered through the key registry before they are produced.
type KafkaQueue struct {
	producer *kafka.Producer
	topic    string
	keys     KeyRegistry
	// send delivers a task row to the topic.
	send func(ctx context.Context, row *model.Task) error
}

func NewKafkaQueue(brokers, topic string, keys KeyRegistry) (*KafkaQueue, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"enable.idempotence": true,
		"acks":               "all",
	})
	if err != nil {
		return nil, err
	}

	k := &KafkaQueue{producer: producer, topic: topic, keys: keys}
	k.send = k.produce

	return k, nil
}

func (k *KafkaQueue) Enqueue(ctx context.Context, task Task) error {
	return k.send(ctx, &model.Task{
		ID:      uuid.New().String(),
		Tenant:  task.Tenant,
		Job:     task.Job,
		Payload: task.Payload,
		Status:  model.TaskPending,
		RunAt:   time.Now(),
	})
}

func (k *KafkaQueue) EnqueueIfAbsent(ctx context.Context, task Task) (bool, error) {
	if task.Key == "" {
		return false, ErrMissingKey
	}

	ok, err := k.keys.Reserve(ctx, task.Key)
	if err != nil {
		return false, err
	}
	if !ok {
		logrus.Debugf("task %s with key %s already exists", task.Job, task.Key)
		return false, nil
	}

	if err := k.Enqueue(ctx, task); err != nil {
		// nothing reached the topic, a retry has to be able to reserve the key again
		if rerr := k.keys.Release(context.WithoutCancel(ctx), task.Key); rerr != nil {
			logrus.Errorf("failed to release task key %s: %v", task.Key, rerr)
		}
		return false, err
	}

	return true, nil
}

func (k *KafkaQueue) produce(ctx context.Context, row *model.Task) error {
	value, err := json.Marshal(row)
	if err != nil {
		return err
	}

	delivery := make(chan kafka.Event, 1)
	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
		Key:            []byte(row.Tenant + ":" + row.Job),
		Value:          value,
	}, delivery)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-delivery:
		if msg, ok := e.(*kafka.Message); ok && msg.TopicPartition.Error != nil {
			return msg.TopicPartition.Error
		}
	}

	return nil
}

func (k *KafkaQueue) Close() {
	k.producer.Flush(5000)
	k.producer.Close()
}

// KafkaConsumer reads tasks from the topic and runs them with the executor.
// A failed task is produced again with one more attempt until maxAttempts.
type KafkaConsumer struct {
	consumer    *kafka.Consumer
	topic       string
	queue       *KafkaQueue
	executor    Executor
	maxAttempts int
}

func NewKafkaConsumer(brokers, group, topic string, queue *KafkaQueue, executor Executor, maxAttempts int) (*KafkaConsumer, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"group.id":           group,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, err
	}

	return &KafkaConsumer{
		consumer:    consumer,
		topic:       topic,
		queue:       queue,
		executor:    executor,
		maxAttempts: maxAttempts,
	}, nil
}

// Run consumes until ctx is cancelled.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	if err := c.consumer.SubscribeTopics([]string{c.topic}, nil); err != nil {
		return err
	}
	defer c.consumer.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := c.consumer.ReadMessage(500 * time.Millisecond)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			logrus.Errorf("kafka read failed: %v", err)
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			// not committed, the message is redelivered after a rebalance or restart
			logrus.Errorf("kafka task failed: %v", err)
			continue
		}

		if _, err := c.consumer.CommitMessage(msg); err != nil {
			logrus.Errorf("kafka commit failed: %v", err)
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, msg *kafka.Message) error {
	task := &model.Task{}
	if err := json.Unmarshal(msg.Value, task); err != nil {
		// a message that cannot be decoded will never succeed
		logrus.Errorf("dropping malformed task at offset %v: %v", msg.TopicPartition.Offset, err)
		return nil
	}

	err := c.executor.Execute(ctx, task)
	if err == nil {
		return nil
	}

	task.Attempts++
	task.LastError = err.Error()
	if task.Attempts >= c.maxAttempts {
		logrus.WithFields(logrus.Fields{"job": task.Job, "task": task.ID}).Errorf("task failed after %d attempts: %v", task.Attempts, err)
		return nil
	}

	if err := c.queue.send(ctx, task); err != nil {
		return fmt.Errorf("requeue %s: %w", task.ID, err)
	}

	return nil
}
