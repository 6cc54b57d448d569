package app

import (
	"github.com/emrgen/wikinote/internal/blob"
	"github.com/emrgen/wikinote/internal/cache"
	"github.com/emrgen/wikinote/internal/compress"
	"github.com/emrgen/wikinote/internal/config"
	"github.com/emrgen/wikinote/internal/mail"
	"github.com/emrgen/wikinote/internal/queue"
	"github.com/sirupsen/logrus"
)

// FromConfig opens the database and the configured backends and wires the app.
func FromConfig(cfg *config.Config) (*App, error) {
	config.ConfigureLogging(cfg.App)

	db, err := config.GetDb(cfg)
	if err != nil {
		return nil, err
	}

	codec, err := compress.ByName(cfg.Revision.Compression)
	if err != nil {
		return nil, err
	}

	blobs, err := blob.NewFS(cfg.Blob.Dir)
	if err != nil {
		return nil, err
	}

	opts := Options{
		Blobs:       blobs,
		Codec:       codec,
		Domain:      cfg.App.Domain,
		From:        cfg.Mail.From,
		Batch:       cfg.Queue.Batch,
		Poll:        cfg.Queue.Poll,
		Backoff:     cfg.Queue.Backoff,
		MaxAttempts: cfg.Queue.MaxAttempts,
		Retention:   cfg.Queue.Retention,
		StuckAfter:  cfg.Queue.StuckAfter,
	}

	switch cfg.Mail.Sender {
	case config.MailSMTP:
		opts.Mail = mail.NewSMTPSender(cfg.Mail.SMTPAddr, cfg.Mail.SMTPUser, cfg.Mail.SMTPPass)
	default:
		opts.Mail = mail.NewLogSender()
	}

	var closers []func()
	needsRedis := cfg.Cache.Backend == config.BackendRedis || cfg.Queue.Backend == config.BackendKafka
	if needsRedis {
		client := cache.NewRedisClient(cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = client.Close() })

		if cfg.Cache.Backend == config.BackendRedis {
			opts.Cache = cache.NewRedisPageCache(client, cfg.Cache.TTL)
		}

		if cfg.Queue.Backend == config.BackendKafka {
			kq, err := queue.NewKafkaQueue(cfg.Queue.KafkaBrokers, cfg.Queue.KafkaTopic, queue.NewRedisKeyRegistry(client, cfg.Queue.Retention))
			if err != nil {
				return nil, err
			}
			closers = append(closers, kq.Close)
			opts.Queue = kq
		}
	}

	a, err := New(db, opts)
	if err != nil {
		return nil, err
	}
	a.closers = closers

	if kq, ok := opts.Queue.(*queue.KafkaQueue); ok {
		a.consumer, err = queue.NewKafkaConsumer(cfg.Queue.KafkaBrokers, cfg.Queue.KafkaGroup, cfg.Queue.KafkaTopic, kq, a.Worker, cfg.Queue.MaxAttempts)
		if err != nil {
			a.Close()
			return nil, err
		}
		logrus.Infof("tasks go through kafka topic %s", cfg.Queue.KafkaTopic)
	}

	return a, nil
}
