package consumer

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/varunjain2021/guido-1-sub002/pkg/redis_client"
)

const defaultStatsAddress = ":3333"

type RedisConsumer struct {
	QueueName string

	NumberConsumers int
	BatchSize       int

	Timeout time.Duration

	// StatsAddress is where the queue stats and health endpoints listen. Empty
	// disables the stats server.
	StatsAddress string

	Consumer rmq.BatchConsumer

	queue rmq.Queue
}

func (c *RedisConsumer) Setup() error {
	if err := c.startConsumers(); err != nil {
		return err
	}

	if c.StatsAddress != "" {
		go c.startStatsServer()
	}

	return nil
}

// Stop stops fetching new deliveries and waits for running batches to finish.
func (c *RedisConsumer) Stop() {
	if c.queue == nil {
		return
	}
	<-c.queue.StopConsuming()
}

func (c *RedisConsumer) startConsumers() error {
	if redis_client.QueueConnection == nil {
		return errors.New("redis queue connection not set up")
	}

	log.Info().Str("queue", c.QueueName).Int("consumers", c.NumberConsumers).Msg("Starting consumers")

	queue, err := redis_client.QueueConnection.OpenQueue(c.QueueName)
	if err != nil {
		return err
	}
	if err := queue.StartConsuming(int64(c.NumberConsumers*c.BatchSize), 1*time.Second); err != nil {
		return err
	}

	for i := 0; i < c.NumberConsumers; i++ {
		if err := c.startQueueConsumer(queue, i); err != nil {
			return err
		}
	}

	c.queue = queue

	return nil
}

func (c *RedisConsumer) startQueueConsumer(queue rmq.Queue, id int) error {
	log.Debug().Msgf("Starting %s consumer %d", c.QueueName, id)

	_, err := queue.AddBatchConsumer(fmt.Sprintf("%s-%d", c.QueueName, id), int64(c.BatchSize), c.Timeout, c.Consumer)
	return err
}

func (c *RedisConsumer) startStatsServer() {
	endpoint := fmt.Sprintf("/%s/stats", c.QueueName)

	mux := http.NewServeMux()
	mux.Handle(endpoint, NewStatsHandler(redis_client.QueueConnection))
	mux.Handle("/health", NewHealthHandler())

	log.Info().Msgf("Stats server listening on http://localhost%s%s", c.StatsAddress, endpoint)
	if err := http.ListenAndServe(c.StatsAddress, mux); err != nil {
		log.Error().Err(err).Msg("Stats server stopped")
	}
}
