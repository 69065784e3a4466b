package redis_client

import (
	"context"
	"strconv"

	"github.com/adjust/rmq/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/varunjain2021/guido-1-sub002/pkg/util"
)

var Client *redis.Client
var QueueConnection rmq.Connection

const defaultConnectionAddress = "localhost:6379"
const defaultConnectionPassword = ""
const defaultDatabase = 0

const queueConnectionName = "guido"

func Connect() error {
	address := defaultConnectionAddress
	password := defaultConnectionPassword
	database := defaultDatabase

	env := util.GetEnvironmentVariables()

	if env["GUIDO_REDIS_ADDRESS"] != "" {
		address = env["GUIDO_REDIS_ADDRESS"]
	}

	if env["GUIDO_REDIS_PASSWORD"] != "" {
		password = env["GUIDO_REDIS_PASSWORD"]
	}

	if env["GUIDO_REDIS_DATABASE"] != "" {
		if n, err := strconv.Atoi(env["GUIDO_REDIS_DATABASE"]); err == nil {
			database = n
		} else {
			return err
		}
	}

	return Use(redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       database,
	}))
}

// Use installs client as the package client and opens the queue connection on it.
func Use(client *redis.Client) error {
	err := client.Ping(context.Background()).Err()
	if err != nil {
		return err
	}

	queueConnection, err := rmq.OpenConnectionWithRedisClient(queueConnectionName, client, queueErrors())
	if err != nil {
		return err
	}

	Client = client
	QueueConnection = queueConnection

	return nil
}

func queueErrors() chan<- error {
	errChan := make(chan error, 10)

	go func() {
		for err := range errChan {
			log.Error().Err(err).Msg("Redis queue error")
		}
	}()

	return errChan
}
