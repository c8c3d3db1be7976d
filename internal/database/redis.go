package database

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"

	"github.com/finledger/backend/internal/logging"
)

// InitRedis initializes Redis client with config. Redis only backs the
// event mirror and QR references, so a failed connection is not fatal.
func InitRedis() *redis.Client {
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	addr := viper.GetString("redis.host") + ":" + viper.GetString("redis.port")
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logging.For("database").WithError(err).Warn("redis connection failed, continuing without redis")
		return nil
	}

	logging.For("database").Info("redis connection established")
	return rdb
}
