package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "LOSTFOUND_"

// envFile is loaded before reading variables. Already-set variables win.
var envFile = ".env"

// parseEnv overlays LOSTFOUND_* environment variables. A missing .env file
// is not an error; malformed numbers and durations panic.
func parseEnv(config *Config) {
	_ = godotenv.Load(envFile)

	envString(&config.EndpointAddrHTTP, "HTTP_ADDR")
	envString(&config.EndpointAddrGRPC, "GRPC_ADDR")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.SecretKey, "SECRET_KEY")
	envDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_TTL")
	envDuration(&config.StoreCallTimeout, "STORE_TIMEOUT")
	envInt64(&config.MaxUploadBytes, "MAX_UPLOAD_BYTES")
	envString(&config.LogLevel, "LOG_LEVEL")

	envString(&config.BlobBackend, "BLOB_BACKEND")
	envString(&config.BlobRoot, "BLOB_ROOT")
	envString(&config.S3RootUser, "S3_ROOT_USER")
	envString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&config.S3Bucket, "S3_BUCKET")
	envString(&config.S3Region, "S3_REGION")
	envString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")

	envString(&config.LockBackend, "LOCK_BACKEND")
	envString(&config.RedisAddr, "REDIS_ADDR")
	envString(&config.RedisPassword, "REDIS_PASSWORD")

	db := int64(config.RedisDB)
	envInt64(&db, "REDIS_DB")
	config.RedisDB = int(db)

	envString(&config.AMQPURL, "AMQP_URL")
	envDuration(&config.OrphanGracePeriod, "ORPHAN_GRACE")
}

func envString(dst *string, name string) {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok {
		*dst = v
	}
}

func envDuration(dst *time.Duration, name string) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
	}
	*dst = d
}

func envInt64(dst *int64, name string) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		panic(fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
	}
	*dst = n
}
