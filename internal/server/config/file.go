package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dmitrijs2005/lostfound/internal/flagx"
	"github.com/dmitrijs2005/lostfound/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the config file. Durations accept
// "30m"-style strings or integer nanoseconds. Zero values leave the
// corresponding Config field untouched.
type FileConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http" toml:"endpoint_addr_http"`
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc" toml:"endpoint_addr_grpc"`
	DatabaseDSN                 string         `json:"database_dsn" yaml:"database_dsn" toml:"database_dsn"`
	SecretKey                   string         `json:"secret_key" yaml:"secret_key" toml:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration" toml:"access_token_validity_duration"`
	StoreCallTimeout            timex.Duration `json:"store_call_timeout" yaml:"store_call_timeout" toml:"store_call_timeout"`
	MaxUploadBytes              int64          `json:"max_upload_bytes" yaml:"max_upload_bytes" toml:"max_upload_bytes"`
	LogLevel                    string         `json:"log_level" yaml:"log_level" toml:"log_level"`

	BlobBackend    string `json:"blob_backend" yaml:"blob_backend" toml:"blob_backend"`
	BlobRoot       string `json:"blob_root" yaml:"blob_root" toml:"blob_root"`
	S3RootUser     string `json:"s3_root_user" yaml:"s3_root_user" toml:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password" yaml:"s3_root_password" toml:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket" yaml:"s3_bucket" toml:"s3_bucket"`
	S3Region       string `json:"s3_region" yaml:"s3_region" toml:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint" yaml:"s3_base_endpoint" toml:"s3_base_endpoint"`

	LockBackend   string `json:"lock_backend" yaml:"lock_backend" toml:"lock_backend"`
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword string `json:"redis_password" yaml:"redis_password" toml:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db" toml:"redis_db"`

	AMQPURL           string         `json:"amqp_url" yaml:"amqp_url" toml:"amqp_url"`
	OrphanGracePeriod timex.Duration `json:"orphan_grace_period" yaml:"orphan_grace_period" toml:"orphan_grace_period"`
}

// parseFile overlays values from the file named by -c/-config. The format is
// picked by extension: .json, .yaml/.yml or .toml. Unreadable or invalid
// files panic, as a bad config must stop startup.
func parseFile(config *Config) {
	if err := loadFile(config, flagx.ConfigFileFlag()); err != nil {
		panic(err)
	}
}

// loadFile overlays the file at path onto config. An empty path is a no-op.
func loadFile(config *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	fc, err := decodeFile(path, data)
	if err != nil {
		return err
	}

	fc.apply(config)
	return nil
}

func decodeFile(path string, data []byte) (*FileConfig, error) {
	fc := &FileConfig{}

	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, fc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	case ".toml":
		_, err = toml.Decode(string(data), fc)
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return fc, nil
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.EndpointAddrHTTP, fc.EndpointAddrHTTP)
	setString(&c.EndpointAddrGRPC, fc.EndpointAddrGRPC)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	setString(&c.SecretKey, fc.SecretKey)
	if fc.AccessTokenValidityDuration.Duration > 0 {
		c.AccessTokenValidityDuration = fc.AccessTokenValidityDuration.Duration
	}
	if fc.StoreCallTimeout.Duration > 0 {
		c.StoreCallTimeout = fc.StoreCallTimeout.Duration
	}
	if fc.MaxUploadBytes > 0 {
		c.MaxUploadBytes = fc.MaxUploadBytes
	}
	setString(&c.LogLevel, fc.LogLevel)

	setString(&c.BlobBackend, fc.BlobBackend)
	setString(&c.BlobRoot, fc.BlobRoot)
	setString(&c.S3RootUser, fc.S3RootUser)
	setString(&c.S3RootPassword, fc.S3RootPassword)
	setString(&c.S3Bucket, fc.S3Bucket)
	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3BaseEndpoint, fc.S3BaseEndpoint)

	setString(&c.LockBackend, fc.LockBackend)
	setString(&c.RedisAddr, fc.RedisAddr)
	setString(&c.RedisPassword, fc.RedisPassword)
	if fc.RedisDB > 0 {
		c.RedisDB = fc.RedisDB
	}

	setString(&c.AMQPURL, fc.AMQPURL)
	if fc.OrphanGracePeriod.Duration > 0 {
		c.OrphanGracePeriod = fc.OrphanGracePeriod.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
