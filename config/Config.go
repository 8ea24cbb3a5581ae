package config

import (
	"fmt"
	"time"

	"github.com/mohitkumar/govflow/analytics"
	"github.com/mohitkumar/govflow/logger"
)

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"
const STORAGE_TYPE_POSTGRES StorageType = "postgres"

type EncoderDecoderType string

const JSON_ENCODER_DECODER EncoderDecoderType = "JSON"
const MSGPACK_ENCODER_DECODER EncoderDecoderType = "MSGPACK"

type GovernanceType string

const GOVERNANCE_STUB GovernanceType = "stub"
const GOVERNANCE_HTTP GovernanceType = "http"

type Config struct {
	RedisConfig        RedisStorageConfig
	PostgresConfig     PostgresStorageConfig
	HttpPort           int
	StorageType        StorageType
	EncoderDecoderType EncoderDecoderType
	GovernanceType     GovernanceType
	EngineConfig       EngineConfig
	ToolConfig         ToolConfig
	RecoveryConfig     RecoveryConfig
	AnalyticsConfig    analytics.DataCollectorConfig
	LoggerConfig       logger.Config
}

// EngineConfig holds the workflow settings handed to the flow and its nodes.
type EngineConfig struct {
	MaxRemediationAttempts   int
	SensitiveClassifications []string
	MetricCeilings           map[string]float64
	ScriptRules              map[string]string
}

// ToolConfig configures the HTTP client of the governance systems.
type ToolConfig struct {
	BaseURL         string
	Timeout         time.Duration
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type RecoveryConfig struct {
	Interval    time.Duration
	Concurrency int
}

type RedisStorageConfig struct {
	Addrs          []string
	Namespace      string
	Password       string
	PoolSize       int
	PartitionCount int
}

type PostgresStorageConfig struct {
	URL      string
	MaxConns int32
}

func (c Config) Validate() error {
	switch c.StorageType {
	case STORAGE_TYPE_INMEM, STORAGE_TYPE_REDIS, STORAGE_TYPE_POSTGRES:
	default:
		return fmt.Errorf("unknown storage implementation %q", c.StorageType)
	}
	switch c.EncoderDecoderType {
	case JSON_ENCODER_DECODER, MSGPACK_ENCODER_DECODER:
	default:
		return fmt.Errorf("unknown encoder decoder %q", c.EncoderDecoderType)
	}
	switch c.GovernanceType {
	case GOVERNANCE_STUB:
	case GOVERNANCE_HTTP:
		if c.ToolConfig.BaseURL == "" {
			return fmt.Errorf("governance base url is required for the http client")
		}
	default:
		return fmt.Errorf("unknown governance implementation %q", c.GovernanceType)
	}
	if c.StorageType == STORAGE_TYPE_POSTGRES && c.PostgresConfig.URL == "" {
		return fmt.Errorf("postgres url is required for postgres storage")
	}
	if c.EngineConfig.MaxRemediationAttempts < 0 {
		return fmt.Errorf("max remediation attempts can not be negative")
	}
	return nil
}
