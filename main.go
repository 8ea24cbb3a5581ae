package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohitkumar/govflow/agent"
	"github.com/mohitkumar/govflow/analytics"
	"github.com/mohitkumar/govflow/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().Int("http-port", 8080, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", "memory", "implementation of underline storage: memory, redis or postgres")
	cmd.Flags().String("encoder-decoder", "JSON", "encoder decoder used to serialize data: JSON or MSGPACK")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("redis-password", "", "redis password")
	cmd.Flags().String("namespace", "govflow", "namespace used in storage")
	cmd.Flags().Int("redis-pool-size", 0, "redis connection pool size, 0 for the client default")
	cmd.Flags().Int("partitions", 16, "number of run partitions in redis")
	cmd.Flags().String("postgres-url", "", "postgres connection url")
	cmd.Flags().Int32("postgres-max-conns", 0, "postgres pool size, 0 for the driver default")
	cmd.Flags().String("governance-impl", "stub", "governance systems: stub (in process) or http")
	cmd.Flags().String("governance-url", "", "base url of the governance systems")
	cmd.Flags().Duration("governance-timeout", 0, "per attempt timeout of governance calls")
	cmd.Flags().Uint64("governance-retries", 3, "retries of a governance call")
	cmd.Flags().Duration("governance-backoff-initial", 0, "initial retry backoff of governance calls")
	cmd.Flags().Duration("governance-backoff-max", 0, "max retry backoff of governance calls")
	cmd.Flags().Int("max-remediation-attempts", 3, "remediation attempts before a run escalates")
	cmd.Flags().StringSlice("sensitive-classifications", nil, "data classifications treated as sensitive")
	cmd.Flags().StringToString("metric-ceilings", nil, "metric path to highest acceptable value, e.g. toxicity=0.07")
	cmd.Flags().StringToString("script-rules", nil, "rule name to javascript expression over the metric snapshot $")
	cmd.Flags().Duration("recovery-interval", 0, "interval of the sweep for runs left running")
	cmd.Flags().Int("recovery-concurrency", 2, "runs recovered concurrently")
	cmd.Flags().String("analytics-collector", string(analytics.NOOP_DATA_COLLECTOR), "analytics collector type")
	cmd.Flags().String("analytics-file", "", "file the log file analytics collector writes to")
	cmd.Flags().String("log-level", "info", "log level")
	cmd.Flags().Bool("log-development", false, "human readable development logging")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	viper.SetConfigFile(configFile)

	if err = viper.ReadInConfig(); err != nil {
		// it's ok if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configFile != "" {
			return err
		}
	}

	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.EncoderDecoderType = config.EncoderDecoderType(strings.ToUpper(viper.GetString("encoder-decoder")))
	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Password = viper.GetString("redis-password")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.RedisConfig.PoolSize = viper.GetInt("redis-pool-size")
	c.cfg.RedisConfig.PartitionCount = viper.GetInt("partitions")
	c.cfg.PostgresConfig.URL = viper.GetString("postgres-url")
	c.cfg.PostgresConfig.MaxConns = viper.GetInt32("postgres-max-conns")
	c.cfg.GovernanceType = config.GovernanceType(viper.GetString("governance-impl"))
	c.cfg.ToolConfig.BaseURL = viper.GetString("governance-url")
	c.cfg.ToolConfig.Timeout = viper.GetDuration("governance-timeout")
	c.cfg.ToolConfig.MaxRetries = viper.GetUint64("governance-retries")
	c.cfg.ToolConfig.InitialInterval = viper.GetDuration("governance-backoff-initial")
	c.cfg.ToolConfig.MaxInterval = viper.GetDuration("governance-backoff-max")
	c.cfg.EngineConfig.MaxRemediationAttempts = viper.GetInt("max-remediation-attempts")
	c.cfg.EngineConfig.SensitiveClassifications = viper.GetStringSlice("sensitive-classifications")
	c.cfg.EngineConfig.ScriptRules = viper.GetStringMapString("script-rules")
	ceilings, err := parseCeilings(viper.GetStringMapString("metric-ceilings"))
	if err != nil {
		return err
	}
	c.cfg.EngineConfig.MetricCeilings = ceilings
	c.cfg.RecoveryConfig.Interval = viper.GetDuration("recovery-interval")
	c.cfg.RecoveryConfig.Concurrency = viper.GetInt("recovery-concurrency")
	c.cfg.AnalyticsConfig.CollectorType = analytics.DataCollectorType(viper.GetString("analytics-collector"))
	c.cfg.AnalyticsConfig.FileName = viper.GetString("analytics-file")
	c.cfg.LoggerConfig.Level = viper.GetString("log-level")
	c.cfg.LoggerConfig.Development = viper.GetBool("log-development")
	return c.cfg.Validate()
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	var err error
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		return err
	}
	err = agent.Start()
	if err != nil {
		return err
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-agent.Done():
	}
	return agent.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "govflow",
		Short:   "resumable governance approval workflow engine",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
