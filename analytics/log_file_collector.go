package analytics

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ WorkflowDataCollector = new(LogFileDataCollector)

// LogFileDataCollector appends one JSON line per record to a file.
type LogFileDataCollector struct {
	log *zap.Logger
}

func NewLogFileDataCollector(fileName string) (*LogFileDataCollector, error) {
	sink, _, err := zap.Open(fileName)
	if err != nil {
		return nil, err
	}
	encConf := zap.NewProductionEncoderConfig()
	encConf.EncodeTime = zapcore.ISO8601TimeEncoder
	encConf.MessageKey = "record"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encConf), sink, zapcore.InfoLevel)
	return &LogFileDataCollector{log: zap.New(core)}, nil
}

func (c *LogFileDataCollector) RecordNodeSuccess(flowId string, runId string, node string, sequence int64, fields []string) {
	c.log.Info("node_success",
		zap.String("flow", flowId),
		zap.String("run", runId),
		zap.String("node", node),
		zap.Int64("sequence", sequence),
		zap.Strings("fields", fields))
}

func (c *LogFileDataCollector) RecordNodeFailure(flowId string, runId string, node string, sequence int64, reason string) {
	c.log.Info("node_failure",
		zap.String("flow", flowId),
		zap.String("run", runId),
		zap.String("node", node),
		zap.Int64("sequence", sequence),
		zap.String("reason", reason))
}

func (c *LogFileDataCollector) RecordRunOutcome(flowId string, runId string, status string, reason string) {
	c.log.Info("run_outcome",
		zap.String("flow", flowId),
		zap.String("run", runId),
		zap.String("status", status),
		zap.String("reason", reason))
}

func (c *LogFileDataCollector) Close() error {
	return c.log.Sync()
}
