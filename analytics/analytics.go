package analytics

import "sync"

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
}

type DataCollectorType string

const NOOP_DATA_COLLECTOR DataCollectorType = "NOOP_DATA_COLLECTOR"
const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"

// WorkflowDataCollector receives one record per executed node and one per run
// outcome.
type WorkflowDataCollector interface {
	RecordNodeSuccess(flowId string, runId string, node string, sequence int64, fields []string)
	RecordNodeFailure(flowId string, runId string, node string, sequence int64, reason string)
	RecordRunOutcome(flowId string, runId string, status string, reason string)
	Close() error
}

var (
	mu                sync.RWMutex
	workflowCollector WorkflowDataCollector = noopCollector{}
)

func InitDataCollector(config DataCollectorConfig) error {
	var c WorkflowDataCollector = noopCollector{}
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		lc, err := NewLogFileDataCollector(config.FileName)
		if err != nil {
			return err
		}
		c = lc
	}
	SetDataCollector(c)
	return nil
}

func SetDataCollector(c WorkflowDataCollector) {
	mu.Lock()
	defer mu.Unlock()
	workflowCollector = c
}

func collector() WorkflowDataCollector {
	mu.RLock()
	defer mu.RUnlock()
	return workflowCollector
}

func RecordNodeSuccess(flowId string, runId string, node string, sequence int64, fields []string) {
	collector().RecordNodeSuccess(flowId, runId, node, sequence, fields)
}

func RecordNodeFailure(flowId string, runId string, node string, sequence int64, reason string) {
	collector().RecordNodeFailure(flowId, runId, node, sequence, reason)
}

func RecordRunOutcome(flowId string, runId string, status string, reason string) {
	collector().RecordRunOutcome(flowId, runId, status, reason)
}

func Close() error {
	return collector().Close()
}

type noopCollector struct{}

func (noopCollector) RecordNodeSuccess(string, string, string, int64, []string) {}
func (noopCollector) RecordNodeFailure(string, string, string, int64, string)   {}
func (noopCollector) RecordRunOutcome(string, string, string, string)           {}
func (noopCollector) Close() error                                              { return nil }
