package analytics

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogFileDataCollector(t *testing.T) {
	file := filepath.Join(t.TempDir(), "analytics.log")
	require.NoError(t, InitDataCollector(DataCollectorConfig{FileName: file, CollectorType: LOG_FILE_DATA_COLLECTOR}))
	defer SetDataCollector(noopCollector{})

	RecordNodeSuccess("governance_approval", "run-1", "classify", 2, []string{"RiskLevel"})
	RecordNodeFailure("governance_approval", "run-1", "fetch_policy", 3, "contract")
	RecordRunOutcome("governance_approval", "run-1", "FAILED", "contract")
	require.NoError(t, Close())

	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()
	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.Len(t, records, 3)
	require.Equal(t, "node_success", records[0]["record"])
	require.Equal(t, "classify", records[0]["node"])
	require.Equal(t, "contract", records[1]["reason"])
	require.Equal(t, "FAILED", records[2]["status"])
}

func TestNoopByDefault(t *testing.T) {
	require.NoError(t, InitDataCollector(DataCollectorConfig{}))
	RecordNodeSuccess("f", "r", "n", 1, nil)
	require.NoError(t, Close())
}
