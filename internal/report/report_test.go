package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/0xmhha/fundme-harness/internal/collector"
	"github.com/0xmhha/fundme-harness/internal/harness"
)

func sampleReport() *Report {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	to := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

	return &Report{
		Network: "sepolia",
		ChainID: 11155111,
		Variant: "UNIT",
		Suite: &harness.Report{
			Suite: "FundMe",
			Start: start,
			End:   start.Add(3 * time.Second),
			Results: []*harness.Result{
				{Name: "FundMe fund Fails if you don't send enough ETH", Status: harness.StatusPassed, Duration: time.Second},
				{Name: "FundMe withdraw withdraws ETH from a single funder", Status: harness.StatusFailed, Duration: time.Second, Err: errors.New("balances do not reconcile")},
			},
		},
		Transactions: []*collector.TxInfo{
			{
				Hash:    common.HexToHash("0x01"),
				From:    common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
				To:      &to,
				Case:    "FundMe withdraw withdraws ETH from a single funder",
				Method:  "withdraw",
				Nonce:   3,
				Status:  collector.TxConfirmSuccess,
				GasUsed: 39000,
				GasCost: big.NewInt(78000000000000),
			},
		},
		Summary: &collector.Summary{
			TotalSent:      1,
			TotalConfirmed: 1,
			TotalGasUsed:   39000,
			TotalGasCost:   big.NewInt(78000000000000),
		},
	}
}

func TestPrint(t *testing.T) {
	out := &bytes.Buffer{}
	sampleReport().Print(out)

	s := out.String()
	assert.Contains(t, s, "FundMe on sepolia (chain 11155111, UNIT)")
	assert.Contains(t, s, "FundMe fund Fails if you don't send enough ETH")
	assert.Contains(t, s, "FAIL")
	assert.Contains(t, s, "withdraw")
	assert.Contains(t, s, "0.000078000")
	assert.Contains(t, s, "Passed:          1")
	assert.Contains(t, s, "Failed:          1")
}

func TestPrint_Skipped(t *testing.T) {
	r := &Report{
		Network: "hardhat",
		Suite:   &harness.Report{Suite: "FundMe", Skipped: true, SkipReason: "hardhat is a development chain"},
	}
	out := &bytes.Buffer{}
	r.Print(out)
	assert.Contains(t, out.String(), "[SKIP] suite not registered: hardhat is a development chain")
}

func TestFormatEther(t *testing.T) {
	assert.Equal(t, "0", FormatEther(nil))
	assert.Equal(t, "1.000000000", FormatEther(big.NewInt(1e18)))
	assert.Equal(t, "0.050000000", FormatEther(big.NewInt(5e16)))
}

func TestExporter_JSON(t *testing.T) {
	dir := t.TempDir()
	path, err := NewExporter(dir).Export(sampleReport(), FormatJSON)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "FundMe", gjson.GetBytes(data, "suite").String())
	assert.Equal(t, int64(11155111), gjson.GetBytes(data, "chain_id").Int())
	assert.Equal(t, int64(1), gjson.GetBytes(data, "passed").Int())
	assert.Equal(t, "FAIL", gjson.GetBytes(data, "cases.1.result").String())
	assert.Equal(t, "balances do not reconcile", gjson.GetBytes(data, "cases.1.error").String())
	assert.Equal(t, "withdraw", gjson.GetBytes(data, "transactions.0.method").String())
	assert.Equal(t, "78000000000000", gjson.GetBytes(data, "gas.total_cost").String())
	assert.Equal(t, "2024-01-02T03:04:05Z", gjson.GetBytes(data, "start_time").String())
}

func TestExporter_CSV(t *testing.T) {
	dir := t.TempDir()
	path, err := NewExporter(dir).Export(sampleReport(), FormatCSV)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "cases_"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Case", "Result", "Duration", "Error"}, records[0])
	assert.Equal(t, "PASS", records[1][1])

	txFiles, err := filepath.Glob(filepath.Join(dir, "transactions_*.csv"))
	require.NoError(t, err)
	assert.Len(t, txFiles, 1)
}

func TestExporter_AllAndUnsupported(t *testing.T) {
	e := NewExporter(filepath.Join(t.TempDir(), "nested"))

	files, err := e.ExportAll(sampleReport())
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = e.Export(sampleReport(), ExportFormat("xml"))
	assert.Error(t, err)
}

func TestNew_FromLedger(t *testing.T) {
	suite := &harness.Report{Suite: "FundMe"}
	r := New("simnet", 1337, "UNIT", suite, collector.New(nil, nil))
	assert.Empty(t, r.Transactions)
	require.NotNil(t, r.Summary)
	assert.Zero(t, r.Summary.TotalSent)
}
