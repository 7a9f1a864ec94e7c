package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ExportFormat represents the export format
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// Exporter writes reports under an output directory
type Exporter struct {
	outputDir string
}

// NewExporter creates a new Exporter
func NewExporter(outputDir string) *Exporter {
	return &Exporter{
		outputDir: outputDir,
	}
}

// Export writes the report in format and returns the main file path
func (e *Exporter) Export(report *Report, format ExportFormat) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")

	switch format {
	case FormatJSON:
		return e.exportJSON(report, timestamp)
	case FormatCSV:
		return e.exportCSV(report, timestamp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// ExportAll exports the report in all formats
func (e *Exporter) ExportAll(report *Report) ([]string, error) {
	files := make([]string, 0, 2)
	for _, format := range []ExportFormat{FormatJSON, FormatCSV} {
		file, err := e.Export(report, format)
		if err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", format, err)
		}
		files = append(files, file)
	}
	return files, nil
}

// JSONReport is the JSON shape of a Report
type JSONReport struct {
	Suite        string            `json:"suite"`
	Network      string            `json:"network"`
	ChainID      uint64            `json:"chain_id"`
	Variant      string            `json:"variant"`
	StartTime    string            `json:"start_time"`
	EndTime      string            `json:"end_time"`
	Duration     string            `json:"duration"`
	Skipped      bool              `json:"skipped"`
	SkipReason   string            `json:"skip_reason,omitempty"`
	Passed       int               `json:"passed"`
	Failed       int               `json:"failed"`
	Cases        []JSONCase        `json:"cases"`
	Transactions []JSONTransaction `json:"transactions"`
	Gas          JSONGas           `json:"gas"`
}

// JSONCase is the JSON shape of a case result
type JSONCase struct {
	Name     string `json:"name"`
	Result   string `json:"result"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
	Panicked bool   `json:"panicked,omitempty"`
}

// JSONTransaction is the JSON shape of a ledger entry
type JSONTransaction struct {
	Hash    string `json:"hash"`
	Case    string `json:"case"`
	Method  string `json:"method,omitempty"`
	From    string `json:"from"`
	To      string `json:"to,omitempty"`
	Nonce   uint64 `json:"nonce"`
	Status  string `json:"status"`
	GasUsed uint64 `json:"gas_used"`
	GasCost string `json:"gas_cost"`
	Latency string `json:"latency"`
	Error   string `json:"error,omitempty"`
}

// JSONGas is the JSON shape of the gas totals
type JSONGas struct {
	TotalUsed uint64 `json:"total_used"`
	TotalCost string `json:"total_cost"`
}

// ToJSON converts the report to its JSON shape
func (r *Report) ToJSON() *JSONReport {
	jr := &JSONReport{
		Suite:        r.Suite.Suite,
		Network:      r.Network,
		ChainID:      r.ChainID,
		Variant:      r.Variant,
		StartTime:    r.Suite.Start.Format(time.RFC3339),
		EndTime:      r.Suite.End.Format(time.RFC3339),
		Duration:     r.Suite.Duration().String(),
		Skipped:      r.Suite.Skipped,
		SkipReason:   r.Suite.SkipReason,
		Passed:       r.Suite.Passed(),
		Failed:       r.Suite.Failed(),
		Cases:        make([]JSONCase, 0, len(r.Suite.Results)),
		Transactions: make([]JSONTransaction, 0, len(r.Transactions)),
		Gas:          JSONGas{TotalCost: "0"},
	}

	for _, res := range r.Suite.Results {
		c := JSONCase{
			Name:     res.Name,
			Result:   res.Status.String(),
			Duration: res.Duration.String(),
			Panicked: res.Panicked,
		}
		if res.Err != nil {
			c.Error = res.Err.Error()
		}
		jr.Cases = append(jr.Cases, c)
	}

	for _, tx := range r.Transactions {
		jt := JSONTransaction{
			Hash:    tx.Hash.Hex(),
			Case:    tx.Case,
			Method:  tx.Method,
			From:    tx.From.Hex(),
			Nonce:   tx.Nonce,
			Status:  tx.Status.String(),
			GasUsed: tx.GasUsed,
			GasCost: "0",
			Latency: tx.Latency.String(),
		}
		if tx.To != nil {
			jt.To = tx.To.Hex()
		}
		if tx.GasCost != nil {
			jt.GasCost = tx.GasCost.String()
		}
		if tx.Error != nil {
			jt.Error = tx.Error.Error()
		}
		jr.Transactions = append(jr.Transactions, jt)
	}

	if r.Summary != nil {
		jr.Gas.TotalUsed = r.Summary.TotalGasUsed
		if r.Summary.TotalGasCost != nil {
			jr.Gas.TotalCost = r.Summary.TotalGasCost.String()
		}
	}

	return jr
}

// exportJSON exports the report as JSON
func (e *Exporter) exportJSON(report *Report, timestamp string) (string, error) {
	filename := filepath.Join(e.outputDir, fmt.Sprintf("report_%s.json", timestamp))

	data, err := json.MarshalIndent(report.ToJSON(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return filename, nil
}

// exportCSV writes cases_<ts>.csv and transactions_<ts>.csv
func (e *Exporter) exportCSV(report *Report, timestamp string) (string, error) {
	casesFile := filepath.Join(e.outputDir, fmt.Sprintf("cases_%s.csv", timestamp))
	if err := writeCSV(casesFile, casesRecords(report)); err != nil {
		return "", err
	}

	txFile := filepath.Join(e.outputDir, fmt.Sprintf("transactions_%s.csv", timestamp))
	if err := writeCSV(txFile, transactionRecords(report)); err != nil {
		return "", err
	}

	return casesFile, nil
}

func casesRecords(report *Report) [][]string {
	records := [][]string{{"Case", "Result", "Duration", "Error"}}
	for _, res := range report.Suite.Results {
		var errStr string
		if res.Err != nil {
			errStr = res.Err.Error()
		}
		records = append(records, []string{res.Name, res.Status.String(), res.Duration.String(), errStr})
	}
	return records
}

func transactionRecords(report *Report) [][]string {
	records := [][]string{{"Hash", "Case", "Method", "From", "Nonce", "GasLimit", "SentAt", "ConfirmedAt", "Status", "Latency", "GasUsed", "GasCost", "Error"}}
	for _, tx := range report.Transactions {
		var errStr, gasCost string
		if tx.Error != nil {
			errStr = tx.Error.Error()
		}
		if tx.GasCost != nil {
			gasCost = tx.GasCost.String()
		}
		records = append(records, []string{
			tx.Hash.Hex(),
			tx.Case,
			tx.Method,
			tx.From.Hex(),
			fmt.Sprintf("%d", tx.Nonce),
			fmt.Sprintf("%d", tx.GasLimit),
			tx.SentAt.Format(time.RFC3339Nano),
			tx.ConfirmedAt.Format(time.RFC3339Nano),
			tx.Status.String(),
			tx.Latency.String(),
			fmt.Sprintf("%d", tx.GasUsed),
			gasCost,
			errStr,
		})
	}
	return records
}

func writeCSV(filename string, records [][]string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(filename), err)
	}
	return nil
}
