// Package report renders and exports the outcome of a harness run.
package report

import (
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/params"
	"github.com/olekukonko/tablewriter"

	"github.com/0xmhha/fundme-harness/internal/collector"
	"github.com/0xmhha/fundme-harness/internal/harness"
)

// Report is the outcome of one run: cases plus the transactions they sent
type Report struct {
	Network      string
	ChainID      uint64
	Variant      string
	Suite        *harness.Report
	Transactions []*collector.TxInfo
	Summary      *collector.Summary
}

// New assembles a report from a suite run and the transaction ledger
func New(networkName string, chainID uint64, variant string, suite *harness.Report, ledger *collector.Collector) *Report {
	r := &Report{
		Network: networkName,
		ChainID: chainID,
		Variant: variant,
		Suite:   suite,
	}
	if ledger != nil {
		r.Transactions = ledger.Transactions()
		r.Summary = ledger.Summary()
	}
	return r
}

// Print writes the case table, the transaction table and the totals
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "\n%s on %s (chain %d, %s)\n", r.Suite.Suite, r.Network, r.ChainID, r.Variant)

	if r.Suite.Skipped {
		fmt.Fprintf(w, "  [SKIP] suite not registered: %s\n", r.Suite.SkipReason)
		return
	}

	r.PrintCases(w)
	if len(r.Transactions) > 0 {
		fmt.Fprintln(w)
		r.PrintTransactions(w)
	}

	fmt.Fprintf(w, "\nCases:\n")
	fmt.Fprintf(w, "  Passed:          %d\n", r.Suite.Passed())
	fmt.Fprintf(w, "  Failed:          %d\n", r.Suite.Failed())
	fmt.Fprintf(w, "  Duration:        %s\n", r.Suite.Duration().Round(time.Millisecond))

	if r.Summary != nil && r.Summary.TotalSent > 0 {
		fmt.Fprintf(w, "\nTransactions:\n")
		fmt.Fprintf(w, "  Total Sent:      %d\n", r.Summary.TotalSent)
		fmt.Fprintf(w, "  Confirmed:       %d\n", r.Summary.TotalConfirmed)
		fmt.Fprintf(w, "  Failed:          %d\n", r.Summary.TotalFailed)
		fmt.Fprintf(w, "  Gas Used:        %d\n", r.Summary.TotalGasUsed)
		fmt.Fprintf(w, "  Gas Cost:        %s ETH\n", FormatEther(r.Summary.TotalGasCost))
	}
}

// PrintCases writes one row per case
func (r *Report) PrintCases(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Case", "Result", "Duration", "Error"})
	table.SetBorder(true)
	table.SetAutoWrapText(false)

	for _, res := range r.Suite.Results {
		errText := "-"
		if res.Err != nil {
			errText = res.Err.Error()
		}
		table.Append([]string{
			res.Name,
			res.Status.String(),
			res.Duration.Round(time.Millisecond).String(),
			errText,
		})
	}

	table.SetFooter([]string{
		"TOTAL",
		fmt.Sprintf("%d/%d", r.Suite.Passed(), len(r.Suite.Results)),
		r.Suite.Duration().Round(time.Millisecond).String(),
		"",
	})
	table.Render()
}

// PrintTransactions writes one row per settled or pending transaction
func (r *Report) PrintTransactions(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Case", "Method", "From", "Nonce", "Status", "Gas Used", "Gas Cost (ETH)"})
	table.SetBorder(true)

	for _, tx := range r.Transactions {
		method := tx.Method
		if method == "" {
			method = "-"
		}
		table.Append([]string{
			tx.Case,
			method,
			shortAddress(tx.From.Hex()),
			fmt.Sprintf("%d", tx.Nonce),
			tx.Status.String(),
			fmt.Sprintf("%d", tx.GasUsed),
			FormatEther(tx.GasCost),
		})
	}
	table.Render()
}

// FormatEther renders wei as a decimal ether string
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	f := new(big.Float).SetInt(wei)
	f.Quo(f, big.NewFloat(params.Ether))
	return f.Text('f', 9)
}

func shortAddress(hex string) string {
	if len(hex) <= 12 {
		return hex
	}
	return hex[:8] + ".." + hex[len(hex)-4:]
}
