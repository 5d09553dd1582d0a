// internal/reporting/report.go
package reporting

import (
	"fmt"
	"io"
	"os"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/checkride/api/schemas"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// WriteJSON serializes the aggregate result to w. The replay seed is part
// of the result, so every report carries it.
func WriteJSON(w io.Writer, result *schemas.AggregateResult) error {
	enc := jsonAPI.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}
	return nil
}

// WriteJSONFile writes the report to path, creating or truncating it.
func WriteJSONFile(path string, result *schemas.AggregateResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteJSON(f, result); err != nil {
		return err
	}
	return f.Sync()
}

// WriteText renders a human-readable run summary: per-unit lines sorted by
// unit id, then totals and the seed needed to replay the ordering.
func WriteText(w io.Writer, result *schemas.AggregateResult) error {
	outcomes := make([]schemas.Outcome, len(result.Outcomes))
	copy(outcomes, result.Outcomes)
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].UnitID < outcomes[j].UnitID })

	for _, o := range outcomes {
		line := fmt.Sprintf("%-5s %s (%s)", o.Status, o.UnitID, o.Duration.Round(1e6))
		if o.Detail != "" {
			line += "\n      " + o.Detail
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	verdict := "PASSED"
	if !result.Success() {
		verdict = "FAILED"
	}
	_, err := fmt.Fprintf(w, "\n%s: %d passed, %d failed, %d errored\nreplay with --seed=%d\n",
		verdict, result.Passed, result.Failed, result.Errored, result.Seed)
	return err
}
