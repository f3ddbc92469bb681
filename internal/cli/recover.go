package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"inspectd/internal/scheduler"
)

var (
	recoverServer string
	recoverYes    bool
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Compare the store against a running instance's live schedule and re-arm missing tasks",
	RunE:  runRecover,
}

func init() {
	f := recoverCmd.Flags()
	f.StringVar(&recoverServer, "server", "http://localhost:8080", "base URL of a running inspectd instance")
	f.BoolVar(&recoverYes, "yes", false, "skip the confirmation prompt")
}

type driftStatus struct {
	scheduler.Drift
	InSync    bool `json:"in_sync"`
	Scheduled int  `json:"scheduled"`
}

func runRecover(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 30 * time.Second}

	var status driftStatus
	if err := getJSON(client, recoverServer+"/api/schedule/drift", &status); err != nil {
		return fmt.Errorf("fetch drift: %w", err)
	}

	fmt.Printf("live schedule size: %d\n", status.Scheduled)
	fmt.Printf("missing tasks: %d %v\n", len(status.Missing), status.Missing)
	fmt.Printf("extra tasks: %d\n", len(status.Extra))

	if len(status.Missing) == 0 {
		fmt.Println("schedule is in sync with the store, nothing to recover")
		return nil
	}

	if !recoverYes && !confirm("Proceed with recovery?") {
		fmt.Println("recovery cancelled")
		return nil
	}

	var rep scheduler.Report
	if err := postJSON(client, recoverServer+"/api/schedule/recover", &rep); err != nil {
		return fmt.Errorf("recover: %w", err)
	}

	fmt.Printf("recovered: %d\n", rep.Recovered)
	fmt.Printf("failed: %d\n", rep.Failed)
	fmt.Printf("live schedule size now: %d\n", rep.Scheduled)
	return nil
}

func getJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

func postJSON(client *http.Client, url string, out any) error {
	resp, err := client.Post(url, "application/json", bytes.NewReader(nil))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

func decodeJSON(resp *http.Response, out any) error {
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
