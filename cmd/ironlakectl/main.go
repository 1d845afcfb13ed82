// Command ironlakectl is the operator CLI: it builds an operation envelope
// from flags/stdin and posts it to a running ironlaked, printing the
// rendered response, mirroring the teacher's cobra-subcommand-per-verb
// shape (bd query, bd create, ...) adapted to the lakehouse operation set.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rivermark/ironlake/internal/op"
)

var (
	serverAddr string
	tenantID   string
	namespace  string
	table      string
	payloadRaw string
)

var rootCmd = &cobra.Command{
	Use:   "ironlakectl",
	Short: "ironlakectl - send ad hoc operations to an ironlaked server",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "ironlaked base URL")
	rootCmd.PersistentFlags().StringVar(&tenantID, "tenant", "", "tenant id")
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", "default", "namespace")
	rootCmd.PersistentFlags().StringVar(&table, "table", "", "table name")
	rootCmd.PersistentFlags().StringVar(&payloadRaw, "payload", "{}", "operation payload as a JSON object, or '-' to read from stdin")

	rootCmd.AddCommand(
		opCommand("query", op.Query),
		opCommand("write", op.Write),
		opCommand("update", op.Update),
		opCommand("delete", op.Delete),
		opCommand("hard-delete", op.HardDelete),
		opCommand("upsert", op.Upsert),
		opCommand("compact", op.Compact),
		opCommand("create-table", op.CreateTable),
		opCommand("list-tables", op.ListTables),
		opCommand("describe-table", op.DescribeTable),
		opCommand("drop-table", op.DropTable),
		opCommand("drop-namespace", op.DropNamespace),
		opCommand("export-csv", op.ExportCSV),
		opCommand("get-upload-url", op.GetUploadURL),
		opCommand("get-download-url", op.GetDownloadURL),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func opCommand(use string, name op.Name) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("send a %s operation", use),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendOperation(name)
		},
	}
}

func sendOperation(operation op.Name) error {
	payload, err := readPayload()
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	env := op.Envelope{
		RequestID: uuid.NewString(),
		Operation: operation,
		TenantID:  tenantID,
		Namespace: namespace,
		Table:     table,
		Payload:   payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(serverAddr, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post to %s: %w", serverAddr, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, out, "", "  "); err == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(out))
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}

func readPayload() (map[string]interface{}, error) {
	raw := []byte(payloadRaw)
	if payloadRaw == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("--payload is not a JSON object: %w", err)
	}
	return payload, nil
}
