package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"list-scheduler/internal/vault"
)

var (
	serverURL string
	apiKey    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "listsched-cli",
		Short: "Admin CLI for the list-scheduler service",
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "url", envOr("LISTSCHED_URL", "http://localhost:5000"), "list-scheduler server URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("LISTSCHED_API_KEY"), "admin API key")

	rootCmd.AddCommand(statusCmd(), runCmd(), encryptSecretCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

type jobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Enabled   bool       `json:"enabled"`
	IsRunning bool       `json:"is_running"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	RunCount  int64      `json:"run_count"`
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the status of every registered job",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := apiRequest("GET", "/api/v1/jobs", http.StatusOK)
			if err != nil {
				return err
			}

			var jobs []jobStatus
			if err := json.Unmarshal(body, &jobs); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}

			for _, job := range jobs {
				state := "idle"
				if job.IsRunning {
					state = "running"
				}
				if !job.Enabled {
					state = "disabled"
				}

				fmt.Printf("%s [%s] schedule=%q runs=%d\n", job.Name, state, job.Schedule, job.RunCount)
				if job.LastRun != nil {
					fmt.Printf("  last run: %s\n", job.LastRun.Format(time.RFC3339))
				}
				if job.LastError != "" {
					fmt.Printf("  last error: %s\n", job.LastError)
				}
			}
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <job>",
		Short: "Trigger an immediate run of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, err := apiRequest("POST", "/api/v1/jobs/"+name+"/run", http.StatusAccepted); err != nil {
				return err
			}
			fmt.Printf("Triggered job %s\n", name)
			return nil
		},
	}
}

func encryptSecretCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "encrypt-secret <plaintext>",
		Short: "Encrypt a value with the configured encryption secret",
		Long: "Encrypts a value the same way the server stores credentials at rest. " +
			"Reads the key from ENCRYPTION_SECRET or the --secret flag.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("ENCRYPTION_SECRET")
			}

			v, err := vault.New(secret)
			if err != nil {
				return err
			}

			encrypted, err := v.Encrypt(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("ciphertext: %s\n", encrypted.Ciphertext)
			fmt.Printf("iv:         %s\n", encrypted.IV)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "encryption secret (defaults to ENCRYPTION_SECRET)")
	return cmd
}

func apiRequest(method, path string, wantStatus int) ([]byte, error) {
	req, err := http.NewRequest(method, serverURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", apiKey)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != wantStatus {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
