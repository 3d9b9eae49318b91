package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/JoahanSP/SECURENET/internal/constants"
	"github.com/JoahanSP/SECURENET/internal/ingest"
)

var sendCmd = &cobra.Command{
	Use:   "send <server-url> <image>...",
	Short: "Upload snapshots the way the door camera does",
	Long: `Upload one or more images to a running SecureNet server and print the
classification result of each. Useful for testing without camera hardware.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().String("api-key", "", "API key sent in X-API-Key (defaults to the first API_KEYS entry)")
	sendCmd.Flags().String("path", "/api/v1/upload", "Upload path on the server")
}

// uploadImage posts one file as the multipart field "image".
func uploadImage(ctx context.Context, client *http.Client, url, apiKey, path string) (*ingest.Outcome, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(constants.UploadFieldName, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}

	var out ingest.Outcome
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	serverURL := strings.TrimSuffix(args[0], "/")
	images := args[1:]

	apiKey := mustGetString(cmd, "api-key")
	if apiKey == "" {
		if keys := strings.Split(os.Getenv("API_KEYS"), ","); keys[0] != "" {
			apiKey = strings.TrimSpace(keys[0])
		}
	}
	url := serverURL + mustGetString(cmd, "path")
	client := &http.Client{Timeout: 60 * time.Second}

	var bar *progressbar.ProgressBar
	if len(images) > 1 {
		bar = progressbar.NewOptions(len(images),
			progressbar.OptionSetDescription("Uploading"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}

	type result struct {
		path string
		out  *ingest.Outcome
		err  error
	}
	results := make([]result, 0, len(images))
	for _, path := range images {
		out, err := uploadImage(cmd.Context(), client, url, apiKey, path)
		results = append(results, result{path: path, out: out, err: err})
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		fmt.Println()
	}

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Printf("%s: error: %v\n", r.path, r.err)
			continue
		}
		fmt.Printf("%s: %s (%s)\n", r.path, r.out.Status, r.out.Message)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(images))
	}
	return nil
}
