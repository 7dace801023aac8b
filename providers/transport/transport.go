// Package transport posts JSON to a compute service and classifies failures.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/meysamhadeli/doctreeai/providers/models"
)

// maxErrorBody bounds how much of an error response is kept in the message.
const maxErrorBody = 4096

// PostJSON sends body to url and decodes a 200 response into out. Network
// failures become TransientError; non-200 statuses go through ClassifyStatus.
// Cancellation of ctx is returned unwrapped.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("error marshalling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return &models.FatalError{Err: fmt.Errorf("error creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &models.TransientError{Err: fmt.Errorf("error sending request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return models.ClassifyStatus(resp.StatusCode, errors.New(errorMessage(raw)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &models.TransientError{Err: fmt.Errorf("error decoding response: %w", err)}
	}
	return nil
}

func errorMessage(raw []byte) string {
	var apiError models.AIError
	if err := json.Unmarshal(raw, &apiError); err == nil && apiError.Error.Message != "" {
		return apiError.Error.Message
	}
	var ollamaError struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &ollamaError); err == nil && ollamaError.Error != "" {
		return ollamaError.Error
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return msg
	}
	return "no error details"
}
