package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	envAPIURL = "DOCQA_API_URL"

	defaultAPIURL = "http://localhost:8080"
)

type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClientWithCmd resolves the base URL from flag, then env, then default.
func NewAPIClientWithCmd(cmd *cobra.Command) *APIClient {
	_ = godotenv.Load()

	var baseURL string
	if cmd != nil {
		if flagURL, err := cmd.Flags().GetString("api-url"); err == nil && flagURL != "" {
			baseURL = flagURL
		}
	}
	if baseURL == "" {
		baseURL = os.Getenv(envAPIURL)
	}
	if baseURL == "" {
		baseURL = defaultAPIURL
	}

	return NewAPIClient(baseURL)
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// Answers wait on the generation backend.
			Timeout: 2 * time.Minute,
		},
	}
}

// APIResponse represents the standard API response format.
type APIResponse struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

// APIError represents an error from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Get performs a GET request.
func (c *APIClient) Get(path string) (*APIResponse, error) {
	return c.doJSON(http.MethodGet, path, nil)
}

// Post performs a POST request with JSON body.
func (c *APIClient) Post(path string, body any) (*APIResponse, error) {
	return c.doJSON(http.MethodPost, path, body)
}

// Delete performs a DELETE request.
func (c *APIClient) Delete(path string) (*APIResponse, error) {
	return c.doJSON(http.MethodDelete, path, nil)
}

func (c *APIClient) doJSON(method, path string, body any) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}
	return c.do(method, path, reqBody, "application/json")
}

func (c *APIClient) do(method, path string, body io.Reader, contentType string) (*APIResponse, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		if resp.StatusCode >= 400 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(respBody)),
			}
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       apiResp.Code,
			Message:    apiResp.Error,
		}
	}

	return &apiResp, nil
}

// Upload sends a local file as the multipart "file" field.
func (c *APIClient) Upload(filePath string) (*Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return c.UploadBytes(filepath.Base(filePath), contentTypeFor(filePath), data)
}

// UploadBytes sends data as a named multipart upload.
func (c *APIClient) UploadBytes(filename, contentType string, data []byte) (*Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	resp, err := c.do(http.MethodPost, "/documents/upload", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &doc, nil
}

func contentTypeFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "application/pdf"
	}
	return "application/octet-stream"
}

// ListDocuments returns all ingested documents, most recent first.
func (c *APIClient) ListDocuments() (*DocumentList, error) {
	resp, err := c.Get("/documents")
	if err != nil {
		return nil, err
	}
	var list DocumentList
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &list, nil
}

// Select replaces the active selection.
func (c *APIClient) Select(documentIDs []string) (*Selection, error) {
	resp, err := c.Post("/qa/documents", SelectRequest{DocumentIDs: documentIDs})
	if err != nil {
		return nil, err
	}
	var sel Selection
	if err := json.Unmarshal(resp.Data, &sel); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &sel, nil
}

// ClearSelection empties the active selection.
func (c *APIClient) ClearSelection() error {
	_, err := c.Delete("/qa/documents")
	return err
}

// Selection returns the currently selected documents.
func (c *APIClient) Selection() (*DocumentList, error) {
	resp, err := c.Get("/qa/documents")
	if err != nil {
		return nil, err
	}
	var list DocumentList
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &list, nil
}

// Ask submits a question against the selection.
func (c *APIClient) Ask(question string) (*Answer, error) {
	resp, err := c.Post("/qa/ask", AskRequest{Question: question})
	if err != nil {
		return nil, err
	}
	var answer Answer
	if err := json.Unmarshal(resp.Data, &answer); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &answer, nil
}
