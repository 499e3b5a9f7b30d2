package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// errorBody mirrors the API's error detail.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// cardsResponse mirrors the POST /api/v1/cards response.
type cardsResponse struct {
	Status        string  `json:"status"`
	JobCardCount  int     `json:"job_card_count"`
	ExecutionTime float64 `json:"execution_time"`
	Data          []struct {
		ID         string `json:"job_id"`
		URL        string `json:"url"`
		PostedDate string `json:"posted_date"`
	} `json:"data"`
	Error *errorBody `json:"error"`
}

// jobsResponse mirrors the POST /api/v1/jobs response.
type jobsResponse struct {
	Status      string  `json:"status"`
	JobCount    int     `json:"job_count"`
	ElapsedTime float64 `json:"elapsed_time"`
	Data        []struct {
		JobID       string `json:"job_id"`
		URL         string `json:"url"`
		Title       string `json:"job_title"`
		Company     string `json:"company"`
		Location    string `json:"job_location"`
		Description string `json:"job_description"`
		PostingTime string `json:"posting_time"`
		WorkType    string `json:"job_work_type"`
		Industry    string `json:"job_industry"`
		Category    string `json:"job_type"`
		Error       string `json:"error"`
	} `json:"data"`
	Error *errorBody `json:"error"`
}

func main() {
	apiURL := os.Getenv("SEEKJOBS_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("SEEKJOBS_API_KEY")

	s := server.NewMCPServer(
		"seekjobs",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	listCardsTool := mcp.NewTool("list_job_cards",
		mcp.WithDescription("Walk a job search results URL page by page and return the listing ids, URLs and posting ages of every card newer than the optional age limit."),
		mcp.WithString("search_url",
			mcp.Required(),
			mcp.Description("Search results URL, e.g. https://www.seek.com.au/data-analyst-jobs/in-All-Sydney-NSW"),
		),
		mcp.WithString("posted_date_limit",
			mcp.Description("Stop at the first card this old or older, e.g. '1d ago', '12h ago'. Omit to walk every page."),
		),
	)
	s.AddTool(listCardsTool, handleListCards(apiURL, apiKey))

	getDetailsTool := mcp.NewTool("get_job_details",
		mcp.WithDescription("Fetch full details (title, company, location, description, work type, industry, category) for listing ids returned by list_job_cards."),
		mcp.WithArray("job_ids",
			mcp.Required(),
			mcp.Description("Numeric listing ids"),
		),
		mcp.WithString("description_format",
			mcp.Description("Description rendering: 'text' (default) or 'markdown'"),
			mcp.Enum("text", "markdown"),
		),
	)
	s.AddTool(getDetailsTool, handleGetDetails(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func apiError(e *errorBody, fallback string) *mcp.CallToolResult {
	if e == nil {
		return mcp.NewToolResultError(fallback)
	}
	return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", e.Code, e.Message))
}

func handleListCards(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		searchURL, err := request.RequireString("search_url")
		if err != nil {
			return mcp.NewToolResultError("search_url is required"), nil
		}
		payload := map[string]any{
			"search_url":        searchURL,
			"posted_date_limit": request.GetString("posted_date_limit", ""),
		}

		body, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/cards", payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var resp cardsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if resp.Status != "success" {
			return apiError(resp.Error, "listing job cards failed"), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%d job cards (%.1fs)\n\n", resp.JobCardCount, resp.ExecutionTime)
		for _, c := range resp.Data {
			fmt.Fprintf(&sb, "%s\t%s\t%s\n", c.ID, c.PostedDate, c.URL)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleGetDetails(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := request.RequireStringSlice("job_ids")
		if err != nil || len(ids) == 0 {
			return mcp.NewToolResultError("job_ids is required and must be an array of strings"), nil
		}
		payload := map[string]any{
			"job_ids":            ids,
			"description_format": request.GetString("description_format", "text"),
		}

		body, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/jobs", payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var resp jobsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if resp.Status != "success" {
			return apiError(resp.Error, "fetching job details failed"), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%d listings (%.1fs)\n\n", resp.JobCount, resp.ElapsedTime)
		for i, j := range resp.Data {
			if j.Error != "" {
				fmt.Fprintf(&sb, "--- [%d] %s FAILED: %s ---\n\n", i+1, j.JobID, j.Error)
				continue
			}
			fmt.Fprintf(&sb, "--- [%d] %s ---\nCompany: %s\nLocation: %s\nPosted: %s\nWork type: %s\nIndustry: %s\nCategory: %s\nURL: %s\n\n%s\n\n",
				i+1, j.Title, j.Company, j.Location, j.PostingTime, j.WorkType, j.Industry, j.Category, j.URL, j.Description)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
