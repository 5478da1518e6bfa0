package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// postsResponse mirrors the xfeed /api/v1/posts envelope.
type postsResponse struct {
	Success bool   `json:"success"`
	Handle  string `json:"handle"`
	Posts   []struct {
		ID    string   `json:"id"`
		Text  string   `json:"text"`
		Date  *string  `json:"date"`
		URL   string   `json:"url"`
		Media []string `json:"media"`
	} `json:"posts"`
	EngineUsed  string `json:"engine_used"`
	CacheStatus string `json:"cache_status"`
	Error       *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	_ = godotenv.Load()

	apiURL := os.Getenv("XFEED_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}
	apiKey := os.Getenv("XFEED_API_KEY")

	s := server.NewMCPServer(
		"xfeed",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	fetchPostsTool := mcp.NewTool("fetch_posts",
		mcp.WithDescription("Fetch the most recent public posts of an X.com profile. Returns id, text, permalink, date and media URLs for each post."),
		mcp.WithString("handle",
			mcp.Required(),
			mcp.Description("Profile handle, with or without the leading @"),
		),
	)
	s.AddTool(fetchPostsTool, handleFetchPosts(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiGet sends a GET request to the xfeed API and returns the response body.
func apiGet(ctx context.Context, client *http.Client, apiURL, apiKey, path string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
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

func handleFetchPosts(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		handle, err := request.RequireString("handle")
		if err != nil {
			return mcp.NewToolResultError("handle is required"), nil
		}

		body, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/posts", url.Values{"user": {handle}})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp postsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success {
			errMsg := "fetch failed"
			if resp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "@%s: %d posts (engine %s, cache %s)\n\n", resp.Handle, len(resp.Posts), resp.EngineUsed, resp.CacheStatus)
		for i, p := range resp.Posts {
			date := "unknown date"
			if p.Date != nil {
				date = *p.Date
			}
			fmt.Fprintf(&sb, "--- [%d] %s (%s) ---\n%s\n", i+1, p.URL, date, p.Text)
			for _, m := range p.Media {
				sb.WriteString("media: " + m + "\n")
			}
			sb.WriteString("\n")
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
