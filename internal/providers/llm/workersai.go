package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sandevgo/knowbot/internal/core"
)

const (
	workersAIBaseURL      = "https://api.cloudflare.com/client/v4"
	DefaultWorkersAIModel = "@cf/meta/llama-3.3-70b-instruct-fp8-fast"
)

// WorkersAI calls the Cloudflare Workers AI REST endpoint.
type WorkersAI struct {
	baseProvider
	accountID string
}

func NewWorkersAI(accountID, apiToken, model string) *WorkersAI {
	if model == "" {
		model = DefaultWorkersAIModel
	}
	return &WorkersAI{
		baseProvider: newBaseProvider(workersAIBaseURL, apiToken, model),
		accountID:    accountID,
	}
}

func (w *WorkersAI) Chat(ctx context.Context, history []core.Message) (core.Message, error) {
	path := fmt.Sprintf("/accounts/%s/ai/run/%s", w.accountID, w.model)
	headers := map[string]string{
		"Authorization": "Bearer " + w.apiKey,
	}

	resp, err := w.doRequest(ctx, http.MethodPost, path, map[string]any{"messages": history}, headers)
	if err != nil {
		return core.Message{}, err
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return core.Message{}, err
	}

	var result struct {
		Success bool `json:"success"`
		Result  struct {
			Response string `json:"response"`
		} `json:"result"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return core.Message{}, fmt.Errorf("decode: %w", err)
	}

	if !result.Success {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.Message)
		}
		return core.Message{}, fmt.Errorf("workers ai: %s", strings.Join(msgs, "; "))
	}
	if result.Result.Response == "" {
		return core.Message{}, fmt.Errorf("workers ai: empty response")
	}

	return core.Message{Role: core.RoleAssistant, Content: result.Result.Response}, nil
}
