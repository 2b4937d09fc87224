package run

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/Clearner1/ZulipAgent/session"
)

type commandRequest struct {
	Instructions string                 `json:"instructions,omitempty"`
	History      []session.HistoryEntry `json:"history"`
	Message      string                 `json:"message"`
}

type commandUsage struct {
	InputTokens  int     `json:"input_tokens,omitempty"`
	OutputTokens int     `json:"output_tokens,omitempty"`
	CostUSD      float64 `json:"cost_usd,omitempty"`
}

type commandResponse struct {
	Text   string       `json:"text"`
	Status string       `json:"status,omitempty"`
	Error  string       `json:"error,omitempty"`
	Usage  commandUsage `json:"usage,omitempty"`
}

// CommandExecutor runs an external turn-executor process per turn: the turn
// goes to its stdin as JSON, the reply comes back on stdout as JSON. Stderr
// passes through for operator visibility.
type CommandExecutor struct {
	Command []string
}

func (c *CommandExecutor) Execute(ctx context.Context, turn Turn) (Result, error) {
	if len(c.Command) == 0 {
		return Result{}, fmt.Errorf("turn command is not configured")
	}
	payload, err := json.Marshal(commandRequest{
		Instructions: turn.Instructions,
		History:      turn.History,
		Message:      turn.Message,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode turn request: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.Command[0], c.Command[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("turn command failed: %w", err)
	}

	var resp commandResponse
	if err := json.Unmarshal(bytes.TrimSpace(out), &resp); err != nil {
		return Result{}, fmt.Errorf("decode turn response: %w", err)
	}
	status := Status(resp.Status)
	if status == "" {
		status = StatusCompleted
	}
	return Result{
		Text:         resp.Text,
		Status:       status,
		ErrorMessage: resp.Error,
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CostUSD:      resp.Usage.CostUSD,
		},
	}, nil
}
