package gateagent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/datapilot/reportgate/internal/llm"
	"github.com/datapilot/reportgate/internal/metadata"
)

// guidanceTimeout bounds the LLM call when the caller's context carries no
// deadline of its own.
const guidanceTimeout = 30 * time.Second

// guidanceSystemPrompt frames the LLM as the gate's explainer.
const guidanceSystemPrompt = "You are the guidance agent of a data analytics system. " +
	"Explain clearly and helpfully why a report cannot be generated yet and what the user can do about it."

// ValidateWithGuidance runs Validate and, when the verdict is not READY and a
// client is supplied, asks the LLM to phrase the verdict for the user.
//
// The structural verdict is always returned: an LLM failure or timeout is
// captured as an error string in LLMGuidance, never propagated.
func (a *Agent) ValidateWithGuidance(ctx context.Context, reportType string, meta metadata.Map, client llm.Client) *ValidationResult {
	result := a.Validate(reportType, meta)

	if client == nil || result.Status == StatusReady {
		return result
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, guidanceTimeout)
		defer cancel()
	}

	resp, err := client.Chat(ctx, guidanceSystemPrompt, buildGuidancePrompt(result))
	if err != nil {
		result.LLMGuidance = fmt.Sprintf("guidance generation failed: %v", err)
		return result
	}

	result.LLMGuidance = resp.Content
	return result
}

// buildGuidancePrompt embeds the verdict into a prompt the LLM can explain.
func buildGuidancePrompt(result *ValidationResult) string {
	var sb strings.Builder

	sb.WriteString("Report readiness verdict:\n\n")
	fmt.Fprintf(&sb, "Report type: %s\n", result.ReportType)
	fmt.Fprintf(&sb, "Status: %s\n\n", result.Status)

	sb.WriteString("Missing items:\n")
	writeItems(&sb, result.Missing)

	sb.WriteString("\nWarnings:\n")
	writeItems(&sb, result.Warnings)

	sb.WriteString("\nBased on the verdict above, explain to the user which data is missing or degraded and how it can be resolved.\n")
	return sb.String()
}

func writeItems(sb *strings.Builder, items []string) {
	if len(items) == 0 {
		sb.WriteString("(none)\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
}
