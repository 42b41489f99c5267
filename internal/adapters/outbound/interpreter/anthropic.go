package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/forensor/forensor/internal/domain"
	"github.com/forensor/forensor/internal/domain/protocols"
)

// defaultModel interprets scan bundles unless FORENSOR_MODEL overrides it.
const defaultModel = "claude-sonnet-4-5"

const (
	maxTokens          = 4096
	maxConcurrentCalls = 4

	// A bundle prompt carries at most this many findings per protocol;
	// the rest collapse into an omitted counter.
	maxPromptFindings = 50
)

// The limiter spaces outbound calls at one per two seconds with a burst of
// two, which keeps a full retry loop inside default API rate limits.
const (
	requestInterval = 2 * time.Second
	requestBurst    = 2
)

// Client implements domain.Interpreter against the Anthropic Messages API.
type Client struct {
	api     *anthropic.Client
	model   string
	retry   retryConfig
	breaker *CircuitBreaker
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// Config holds interpreter construction options. Zero values fall back to
// the environment and then to defaults.
type Config struct {
	APIKey string // defaults to ANTHROPIC_API_KEY
	Model  string // defaults to FORENSOR_MODEL, then claude-sonnet-4-5
}

// New creates a Client. Construction fails without an API key so a missing
// credential surfaces before any scanning work is spent.
func New(cfg Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = os.Getenv("FORENSOR_MODEL")
	}
	if model == "" {
		model = defaultModel
	}

	api := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &Client{
		api:     &api,
		model:   model,
		retry:   defaultRetryConfig(),
		breaker: NewCircuitBreaker(breakerFailureThreshold, breakerSuccessThreshold, breakerOpenTimeout),
		sem:     semaphore.NewWeighted(maxConcurrentCalls),
		limiter: rate.NewLimiter(rate.Every(requestInterval), requestBurst),
	}, nil
}

// Interpret sends the bundle to the model and decodes the structured
// analysis from its reply. Rate limiting, the concurrency cap, retries and
// the circuit breaker all apply per call.
func (c *Client) Interpret(ctx context.Context, bundle *domain.ScanBundle, guidance *domain.IterationGuidance) (*domain.InterpretedAnalysis, error) {
	prompt, err := buildPrompt(bundle, guidance)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("interpret rate limit: %w", err)
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("interpret concurrency slot: %w", err)
	}
	defer c.sem.Release(1)

	var response *anthropic.Message
	err = c.retryWithBackoff(ctx, "interpret", func(attemptCtx context.Context) error {
		resp, apiErr := c.api.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	analysis, err := Decode[domain.InterpretedAnalysis](text.String())
	if err != nil {
		return nil, fmt.Errorf("decoding interpreter response: %w", err)
	}
	return &analysis, nil
}

// promptReport is the trimmed per-protocol view embedded in the prompt.
type promptReport struct {
	Protocol string              `json:"protocol"`
	Status   domain.ReportStatus `json:"status"`
	Score    float64             `json:"score"`
	Findings []domain.Finding    `json:"findings"`
	Omitted  int                 `json:"omitted_findings,omitempty"`
	Units    []domain.UnitCost   `json:"units,omitempty"`
	Notes    []string            `json:"notes,omitempty"`
	Metrics  map[string]any      `json:"metrics,omitempty"`
}

func buildPrompt(bundle *domain.ScanBundle, guidance *domain.IterationGuidance) (string, error) {
	views := make([]promptReport, 0, len(domain.AllProtocols))
	for _, protocol := range domain.AllProtocols {
		r := bundle.Report(protocol)
		view := promptReport{
			Protocol: r.Protocol,
			Status:   r.Status,
			Score:    r.Score,
			Findings: r.Findings,
			Units:    r.Units,
			Notes:    r.Notes,
			Metrics:  r.Metrics,
		}
		// Truncation keeps the most severe findings.
		if len(view.Findings) > maxPromptFindings {
			view.Omitted = len(view.Findings) - maxPromptFindings
			view.Findings = protocols.WorstOffenders(view.Findings, maxPromptFindings)
		}
		views = append(views, view)
	}

	data, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling scan reports: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `You are a forensic code analyst. Four deterministic protocol scanners examined a repository; their complete output is below as JSON.

Repository: %s
Files scanned: %d (%d lines, size category %q)

Scanner output:
%s

Write an interpretation grounded strictly in the scanner output:

1. summary: two or three sentences naming the dominant failure modes.
2. claims: one entry per distinct problem. Set protocol, category and
   severity from a supporting finding and list the files it concerns.
   Never cite a file the scanners did not flag.
3. recommendations: concrete actions, most urgent first. Every
   recommendation must reference at least one flagged file in its files
   list. Be specific: name the function or line to change, not a theme.

Respond with ONLY raw JSON shaped exactly like:
{
  "summary": "...",
  "claims": [
    {"text": "...", "protocol": "rot", "category": "ABANDONED_FILE", "severity": 4, "files": ["src/old.py"]}
  ],
  "recommendations": [
    {"text": "...", "files": ["src/old.py"]}
  ]
}
Do NOT wrap the JSON in markdown code fences.`,
		bundle.Root, bundle.FileCount, bundle.TotalLines, bundle.SizeCategory, data)

	if guidance != nil {
		b.WriteString("\n\nA previous interpretation of this same scan failed validation.\n")
		fmt.Fprintf(&b, "Failed checks: %s\n", strings.Join(guidance.FailedChecks, ", "))
		if len(guidance.FocusAreas) > 0 {
			b.WriteString("Focus areas:\n")
			for _, area := range guidance.FocusAreas {
				fmt.Fprintf(&b, "- %s\n", area)
			}
		}
		if len(guidance.Adjustments) > 0 {
			b.WriteString("Required adjustments:\n")
			for _, adj := range guidance.Adjustments {
				fmt.Fprintf(&b, "- %s\n", adj)
			}
		}
		b.WriteString("Address every point above in the revised interpretation.")
	}

	return b.String(), nil
}
