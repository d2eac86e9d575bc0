package excuse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"
)

var promptTemplate = template.Must(template.New("absence").Parse(
	`You review absence reasons submitted by students.

Decide whether the reason below is plausible or suspicious, judging by common sense and typical student behaviour.
If it seems unlikely or potentially dishonest, mark it as invalid.
Give a brief explanation of your decision.

Absence reason: {{.Reason}}
`))

// verdictSchema constrains the model output to the two Verdict fields.
var verdictSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"isValid": map[string]any{
			"type":        "BOOLEAN",
			"description": "Whether the absence reason is valid or suspicious.",
		},
		"explanation": map[string]any{
			"type":        "STRING",
			"description": "Why the absence reason is valid or not.",
		},
	},
	"required": []string{"isValid", "explanation"},
}

// ErrMalformedOutput is returned when the model answer does not match the verdict schema.
var ErrMalformedOutput = errors.New("excuse: malformed model output")

// Client calls the Generative Language API generateContent endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client with a bounded request timeout.
func New(baseURL, apiKey, model string, timeout time.Duration, skip bool) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// Assess asks the model whether reason is a plausible absence excuse.
// It makes exactly one request; callers wanting a never-failing answer use Validator.
func (c *Client) Assess(ctx context.Context, reason string) (Verdict, error) {
	if c.Skip {
		return Verdict{IsValid: true, Explanation: "Reason accepted without model review (mock)."}, nil
	}

	prompt, err := renderPrompt(reason)
	if err != nil {
		return Verdict{}, err
	}
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   verdictSchema,
		},
	})
	if err != nil {
		return Verdict{}, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.BaseURL, c.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("excuse: model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Verdict{}, fmt.Errorf("excuse: model error %s: %s", resp.Status, string(bodyBytes))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Verdict{}, fmt.Errorf("excuse: decode response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return Verdict{}, fmt.Errorf("%w: no candidates", ErrMalformedOutput)
	}

	var text strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return parseVerdict(text.String())
}

func renderPrompt(reason string) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, struct{ Reason string }{reason}); err != nil {
		return "", fmt.Errorf("excuse: render prompt: %w", err)
	}
	return buf.String(), nil
}

// parseVerdict decodes the model's JSON answer. Both fields must be present
// and the explanation must not be blank.
func parseVerdict(text string) (Verdict, error) {
	var raw struct {
		IsValid     *bool   `json:"isValid"`
		Explanation *string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if raw.IsValid == nil || raw.Explanation == nil {
		return Verdict{}, fmt.Errorf("%w: missing field", ErrMalformedOutput)
	}
	explanation := strings.TrimSpace(*raw.Explanation)
	if explanation == "" {
		return Verdict{}, fmt.Errorf("%w: empty explanation", ErrMalformedOutput)
	}
	return Verdict{IsValid: *raw.IsValid, Explanation: explanation}, nil
}
