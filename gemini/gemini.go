package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

const promptExtraction = `Analyze this construction site photo and return ONLY valid JSON in this exact format:
{
  "space": "Kitchen|Bathroom|Bedroom|Living|Exterior|Garage|Hall|Dining|Stair|Basement|''",
  "phase": "Demo|Framing|Electrical Rough|Plumbing Rough|Drywall|Paint|Flooring|Cabinets|Finish|Punch|''",
  "caption": "one-sentence literal description of what you see",
  "objects": ["list", "of", "visible", "objects"],
  "tasks": [{"name":"specific task observed","confidence":0.85}],
  "hazards": [{"type":"hazard type","severity":"low|med|high"}],
  "personnel_count": 0,
  "equipment": [{"name":"tool or machine name","category":"hand_tool|power_tool|heavy_machinery|vehicle"}],
  "materials": [{"name":"material type","status":"delivered|in_use|stored","quantity":"visible amount"}],
  "deliveries": [{"type":"delivery truck|material delivery|equipment delivery","status":"active|completed"}],
  "safety_issues": [{"issue":"specific safety concern","severity":"low|med|high","ppe_compliance":"good|poor|unknown"}],
  "delaying_events": [{"event":"weather|missing_materials|equipment_failure|access_blocked","impact":"low|med|high"}]
}

Rules:
- Be literal, no assumptions
- Prefer Kitchen/Bath if cabinets/fixtures/tile visible
- Tasks must be concrete construction work observed
- If no construction work visible, use empty tasks array
- Selfies/non-construction photos should have space="" and tasks=[]
- Return only JSON, no other text`

const promptAggregation = `Analyze these construction photo analyses and create a daily report summary for project %q on %s. Return ONLY valid JSON:

Photo Analyses:
%s

Return this exact JSON format:
{
  "site_summary": "Brief summary of work observed across all photos",
  "sections": [
    {
      "space": "Kitchen",
      "phase": "Cabinets",
      "tasks": [{"name":"install base cabinets","confidence":0.82,"photos":[1,3]}],
      "hazards": [{"type":"debris pile","severity":"low","photo":2}]
    }
  ],
  "personnel_summary": {"total_count":3,"notes":"Average crew size observed"},
  "equipment_summary": [{"name":"circular saw","category":"power_tool","photos":[1,2]},{"name":"ladder","category":"hand_tool","photos":[3]}],
  "materials_summary": [{"name":"lumber","status":"delivered","photos":[1]},{"name":"screws","status":"in_use","photos":[2,3]}],
  "deliveries_summary": [{"type":"material delivery","status":"completed","time":"morning","photos":[1]}],
  "safety_summary": {"issues":[{"issue":"proper PPE worn","severity":"low","photos":[1,2]}],"compliance":"good"},
  "delays_summary": [{"event":"weather delay","impact":"low","duration":"1 hour"}],
  "changes_since_yesterday": [],
  "next_day_plan": ["Continue cabinet installation in Kitchen"]
}

Rules:
- Merge identical tasks across photos, combine photo indices
- Boost confidence slightly when multiple photos show same task
- Group by space then phase
- If no valid tasks found, create one section with "Unspecified" space and "Progress documented" task
- Be specific and construction-focused`

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string `json:"response_mime_type,omitempty"`
}

type geminiRequest struct {
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
	Contents         []content        `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type Client struct {
	apiKey  string
	model   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Gemini client. rps bounds outbound request rate across
// all goroutines sharing the client; rps <= 0 disables limiting.
func NewClient(apiKey, model string, rps float64) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{},
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (c *Client) SourceName() string {
	return "Gemini"
}

func (c *Client) AnalyzePhoto(ctx context.Context, imageData []byte) (string, error) {
	parts := []part{{Text: promptExtraction}}
	if len(imageData) > 0 {
		parts = append(parts, part{
			InlineData: &inlineData{
				MimeType: "image/jpeg",
				Data:     base64.StdEncoding.EncodeToString(imageData),
			},
		})
	}

	reqBody := geminiRequest{
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
		Contents: []content{
			{
				Role:  "user",
				Parts: parts,
			},
		},
	}

	return c.generateContent(ctx, reqBody)
}

func (c *Client) AggregateAnalyses(ctx context.Context, analysesJSON []byte, projectName, date string) (string, error) {
	prompt := fmt.Sprintf(promptAggregation, projectName, date, string(analysesJSON))
	reqBody := geminiRequest{
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
		Contents: []content{
			{
				Role:  "user",
				Parts: []part{{Text: prompt}},
			},
		},
	}
	return c.generateContent(ctx, reqBody)
}

func (c *Client) generateContent(ctx context.Context, body geminiRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait: %w", err)
	}

	// try v1beta first, then v1
	endpoints := []string{
		fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", c.model, c.apiKey),
		fmt.Sprintf("https://generativelanguage.googleapis.com/v1/models/%s:generateContent?key=%s", c.model, c.apiKey),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for _, ep := range endpoints {
		req, err := http.NewRequestWithContext(ctx, "POST", ep, bytes.NewBuffer(data))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to send request: %w", err)
			continue
		}
		bodyBytes, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
			// retry next endpoint if available
			continue
		}
		var gr geminiResponse
		if err := json.Unmarshal(bodyBytes, &gr); err != nil {
			lastErr = fmt.Errorf("failed to parse response: %w", err)
			continue
		}
		if len(gr.Candidates) == 0 {
			lastErr = fmt.Errorf("no candidates in response")
			continue
		}
		// find first text part
		for _, p := range gr.Candidates[0].Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
		lastErr = fmt.Errorf("no text part in response")
	}
	return "", lastErr
}
