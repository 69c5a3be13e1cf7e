package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

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
  "equipment_summary": [{"name":"circular saw","category":"power_tool","photos":[1,2]}],
  "materials_summary": [{"name":"lumber","status":"delivered","photos":[1]}],
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

type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ImageContent struct {
	Type     string   `json:"type"`
	ImageURL ImageURL `json:"image_url"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content any `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client represents an OpenAI API client
type Client struct {
	apiKey string
	model  string
	client *http.Client
}

// NewClient creates a new OpenAI client
func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{},
	}
}

// SourceName identifies this provider in saved reports
func (c *Client) SourceName() string {
	return "ChatGPT"
}

// encodeImageToBase64 converts image bytes to base64 data URL
func encodeImageToBase64(imageData []byte) string {
	base64Data := base64.StdEncoding.EncodeToString(imageData)
	return fmt.Sprintf("data:image/jpeg;base64,%s", base64Data)
}

// AnalyzePhoto analyzes a construction photo using OpenAI's vision API
func (c *Client) AnalyzePhoto(ctx context.Context, imageData []byte) (string, error) {
	textPrompt := TextContent{
		Type: "text",
		Text: promptExtraction,
	}

	imagePrompt := ImageContent{
		Type: "image_url",
		ImageURL: ImageURL{
			URL: encodeImageToBase64(imageData),
		},
	}

	reqBody := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{
				Role: "user",
				Content: []any{
					textPrompt,
					imagePrompt,
				},
			},
		},
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}

	return c.chatCompletion(ctx, reqBody)
}

// AggregateAnalyses merges per-photo analyses into a daily report
func (c *Client) AggregateAnalyses(ctx context.Context, analysesJSON []byte, projectName, date string) (string, error) {
	prompt := fmt.Sprintf(promptAggregation, projectName, date, string(analysesJSON))

	reqBody := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{
				Role:    "user",
				Content: prompt,
			},
		},
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}

	return c.chatCompletion(ctx, reqBody)
}

func (c *Client) chatCompletion(ctx context.Context, reqBody ChatRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", openAIEndpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	// Extract the text content from the response
	content := chatResp.Choices[0].Message.Content
	if contentStr, ok := content.(string); ok {
		return contentStr, nil
	}

	// If content is not a string, try to marshal it back to JSON
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("failed to marshal content: %w", err)
	}

	return string(contentJSON), nil
}
