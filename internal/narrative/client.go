// Package narrative calls the external text-generation service that turns a
// structured vitals trend into a short clinical summary. The call is
// best-effort: every failure path degrades to an empty summary and never
// fails the aggregation pipeline.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vitalstream/internal/models"
)

const systemPrompt = "You are a medical assistant. Write a brief, straight-to-the-point summary of patient vitals in the form of a single paragraph. " +
	"Focus only on changes and trends over the last period of time. " +
	"Avoid bullet points or lists and keep the response concise. The word count should be under 30 words."

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates a narrative client with a bounded request timeout.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Summarize sends the trend description and patient bio to the generation
// service and returns the summary text.
func (c *Client) Summarize(ctx context.Context, trend, bio string) (string, error) {
	userPrompt := fmt.Sprintf("%s\n\nBased on the following vital signs trend, give a concise medical-style summary of the patient's current condition and advice for next steps. Be professional and informative.\n\n%s", bio, trend)

	requestBody := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"stream":      false,
		"max_tokens":  100,
		"temperature": 0.5,
	}

	reqBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("narrative request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read narrative response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("narrative service returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("malformed narrative response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("narrative response contained no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// Bio renders the patient demographics line included in every prompt.
func Bio(patient models.Patient) string {
	return fmt.Sprintf("Patient is a %d-year-old %s weighing %.0fkg and %.2fm tall.",
		patient.Age, strings.ToLower(patient.Gender), patient.Weight, patient.Height)
}

// BuildTrend renders first-to-last deltas over the lookback readings.
// Returns ok=false when fewer than 2 samples exist; no narrative should be
// requested in that case.
func BuildTrend(samples []models.VitalSample, lookback time.Duration) (string, bool) {
	if len(samples) < 2 {
		return "", false
	}
	first := samples[0]
	last := samples[len(samples)-1]

	var b strings.Builder
	fmt.Fprintf(&b, "The patient's vital sign changes over the last %d minutes are:\n", int(lookback.Minutes()))
	writeDelta(&b, "Heart Rate", first.HeartRate, last.HeartRate, "")
	writeDelta(&b, "Systolic BP", first.Systolic, last.Systolic, "")
	writeDelta(&b, "Diastolic BP", first.Diastolic, last.Diastolic, "")
	writeDelta(&b, "SpO2", first.SpO2, last.SpO2, "")
	writeDelta(&b, "Temperature", first.Temperature, last.Temperature, "°C")

	return b.String(), true
}

func writeDelta(b *strings.Builder, label string, first, last *float64, unit string) {
	if first == nil || last == nil {
		return
	}
	fmt.Fprintf(b, "- %s: %.1f%s → %.1f%s (%+.1f)\n", label, *first, unit, *last, unit, *last-*first)
}
