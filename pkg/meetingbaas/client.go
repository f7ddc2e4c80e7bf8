// Package meetingbaas is the client for the recording-bot service: bot
// dispatch, transcript artifact download and webhook signature checks.
package meetingbaas

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	apiKeyHeader = "x-meeting-baas-api-key"

	// DefaultBotName is used when the user has not named their bot.
	DefaultBotName = "Meeting Bot"

	maxArtifactBytes = 50 << 20
)

// Correlation is echoed back by the service in every webhook for the bot.
type Correlation struct {
	MeetingID string `json:"meeting_id"`
	UserID    string `json:"user_id"`
}

// BotRequest describes a bot to send into a meeting.
type BotRequest struct {
	MeetingURL string
	BotName    string
	BotImage   string
	WebhookURL string
	Extra      Correlation
}

type speechToText struct {
	Provider string `json:"provider"`
}

type createBotPayload struct {
	MeetingURL           string       `json:"meeting_url"`
	BotName              string       `json:"bot_name"`
	BotImage             string       `json:"bot_image,omitempty"`
	Reserved             bool         `json:"reserved"`
	RecordingMode        string       `json:"recording_mode"`
	SpeechToText         speechToText `json:"speech_to_text"`
	TranscriptionEnabled bool         `json:"transcription_enabled"`
	WebhookURL           string       `json:"webhook_url,omitempty"`
	Extra                Correlation  `json:"extra"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SendBot asks the service to join req.MeetingURL and returns the bot id.
func (c *Client) SendBot(ctx context.Context, req BotRequest) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("MEETINGBAAS_API_KEY is not configured")
	}

	botName := req.BotName
	if botName == "" {
		botName = DefaultBotName
	}

	payload := createBotPayload{
		MeetingURL:           req.MeetingURL,
		BotName:              botName,
		BotImage:             req.BotImage,
		Reserved:             false,
		RecordingMode:        "speaker_view",
		SpeechToText:         speechToText{Provider: "Default"},
		TranscriptionEnabled: true,
		WebhookURL:           req.WebhookURL,
		Extra:                req.Extra,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal bot request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/bots", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("bot dispatch request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read bot response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("bot service error (%d): %s", resp.StatusCode, string(respBody))
	}

	// v2 wraps the id in data, v1 returned it at the top level.
	var result struct {
		BotID string `json:"bot_id"`
		Data  struct {
			BotID string `json:"bot_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse bot response: %w", err)
	}

	botID := result.Data.BotID
	if botID == "" {
		botID = result.BotID
	}
	if botID == "" {
		return "", fmt.Errorf("bot service returned no bot id")
	}
	return botID, nil
}

// FetchArtifact downloads a transcript artifact from the pre-signed URL
// carried by the completion webhook.
func (c *Client) FetchArtifact(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("artifact download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artifact download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// VerifySignature checks a hex HMAC-SHA256 of body keyed by secret. An
// optional "sha256=" prefix on the header is accepted.
func VerifySignature(secret string, body []byte, signature string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if secret == "" || signature == "" {
		return false
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the header value VerifySignature accepts.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
