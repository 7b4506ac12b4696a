// Package ai turns free-text service notes into structured maintenance
// actions using an OpenAI-compatible chat completion API.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ChatCompleter is the part of *openai.Client used here.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Client struct {
	client ChatCompleter
	model  string
}

func New(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return NewWithCompleter(openai.NewClientWithConfig(config), model)
}

func NewWithCompleter(client ChatCompleter, model string) *Client {
	return &Client{client: client, model: model}
}

const (
	ActionLogService     = "log_service"
	ActionUpdateOdometer = "update_odometer"
	ActionUnknown        = "unknown"
)

// ServiceLog is the structured form of a message such as
// "changed the oil on the civic at 15,200 yesterday, $45".
type ServiceLog struct {
	Action   string  `json:"action"`
	Vehicle  string  `json:"vehicle"`
	Item     string  `json:"item"`
	Odometer int     `json:"odometer"` // 0 when not mentioned
	Date     string  `json:"date"`     // YYYY-MM-DD, empty for today
	Cost     float64 `json:"cost"`     // 0 when not mentioned
	Note     string  `json:"note"`
	Message  string  `json:"message"` // reply for the user when action is unknown

	RawResponse string `json:"-"`
}

// CompletedAt resolves Date in now's location. Missing, invalid or future
// dates resolve to now.
func (l *ServiceLog) CompletedAt(now time.Time) time.Time {
	if l.Date == "" {
		return now
	}
	d, err := time.ParseInLocation(time.DateOnly, l.Date, now.Location())
	if err != nil || d.After(now) {
		return now
	}
	return d
}

// CostPtr returns the cost, or nil when none was mentioned.
func (l *ServiceLog) CostPtr() *float64 {
	if l.Cost <= 0 {
		return nil
	}
	cost := l.Cost
	return &cost
}

const systemPromptTemplate = `You are the assistant of Upkeep, a vehicle maintenance log.
Convert the user's message into one structured action.

Current date: %s

Known vehicles: %s
Known maintenance items: %s

Actions:
- log_service: the user completed a maintenance item (vehicle, item, optional odometer, date, cost, note)
- update_odometer: the user reports a new odometer reading (vehicle, odometer)
- unknown: anything else; answer briefly in message

Rules:
1. Use the closest known vehicle and item names exactly as listed. If only one vehicle exists, use it.
2. Resolve relative dates ("yesterday", "last friday") to YYYY-MM-DD. Leave date empty for today.
3. Odometer and cost are plain numbers without separators or units; use 0 when not mentioned.
4. Never invent a reading or cost the user did not give.`

func systemPrompt(now time.Time, vehicles, items []string) string {
	list := func(names []string) string {
		if len(names) == 0 {
			return "(none)"
		}
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf(systemPromptTemplate, now.Format("2006-01-02 (Monday)"), list(vehicles), list(items))
}

// JSON Schema for structured output
var serviceLogSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"action": {
			"type": "string",
			"enum": ["log_service", "update_odometer", "unknown"]
		},
		"vehicle": {"type": "string"},
		"item": {"type": "string"},
		"odometer": {"type": "integer", "minimum": 0},
		"date": {"type": "string", "description": "YYYY-MM-DD or empty"},
		"cost": {"type": "number", "minimum": 0},
		"note": {"type": "string"},
		"message": {"type": "string"}
	},
	"required": ["action", "vehicle", "item", "odometer", "date", "cost", "note", "message"],
	"additionalProperties": false
}`)

// ParseServiceLog interprets text against the known vehicle and item names.
func (c *Client) ParseServiceLog(ctx context.Context, text string, now time.Time, vehicles, items []string) (*ServiceLog, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt(now, vehicles, items),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "service_log",
				Schema: serviceLogSchema,
				Strict: true,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call AI API: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from AI")
	}

	content := resp.Choices[0].Message.Content
	log := &ServiceLog{RawResponse: content}
	if err := json.Unmarshal([]byte(content), log); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}
	if log.Action == "" {
		log.Action = ActionUnknown
	}
	return log, nil
}
