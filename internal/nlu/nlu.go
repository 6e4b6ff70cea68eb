// Package nlu provides intent detection and free-text answering backed
// by the Gemini API, with keyword matching as the offline fallback.
package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/helpline1930/helpline/internal/conversation"
)

// Client answers classification and free-text requests. It implements
// both conversation.Classifier and conversation.Responder. The genai
// client needs a context to construct, so it is created on first use.
type Client struct {
	apiKey string
	model  string

	mu     sync.Mutex
	client *genai.Client
}

// Opts holds parameters for creating a Client.
type Opts struct {
	APIKey string // empty means keyword fallback only
	Model  string
}

// NewClient creates a Client.
func NewClient(opts Opts) (*Client, error) {
	if opts.Model == "" {
		return nil, fmt.Errorf("nlu: model is required")
	}
	return &Client{apiKey: opts.APIKey, model: opts.Model}, nil
}

func (c *Client) ensureClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("nlu: no API key configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("nlu: create client: %w", err)
	}
	c.client = client
	return client, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	client, err := c.ensureClient(ctx)
	if err != nil {
		return "", err
	}
	result, err := client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("nlu: generate: %w", err)
	}
	if result == nil {
		return "", fmt.Errorf("nlu: empty response")
	}
	return strings.TrimSpace(result.Text()), nil
}

const intentPrompt = `You are an assistant for the 1930 Cyber Crime Helpline, Odisha.
Analyze the user's message and determine their intent.

User message: %q

Possible intents:
1. new_complaint_financial - financial fraud (money lost, scammed, UPI fraud, payment issues)
2. new_complaint_social - social media fraud (hacked account, fake account, impersonation)
3. status_check - check the status of an existing complaint
4. account_unfreeze - unfreeze/unblock a bank account
5. other_query - a general question or request for guidance

Respond ONLY with a JSON object in this exact format:
{"intent": "intent_name", "confidence": 0.0, "reasoning": "brief explanation"}`

// DetectIntent classifies a free-text message. Model failures fall back
// to keyword matching rather than erroring, so an outage degrades to
// weaker routing instead of a broken bot.
func (c *Client) DetectIntent(ctx context.Context, text string) (conversation.Intent, float64, error) {
	raw, err := c.generate(ctx, fmt.Sprintf(intentPrompt, text))
	if err != nil {
		intent, confidence := keywordIntent(text)
		return intent, confidence, nil
	}

	intent, confidence, err := parseIntentResponse(raw)
	if err != nil {
		log.Printf("nlu: parse intent response: %v", err)
		intent, confidence := keywordIntent(text)
		return intent, confidence, nil
	}
	return intent, confidence, nil
}

// parseIntentResponse decodes the model's JSON reply, tolerating the
// markdown code fences Gemini tends to wrap it in.
func parseIntentResponse(raw string) (conversation.Intent, float64, error) {
	var payload struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return conversation.IntentUnknown, 0, fmt.Errorf("nlu: decode %q: %w", raw, err)
	}
	intent := conversation.Intent(payload.Intent)
	switch intent {
	case conversation.IntentFinancial, conversation.IntentSocial,
		conversation.IntentStatus, conversation.IntentUnfreeze, conversation.IntentOther:
		return intent, payload.Confidence, nil
	}
	return conversation.IntentUnknown, 0, nil
}

// stripFences removes a surrounding markdown code block if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```json"); ok {
		s = after
	} else if after, ok := strings.CutPrefix(s, "```"); ok {
		s = after
	} else {
		return s
	}
	if before, _, ok := strings.Cut(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

// intentKeywords is the fallback classification table.
var intentKeywords = map[conversation.Intent][]string{
	conversation.IntentFinancial: {
		"scammed", "fraud", "money stuck", "lost money", "cheated", "fraudulent transaction",
		"upi fraud", "payment fraud", "stuck", "money", "payment", "transaction", "upi",
		"debit card", "credit card", "bank", "transfer", "scam", "fraudulent",
	},
	conversation.IntentSocial: {
		"account hacked", "fake account", "impersonation", "social media", "facebook",
		"instagram", "whatsapp hacked", "hacked", "fake", "impersonat", "twitter", "x.com",
		"telegram", "gmail", "youtube", "account",
	},
	conversation.IntentStatus: {
		"status", "complaint status", "reference number", "acknowledgement", "check my complaint",
		"check status", "where is", "what is the status", "track",
	},
	conversation.IntentUnfreeze: {
		"account frozen", "account blocked", "unfreeze", "account locked", "bank account",
		"frozen", "blocked", "locked", "unblock", "unlock",
	},
	conversation.IntentOther: {
		"help", "information", "guidance", "how to", "what to do", "advice", "question",
		"query", "tell me", "explain", "guide",
	},
}

// keywordIntent scores each intent by keyword hits. Confidence grows
// with the hit count and is capped below the model's typical range.
func keywordIntent(text string) (conversation.Intent, float64) {
	low := strings.ToLower(text)
	best := conversation.IntentUnknown
	bestConfidence := 0.0
	for _, intent := range []conversation.Intent{
		conversation.IntentFinancial, conversation.IntentSocial,
		conversation.IntentStatus, conversation.IntentUnfreeze, conversation.IntentOther,
	} {
		matches := 0
		for _, kw := range intentKeywords[intent] {
			if strings.Contains(low, kw) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		confidence := 0.3 + float64(matches)*0.15
		if confidence > 0.8 {
			confidence = 0.8
		}
		if confidence > bestConfidence {
			bestConfidence = confidence
			best = intent
		}
	}
	return best, bestConfidence
}

const answerPrompt = `You are a helpful assistant for the 1930 Cyber Crime Helpline, Odisha.
The user has asked: %q

Provide a helpful, concise response (max 300 words) that:
1. Answers their question if it's about cybercrime, fraud, or the helpline
2. Guides them to the appropriate option (A for new complaint, B for status check,
   C for account unfreeze) when relevant
3. Reminds them they can call 1930 directly for urgent matters`

// AnswerQuery answers a free-form question. The caller supplies the
// canned fallback, so an unavailable model is surfaced as an error.
func (c *Client) AnswerQuery(ctx context.Context, text string) (string, error) {
	return c.generate(ctx, fmt.Sprintf(answerPrompt, text))
}

const clarifyPrompt = `You are an assistant for the 1930 Cyber Crime Helpline, Odisha.
The user was asked: %q
They replied: %q which does not match any offered option.

In one or two sentences, gently explain that the reply wasn't recognized and
ask them to pick one of the offered options. Do not list the options.`

// ClarifySelection produces a short explanation for an unrecognized
// menu reply.
func (c *Client) ClarifySelection(ctx context.Context, text, prompt string) (string, error) {
	return c.generate(ctx, fmt.Sprintf(clarifyPrompt, prompt, text))
}
