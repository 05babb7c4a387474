package gemini

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"gitlab.com/yelinaung/ledger-bot/internal/logger"
	"gitlab.com/yelinaung/ledger-bot/internal/models"
)

// MaxPlaceLength is the maximum place length embedded in a prompt.
const MaxPlaceLength = 200

const maxReasoningLength = 500

// ErrNoSuggestion is returned when the response holds no usable suggestion.
var ErrNoSuggestion = errors.New("no usable suggestion")

type suggestionResponse struct {
	Category   string  `json:"category"`
	Tag        string  `json:"tag"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Suggest guesses the category and tag of an expense from the place it
// was paid at. Both values are always members of the fixed lists.
func (c *Client) Suggest(ctx context.Context, place string) (models.Suggestion, error) {
	placeHash := hashPlace(place)

	if c == nil || c.generator == nil {
		return models.Suggestion{}, errors.New("gemini client not initialized")
	}
	sanitized := SanitizeForPrompt(place, MaxPlaceLength)
	if sanitized == "" {
		return models.Suggestion{}, errors.New("place is required")
	}

	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: buildSuggestionPrompt(sanitized)}},
	}}

	temp := float32(0.3)
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(300),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: "You are a JSON API. You MUST respond with ONLY valid JSON, no preamble or explanation. Output a single JSON object."},
			},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"category":   {Type: genai.TypeString, Enum: models.Categories},
				"tag":        {Type: genai.TypeString, Enum: models.Tags},
				"confidence": {Type: genai.TypeNumber, Description: "Confidence score between 0 and 1"},
				"reasoning":  {Type: genai.TypeString, Description: "Brief explanation"},
			},
			Required: []string{"category", "tag", "confidence"},
		},
	}

	resp, err := c.generator.GenerateContent(ctx, ModelName, contents, config)
	if err != nil {
		logger.Log.Error().Err(err).Str("place_hash", placeHash).Msg("Suggest: Gemini API call failed")
		return models.Suggestion{}, fmt.Errorf("gemini API call failed: %w", err)
	}
	if resp == nil {
		return models.Suggestion{}, fmt.Errorf("%w: empty response", ErrNoSuggestion)
	}

	jsonText := extractJSON(resp.Text())
	if jsonText == "" {
		logger.Log.Warn().Str("place_hash", placeHash).Msg("Suggest: no JSON found in Gemini response")
		return models.Suggestion{}, fmt.Errorf("%w: no JSON in response", ErrNoSuggestion)
	}

	var parsed suggestionResponse
	if err := json.Unmarshal([]byte(jsonText), &parsed); err != nil {
		return models.Suggestion{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	suggestion := models.Suggestion{
		Category:   matchChoice(parsed.Category, models.Categories),
		Tag:        matchChoice(parsed.Tag, models.Tags),
		Confidence: parsed.Confidence,
		Reasoning:  sanitizeReasoning(parsed.Reasoning),
	}
	if suggestion.Category == "" && suggestion.Tag == "" {
		logger.Log.Warn().
			Str("place_hash", placeHash).
			Str("category", parsed.Category).
			Str("tag", parsed.Tag).
			Msg("Suggest: suggestion outside the allowed lists")
		return models.Suggestion{}, fmt.Errorf("%w: %q/%q", ErrNoSuggestion, parsed.Category, parsed.Tag)
	}
	if suggestion.Confidence < 0 || suggestion.Confidence > 1 {
		return models.Suggestion{}, fmt.Errorf("confidence out of range: %f", suggestion.Confidence)
	}

	logger.Log.Debug().
		Str("place_hash", placeHash).
		Str("category", suggestion.Category).
		Str("tag", suggestion.Tag).
		Float64("confidence", suggestion.Confidence).
		Msg("Suggest: parsed Gemini suggestion")
	return suggestion, nil
}

// matchChoice returns the list entry equal to value ignoring case, or "".
func matchChoice(value string, choices []string) string {
	for _, c := range choices {
		if strings.EqualFold(c, strings.TrimSpace(value)) {
			return c
		}
	}
	return ""
}

func buildSuggestionPrompt(place string) string {
	return fmt.Sprintf(`Classify an expense paid at: "%s"

Categories:
- %s

Tags:
- %s

Rules:
- Choose exactly one category and one tag from the lists
- "Transportation" for taxi, fuel, bus, train and flights
- "Accommodation" for hotels and rentals
- Higher confidence (0.8-1.0) for obvious places, lower (0.5-0.7) for ambiguous ones

Return JSON only:
{"category": "exact category", "tag": "exact tag", "confidence": 0.0-1.0, "reasoning": "brief explanation"}`,
		place, strings.Join(models.Categories, "\n- "), strings.Join(models.Tags, "\n- "))
}

// extractJSON extracts a JSON object from text that may contain preamble.
// Gemini sometimes returns responses like "Here is the JSON:\n{...}" even
// when ResponseMIMEType is set to application/json.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(text, "}")
	if end == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// SanitizeForPrompt strips characters that could break the prompt
// structure, collapses whitespace and truncates to maxLength bytes.
func SanitizeForPrompt(input string, maxLength int) string {
	input = strings.ReplaceAll(input, `"`, `'`)
	input = strings.ReplaceAll(input, "`", "'")
	input = strings.ReplaceAll(input, "\x00", "")
	input = strings.Join(strings.Fields(input), " ")

	if len(input) > maxLength {
		input = strings.TrimSpace(strings.ToValidUTF8(input[:maxLength], ""))
	}
	return input
}

func sanitizeReasoning(reasoning string) string {
	reasoning = strings.Join(strings.Fields(reasoning), " ")
	if len(reasoning) > maxReasoningLength {
		reasoning = strings.TrimSpace(strings.ToValidUTF8(reasoning[:maxReasoningLength], ""))
	}
	return reasoning
}

// hashPlace creates a short SHA256 digest of the place for logging.
func hashPlace(place string) string {
	hash := sha256.Sum256([]byte(place))
	return hex.EncodeToString(hash[:8])
}
