package dialogflow

import (
	"fmt"

	"github.com/vbonduro/foodbot/internal/flex"
)

const (
	IntentWelcome       = "Default Welcome Intent"
	IntentFoodAnalyze   = "food.analyze"
	IntentNutritionInfo = "nutrition.info"
)

const (
	welcomeText  = "Hello! I can analyze your food photos and provide nutritional information. Send me a picture of your food or ask me about nutrition!"
	analyzeText  = "Please send me a photo of your food to analyze!"
	whichFood    = "Which food item would you like nutritional information for?"
	fallbackText = "I'm here to help with food analysis and nutrition information. Send me a food photo to analyze or ask me about specific foods!"
	ErrorText    = "I'm sorry, I encountered an error processing your request. Please try again later."
)

// WebhookRequest is the subset of a Dialogflow ES fulfillment request we read.
type WebhookRequest struct {
	ResponseID  string      `json:"responseId"`
	Session     string      `json:"session"`
	QueryResult QueryResult `json:"queryResult"`
}

type QueryResult struct {
	QueryText  string         `json:"queryText"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
	Intent     Intent         `json:"intent"`
}

type Intent struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type WebhookResponse struct {
	FulfillmentText     string               `json:"fulfillmentText,omitempty"`
	FulfillmentMessages []FulfillmentMessage `json:"fulfillmentMessages,omitempty"`
}

type FulfillmentMessage struct {
	Platform string       `json:"platform"`
	Text     *MessageText `json:"text,omitempty"`
	Payload  *LinePayload `json:"payload,omitempty"`
}

type MessageText struct {
	Text []string `json:"text"`
}

type LinePayload struct {
	Line flex.Message `json:"line"`
}

// Respond builds a response with text for every platform followed by
// LINE specific messages.
func Respond(text string, messages ...flex.Message) WebhookResponse {
	resp := WebhookResponse{
		FulfillmentMessages: []FulfillmentMessage{
			{Platform: "PLATFORM_UNSPECIFIED", Text: &MessageText{Text: []string{text}}},
		},
	}
	for _, m := range messages {
		if m == nil {
			continue
		}
		resp.FulfillmentMessages = append(resp.FulfillmentMessages, FulfillmentMessage{
			Platform: "line",
			Payload:  &LinePayload{Line: m},
		})
	}
	return resp
}

func Fulfill(req WebhookRequest) WebhookResponse {
	switch req.QueryResult.Intent.DisplayName {
	case IntentWelcome:
		return Respond(welcomeText)
	case IntentFoodAnalyze:
		return Respond(analyzeText)
	case IntentNutritionInfo:
		food, _ := req.QueryResult.Parameters["food_item"].(string)
		if food == "" {
			return Respond(whichFood)
		}
		return Respond(fmt.Sprintf(
			"%s is generally a nutritious option. For detailed nutritional information, send me a photo of your %s and I'll analyze it for you!",
			food, food))
	default:
		return Respond(fallbackText)
	}
}
