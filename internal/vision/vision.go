package vision

import (
	"context"
	"io"
)

// Delimiters the model is asked to wrap its JSON answer in.
const (
	JSONStart = "<JSON_START>"
	JSONEnd   = "<JSON_END>"
)

// AnalysisPrompt is the shared prompt used by all vision adapters.
const AnalysisPrompt = `Analyze this image and respond with ONLY JSON in the following format:

If the image contains food or beverages:
{
  "containsFood": true,
  "items": [
    {
      "name": "Item name",
      "calories": number,
      "protein": number,
      "carbs": number,
      "fat": number
    }
  ],
  "totalCalories": number,
  "totalProtein": number,
  "totalCarbs": number,
  "totalFat": number,
  "healthierAlternatives": "Suggestions for healthier options"
}

If the image does NOT contain any food or beverages:
{
  "containsFood": false,
  "items": []
}

Wrap the JSON between ` + JSONStart + ` and ` + JSONEnd + ` markers.
Return ONLY valid JSON with no additional text. Round nutritional values to whole numbers.`

// Generation bounds shared by the adapters unless overridden.
const (
	DefaultMaxTokens   = 1000
	DefaultTemperature = float32(0.2)
)

type VisionAnalyzer interface {
	Analyze(ctx context.Context, r io.Reader, mimeType string) (*AnalysisResult, error)
}

// AnalysisResult is the structured answer of a vision backend. Totals are
// reported by the model and are not reconciled with the item values.
type AnalysisResult struct {
	ContainsFood          bool       `json:"containsFood"`
	Items                 []FoodItem `json:"items"`
	TotalCalories         float64    `json:"totalCalories"`
	TotalProtein          float64    `json:"totalProtein"`
	TotalCarbs            float64    `json:"totalCarbs"`
	TotalFat              float64    `json:"totalFat"`
	HealthierAlternatives string     `json:"healthierAlternatives,omitempty"`
	Error                 string     `json:"error,omitempty"`
	Message               string     `json:"message,omitempty"`
	RawResponse           string     `json:"-"`
}

type FoodItem struct {
	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// NoFood is the degraded result used whenever analysis cannot produce a
// trustworthy answer.
func NoFood() *AnalysisResult {
	return &AnalysisResult{ContainsFood: false, Items: []FoodItem{}}
}
