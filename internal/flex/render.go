package flex

import (
	"strconv"
	"strings"

	"github.com/vbonduro/foodbot/internal/vision"
)

const (
	colorHeader  = "#27ACB2"
	colorSection = "#1DB446"
	colorLabel   = "#555555"
	colorValue   = "#111111"
	colorError   = "#ff0000"
	colorWhite   = "#ffffff"

	// RetryText is what the card buttons send back; the bot treats it as a
	// request for instructions.
	RetryText = "Analyze food"

	noAlternatives = "No specific alternatives provided"
	unnamedItem    = "Unnamed item"
)

// Titles and messages for the error cards.
const (
	TitleAnalysisError   = "Analysis Error"
	TitleNoFood          = "No Food Detected"
	TitleRetrievalError  = "Retrieval Error"
	DefaultAnalysisError = "There was an error analyzing the food."
	NoFoodMessage        = "The image you sent doesn't appear to contain any food items."
	RetrievalMessage     = "I couldn't download your photo from LINE. Please send it again."
)

// Render projects an analysis result onto a card. heroURL, when not empty, is
// shown as the card's hero image.
func Render(result *vision.AnalysisResult, heroURL string) *FlexMessage {
	switch {
	case result == nil:
		return ErrorCard(TitleAnalysisError, DefaultAnalysisError, heroURL)
	case result.Error != "":
		msg := result.Message
		if msg == "" {
			msg = DefaultAnalysisError
		}
		return ErrorCard(TitleAnalysisError, msg, heroURL)
	case !result.ContainsFood:
		return ErrorCard(TitleNoFood, NoFoodMessage, heroURL)
	default:
		return AnalysisCard(result, heroURL)
	}
}

func AnalysisCard(result *vision.AnalysisResult, heroURL string) *FlexMessage {
	body := []Component{sectionTitle("Food Items", "")}
	for _, item := range result.Items {
		// LINE rejects text components with empty text.
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = unnamedItem
		}
		body = append(body, &Box{
			Type:   "box",
			Layout: "horizontal",
			Margin: "md",
			Contents: []Component{
				&Text{Type: "text", Text: name, Size: "sm", Color: colorLabel, Flex: 5, Wrap: true},
				&Text{Type: "text", Text: calories(item.Calories), Size: "sm", Color: colorValue, Align: "end", Flex: 2},
			},
		})
	}
	body = append(body,
		&Box{
			Type:   "box",
			Layout: "horizontal",
			Margin: "md",
			Contents: []Component{
				&Text{Type: "text", Text: "Total Calories:", Size: "sm", Color: colorLabel, Weight: "bold", Flex: 5},
				&Text{Type: "text", Text: calories(result.TotalCalories), Size: "sm", Color: colorValue, Weight: "bold", Align: "end", Flex: 2},
			},
		},
		&Separator{Type: "separator", Margin: "xl"},
		sectionTitle("Nutrition", "xl"),
		&Box{
			Type:   "box",
			Layout: "vertical",
			Margin: "md",
			Contents: []Component{
				macroRow("Protein:", result.TotalProtein, ""),
				macroRow("Carbs:", result.TotalCarbs, "sm"),
				macroRow("Fat:", result.TotalFat, "sm"),
			},
		},
	)

	alternatives := result.HealthierAlternatives
	if alternatives == "" {
		alternatives = noAlternatives
	}

	return &FlexMessage{
		Type:    "flex",
		AltText: "Food Analysis Results",
		Contents: &Bubble{
			Type: "bubble",
			Hero: hero(heroURL),
			Header: &Box{
				Type:   "box",
				Layout: "vertical",
				Contents: []Component{
					&Text{Type: "text", Text: "Food Analysis", Weight: "bold", Size: "xl", Color: colorWhite},
				},
				BackgroundColor: colorHeader,
			},
			Body: &Box{Type: "box", Layout: "vertical", Contents: body},
			Footer: &Box{
				Type:   "box",
				Layout: "vertical",
				Contents: []Component{
					&Text{Type: "text", Text: "Healthier Alternatives", Weight: "bold", Color: colorSection, Size: "sm"},
					&Text{Type: "text", Text: alternatives, Wrap: true, Size: "xs", Margin: "md"},
					retryButton("Analyze Another Food", "md"),
				},
			},
			Styles: &BubbleStyles{Footer: &BlockStyle{Separator: true}},
		},
	}
}

func ErrorCard(title, message, heroURL string) *FlexMessage {
	return &FlexMessage{
		Type:    "flex",
		AltText: title,
		Contents: &Bubble{
			Type: "bubble",
			Hero: hero(heroURL),
			Body: &Box{
				Type:   "box",
				Layout: "vertical",
				Contents: []Component{
					&Text{Type: "text", Text: title, Weight: "bold", Size: "xl", Color: colorError},
					&Text{Type: "text", Text: message, Wrap: true, Margin: "md"},
				},
			},
			Footer: &Box{
				Type:     "box",
				Layout:   "vertical",
				Contents: []Component{retryButton("Try Again", "")},
			},
		},
	}
}

func NewTextMessage(text string) *TextMessage {
	return &TextMessage{Type: "text", Text: text}
}

func hero(url string) *Image {
	if url == "" {
		return nil
	}
	return &Image{Type: "image", URL: url, Size: "full", AspectRatio: "20:13", AspectMode: "cover"}
}

func sectionTitle(text, margin string) *Text {
	return &Text{Type: "text", Text: text, Weight: "bold", Color: colorSection, Size: "md", Margin: margin}
}

func macroRow(label string, grams float64, margin string) *Box {
	return &Box{
		Type:   "box",
		Layout: "horizontal",
		Margin: margin,
		Contents: []Component{
			&Text{Type: "text", Text: label, Size: "sm", Color: colorLabel, Flex: 3},
			&Text{Type: "text", Text: number(grams) + "g", Size: "sm", Color: colorValue, Align: "end", Flex: 2},
		},
	}
}

func retryButton(label, margin string) *Button {
	return &Button{
		Type:   "button",
		Action: Action{Type: "message", Label: label, Text: RetryText},
		Style:  "primary",
		Margin: margin,
	}
}

func calories(v float64) string {
	return number(v) + " cal"
}

// number prints v without a trailing fraction when it is whole.
func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
