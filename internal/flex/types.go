// Package flex builds LINE flex message documents. The JSON produced by these
// types follows the LINE Messaging API schema field for field.
package flex

// Message is anything that can be placed in a reply or push "messages" array.
type Message interface {
	MessageType() string
}

// Component is a node inside a bubble.
type Component interface {
	ComponentType() string
}

type TextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (m *TextMessage) MessageType() string { return m.Type }

type FlexMessage struct {
	Type     string  `json:"type"`
	AltText  string  `json:"altText"`
	Contents *Bubble `json:"contents"`
}

func (m *FlexMessage) MessageType() string { return m.Type }

type Bubble struct {
	Type   string        `json:"type"`
	Hero   *Image        `json:"hero,omitempty"`
	Header *Box          `json:"header,omitempty"`
	Body   *Box          `json:"body,omitempty"`
	Footer *Box          `json:"footer,omitempty"`
	Styles *BubbleStyles `json:"styles,omitempty"`
}

type BubbleStyles struct {
	Header *BlockStyle `json:"header,omitempty"`
	Hero   *BlockStyle `json:"hero,omitempty"`
	Body   *BlockStyle `json:"body,omitempty"`
	Footer *BlockStyle `json:"footer,omitempty"`
}

type BlockStyle struct {
	BackgroundColor string `json:"backgroundColor,omitempty"`
	Separator       bool   `json:"separator,omitempty"`
}

type Box struct {
	Type            string      `json:"type"`
	Layout          string      `json:"layout"`
	Contents        []Component `json:"contents"`
	Margin          string      `json:"margin,omitempty"`
	BackgroundColor string      `json:"backgroundColor,omitempty"`
}

func (b *Box) ComponentType() string { return b.Type }

type Text struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Weight string `json:"weight,omitempty"`
	Size   string `json:"size,omitempty"`
	Color  string `json:"color,omitempty"`
	Align  string `json:"align,omitempty"`
	Margin string `json:"margin,omitempty"`
	Flex   int    `json:"flex,omitempty"`
	Wrap   bool   `json:"wrap,omitempty"`
}

func (t *Text) ComponentType() string { return t.Type }

type Image struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	Size        string `json:"size,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
	AspectMode  string `json:"aspectMode,omitempty"`
}

func (i *Image) ComponentType() string { return i.Type }

type Separator struct {
	Type   string `json:"type"`
	Margin string `json:"margin,omitempty"`
}

func (s *Separator) ComponentType() string { return s.Type }

type Button struct {
	Type   string `json:"type"`
	Action Action `json:"action"`
	Style  string `json:"style,omitempty"`
	Margin string `json:"margin,omitempty"`
}

func (b *Button) ComponentType() string { return b.Type }

// Action is a message action: tapping it sends Text as if the user typed it.
type Action struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Text  string `json:"text"`
}
