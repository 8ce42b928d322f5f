package device

import "strings"

// Single-character codes understood by the device firmware.
const (
	CodeForward  = "F"
	CodeBackward = "B"
	CodeLeft     = "L"
	CodeRight    = "R"
	CodeStop     = "S"
)

// keywordRules is checked in order, first match wins. "turn left and
// go forward" maps to F because the forward rule is checked first.
var keywordRules = []struct {
	keywords []string
	code     string
}{
	{[]string{"forward", "ahead", "go"}, CodeForward},
	{[]string{"left"}, CodeLeft},
	{[]string{"right"}, CodeRight},
	{[]string{"back", "backward", "reverse"}, CodeBackward},
	{[]string{"stop", "halt", "pause"}, CodeStop},
}

// CommandCode maps a label or free-text phrase to a device code. Text
// matching no keyword maps to the fail-safe stop.
func CommandCode(text string) string {
	lowered := strings.ToLower(text)

	for _, rule := range keywordRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.code
			}
		}
	}

	return CodeStop
}
