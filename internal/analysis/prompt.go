package analysis

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the single instruction sent with the screen images.
func BuildPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze these screen captures and determine if the user is focused on their task: %q\n\n", req.Task)

	if ctx := strings.TrimSpace(req.PersonalContext); ctx != "" {
		b.WriteString("About the user:\n")
		b.WriteString(ctx)
		b.WriteString("\n\n")
	}
	if fb := strings.TrimSpace(req.FeedbackContext); fb != "" {
		b.WriteString(fb)
		b.WriteString("\n\n")
	}

	b.WriteString("Consider:\n")
	b.WriteString("- Is the content related to the task?\n")
	b.WriteString("- Are they on social media, games, or other distractions?\n")
	b.WriteString("- Is this productive work?\n")
	b.WriteString("- What specific applications or websites are visible?\n\n")

	if len(req.Images) > 0 {
		b.WriteString("Screens, in the order the images are attached:\n")
		for i, img := range req.Images {
			name := img.Name
			if name == "" {
				name = img.ScreenID
			}
			fmt.Fprintf(&b, "- screen%d: %s\n", i+1, name)
		}
		b.WriteString("\n")
	}

	b.WriteString("Respond with a single JSON object and nothing else:\n")
	b.WriteString(`{
  "isDistracted": true/false,
  "reason": "brief explanation of what you see",
  "confidence": 0.0-1.0,
  "detectedApps": ["list of visible applications/websites"],
  "analysis": "detailed analysis of the screen content",
  "screenDescriptions": {"screen1": "description of what's on screen 1"},
  "aiMessage": "a brief witty, motivational, or sarcastic message depending on whether they are focused or distracted"
}`)
	b.WriteString("\n")

	return b.String()
}
