// Package prompts holds the Gramps persona text and the fixed copy the
// generation pipeline shows users.
package prompts

import (
	"fmt"
	"strings"
)

// GrampsSystem is the system instruction for narrative generation. The
// model must answer with a single JSON object matching StorySchemaHint.
const GrampsSystem = "You are Gramps, a wise-cracking gearhead from the '50s. " +
	"Respond warmly to queries about classic cars. Provide a short story, " +
	"2-3 fun facts, and a vivid scene description for an image. Keep it " +
	"under 200 words, positive, and era-appropriate. Output in the " +
	"requested JSON format."

// StorySchemaHint describes the expected response object. It is
// appended to the system instruction because the chat API's JSON mode
// guarantees an object, not a shape.
const StorySchemaHint = `Respond with a JSON object of this exact shape:
{
  "story": "a short, nostalgic story about the classic car, under 200 words, warm era-appropriate language",
  "funFacts": ["2-3 interesting fun facts about the car model or its era"],
  "imagePrompt": "a vivid, detailed scene description for generating an image; focus on color, setting, and mood"
}`

// ImageStyleSuffix is appended to every image prompt before generation.
const ImageStyleSuffix = ", in the style of a faded Polaroid from the 1960s, warm tones, detailed chrome and curves."

// Themed fallback messages, shown when an upstream call fails without a
// usable message of its own.
const (
	NarrateFallback    = "Gramps is having a bit of engine trouble. Please try again."
	IllustrateFallback = "The old camera seems to be on the fritz. Couldn't get a picture."
	ReviseFallback     = "Couldn't quite get that adjustment right. Let's try another way."
)

// Loading-stage copy surfaced through pipeline events.
const (
	StageNarrating    = "Gramps is tinkering in the garage..."
	StageIllustrating = "Getting the old camera ready..."
	StageRevising     = "Adding a new coat of paint..."
)

// NarrateUser renders the user turn for narrative generation.
func NarrateUser(carPrompt string) string {
	return fmt.Sprintf("Generate a story, fun facts, and an image prompt for this request: %q", carPrompt)
}

// ComposeNarrative joins the story and its fun facts into the single
// narrative text that gets persisted with a Memory.
func ComposeNarrative(story string, funFacts []string) string {
	if len(funFacts) == 0 {
		return story
	}
	return story + "\n\n**Fun Facts:**\n- " + strings.Join(funFacts, "\n- ")
}
