package dialogue

import "fmt"

const promptTemplate = "Generate a natural dialogue in English for the following scene: %s. " +
	"The dialogue should be realistic, include at least 3 speakers, and cover common expressions " +
	"and phrases used in this situation. Format the dialogue with speaker names and their lines."

// Prompt builds the dialogue instruction for a scene title or custom prompt.
func Prompt(scene string) string {
	return fmt.Sprintf(promptTemplate, scene)
}
