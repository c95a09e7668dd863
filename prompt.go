package autodrip

// Prompt templates, one per level. The level 2 text is the house style; the
// others tone it down or push it further.
const (
	promptLowKey = "Give this photo a subtle, natural glow-up for instagram. " +
		"Keep the person recognisable, improve lighting, skin and styling, and add a quiet touch of aura.\n\n"

	promptHighKey = "Remake this image into a 10 out of 10 for instagram. " +
		"Upgrade its sex appeal to the opposite sex. Add Aura and rizz\n\n"

	promptMaxRizz = "Remake this image into an 11 out of 10 for instagram. " +
		"Go all in on sex appeal to the opposite sex: magazine-cover styling, dramatic lighting, " +
		"maximum aura and unmistakable rizz\n\n"
)

var promptTemplates = map[Level]string{
	LevelLowKey:  promptLowKey,
	LevelHighKey: promptHighKey,
	LevelMaxRizz: promptMaxRizz,
}

// PromptForLevel returns the instruction sent with the image. Levels outside
// 1..3 use the level 1 template.
func PromptForLevel(level Level) string {
	if p, ok := promptTemplates[level]; ok {
		return p
	}
	return promptLowKey
}
