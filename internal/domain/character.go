package domain

import "time"

// Character is a public character profile authored by a user.
type Character struct {
	CharIdx     int
	UserIdx     string
	FieldIdx    string
	VoiceIdx    string
	Name        string
	Description string
	// Nicknames maps favorability thresholds ("30", "70", "100") to the name
	// the character calls the user at that level.
	Nicknames map[string]string
	Follows   int
	IsActive  bool
	CreatedAt time.Time
}

// DefaultNicknames is applied when a character is created without explicit
// favorability nicknames.
func DefaultNicknames() map[string]string {
	return map[string]string{"30": "stranger", "70": "friend", "100": "best friend"}
}

// CharacterPrompt is a versioned prompt sheet for a character. Rooms snapshot
// the latest prompt at creation time, so editing a character never rewrites
// history in existing rooms.
type CharacterPrompt struct {
	PromptID    int
	CharIdx     int
	Appearance  string
	Personality string
	Background  string
	SpeechStyle string
	// ExampleDialogues holds JSON-encoded dialogue exchanges.
	ExampleDialogues []string
	CreatedAt        time.Time
}

// CharacterDetail bundles a character with its latest prompt sheet.
type CharacterDetail struct {
	Character
	Prompt CharacterPrompt
}
