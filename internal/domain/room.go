package domain

import "time"

// ChatRoom binds a user to a character prompt snapshot.
type ChatRoom struct {
	ChatID           string
	UserIdx          int
	PromptID         int
	Favorability     int
	UserUniqueName   *string
	UserIntroduction *string
	CreatedAt        time.Time
}

// RoomDetail is a chat room joined with the character and prompt it was
// created from.
type RoomDetail struct {
	Room      ChatRoom
	Character Character
	Prompt    CharacterPrompt
}
