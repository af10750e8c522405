package domain

// Voice is a selectable TTS voice model.
type Voice struct {
	VoiceIdx string
	Path     string
	Speaker  string
}

// Field is a character genre/category.
type Field struct {
	FieldIdx int
	Category string
}
