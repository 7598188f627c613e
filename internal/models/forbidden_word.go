package models

const (
	LanguageEnglish = "en"
	LanguageArabic  = "ar"
)

// ForbiddenWord is one moderated entry. English entries may hold several
// space-separated words; Arabic entries are matched as a whole.
type ForbiddenWord struct {
	Word     string `json:"word" db:"word"`
	Language string `json:"language" db:"language"`
}

// WordList is the normalized form of the forbidden words, as cached.
type WordList struct {
	En []string `json:"en"`
	Ar []string `json:"ar"`
}

func (l WordList) Len() int { return len(l.En) + len(l.Ar) }
