package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

const (
	forbiddenWordsKey   = "forbidden_words"
	DefaultWordCacheTTL = time.Hour
)

// nonWordRunes strips punctuation from a token, keeping ASCII word characters
// and the Arabic block.
var nonWordRunes = regexp.MustCompile(`[^A-Za-z0-9_\x{0600}-\x{06FF}]+`)

// WordFilter matches message text against the moderated word list. The list is
// read from the store and cached in redis; lookups that fail let the text through.
type WordFilter struct {
	rdb   redis.UniversalClient
	words repositories.ForbiddenWordRepository
	ttl   time.Duration
	log   zerolog.Logger
}

func NewWordFilter(rdb redis.UniversalClient, words repositories.ForbiddenWordRepository, ttl time.Duration, log zerolog.Logger) *WordFilter {
	if ttl <= 0 {
		ttl = DefaultWordCacheTTL
	}
	return &WordFilter{rdb: rdb, words: words, ttl: ttl, log: log}
}

// Reload rebuilds the cached list from the store.
func (f *WordFilter) Reload(ctx context.Context) (models.WordList, error) {
	rows, err := f.words.List(ctx)
	if err != nil {
		return models.WordList{}, fmt.Errorf("list forbidden words: %w", err)
	}
	list := BuildWordList(rows)
	raw, err := json.Marshal(list)
	if err != nil {
		return models.WordList{}, fmt.Errorf("encode forbidden words: %w", err)
	}
	if err := f.rdb.Set(ctx, forbiddenWordsKey, raw, f.ttl).Err(); err != nil {
		return models.WordList{}, fmt.Errorf("cache forbidden words: %w", err)
	}
	return list, nil
}

// Words returns the cached list, loading it on a miss.
func (f *WordFilter) Words(ctx context.Context) (models.WordList, error) {
	raw, err := f.rdb.Get(ctx, forbiddenWordsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return f.Reload(ctx)
	}
	if err != nil {
		return models.WordList{}, fmt.Errorf("read forbidden words: %w", err)
	}
	var list models.WordList
	if err := json.Unmarshal(raw, &list); err != nil {
		f.log.Warn().Err(err).Msg("cached forbidden words unreadable, reloading")
		return f.Reload(ctx)
	}
	return list, nil
}

// ContainsForbidden reports whether any token of text is on the list.
func (f *WordFilter) ContainsForbidden(ctx context.Context, text string) bool {
	list, err := f.Words(ctx)
	if err != nil {
		f.log.Warn().Err(err).Msg("forbidden words unavailable, message not filtered")
		return false
	}
	return MatchesWordList(list, text)
}

// BuildWordList lowercases and dedups the entries. English entries are split into
// words; Arabic entries stay whole.
func BuildWordList(rows []models.ForbiddenWord) models.WordList {
	list := models.WordList{En: []string{}, Ar: []string{}}
	seen := map[string]bool{}
	add := func(dst *[]string, lang, w string) {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[lang+":"+w] {
			return
		}
		seen[lang+":"+w] = true
		*dst = append(*dst, w)
	}
	for _, row := range rows {
		switch row.Language {
		case models.LanguageArabic:
			add(&list.Ar, models.LanguageArabic, row.Word)
		default:
			for _, w := range strings.Fields(row.Word) {
				add(&list.En, models.LanguageEnglish, w)
			}
		}
	}
	return list
}

// MatchesWordList compares whole tokens only, so "scarf" does not match "car".
func MatchesWordList(list models.WordList, text string) bool {
	if list.Len() == 0 {
		return false
	}
	set := make(map[string]struct{}, list.Len())
	for _, w := range list.En {
		set[w] = struct{}{}
	}
	for _, w := range list.Ar {
		set[w] = struct{}{}
	}
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = nonWordRunes.ReplaceAllString(token, "")
		if token == "" {
			continue
		}
		if _, ok := set[token]; ok {
			return true
		}
	}
	return false
}
