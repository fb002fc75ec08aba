package catalogue

import (
	"strings"
	"unicode/utf8"
)

// MinQueryLength is the shortest query Search answers; shorter queries
// return an empty result rather than an error.
const MinQueryLength = 3

// Store exposes catalogue lookup for HTTP handlers.
type Store interface {
	List() []Entry
	FindByID(id int) (Entry, bool)
	Search(query string) []Entry
}

// SearchFields picks the entry fields a catalogue matches queries against.
type SearchFields func(Entry) []string

// SongFields matches on title, artist, genre and year.
func SongFields(e Entry) []string {
	return []string{e.Title, e.Artist, e.Genre, e.Year}
}

// KaraokeFields matches on title, artist, difficulty and genre.
func KaraokeFields(e Entry) []string {
	return []string{e.Title, e.Artist, e.Difficulty, e.Genre}
}

// MemoryStore implements Store with an in-memory slice loaded once at startup.
type MemoryStore struct {
	items  []Entry
	fields SearchFields
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied entries.
func NewMemoryStore(items []Entry, fields SearchFields) *MemoryStore {
	if fields == nil {
		fields = SongFields
	}
	return &MemoryStore{items: append([]Entry(nil), items...), fields: fields}
}

// List returns every entry.
func (s *MemoryStore) List() []Entry {
	return append([]Entry(nil), s.items...)
}

// FindByID looks up an entry by identifier.
func (s *MemoryStore) FindByID(id int) (Entry, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Entry{}, false
}

// Search returns entries with any search field containing query,
// case-insensitively.
func (s *MemoryStore) Search(query string) []Entry {
	q := strings.ToLower(query)
	matches := make([]Entry, 0)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return matches
	}

	for _, item := range s.items {
		for _, field := range s.fields(item) {
			if field != "" && strings.Contains(strings.ToLower(field), q) {
				matches = append(matches, item)
				break
			}
		}
	}
	return matches
}
