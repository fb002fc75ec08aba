// Package catalogue ingests the song (VirtualDJ XML) and karaoke (CSV)
// databases. A missing or malformed file falls back to the seed catalogue.
package catalogue

import (
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	model "github.com/mobiledjay/backend/internal/model/catalogue"
)

const unknown = "Unknown"

var ErrMissingColumn = errors.New("karaoke csv is missing a required column")

type virtualDJDatabase struct {
	XMLName xml.Name        `xml:"VirtualDJ_Database"`
	Songs   []virtualDJSong `xml:"Song"`
}

type virtualDJSong struct {
	Tags *struct {
		Title  string `xml:"Title,attr"`
		Author string `xml:"Author,attr"`
		Album  string `xml:"Album,attr"`
		Year   string `xml:"Year,attr"`
	} `xml:"Tags"`
}

// ParseSongsXML reads a VirtualDJ database. Songs without a title or an
// author are skipped; album stands in for genre.
func ParseSongsXML(r io.Reader) ([]model.Entry, error) {
	var db virtualDJDatabase
	if err := xml.NewDecoder(r).Decode(&db); err != nil {
		return nil, fmt.Errorf("decode song database: %w", err)
	}

	entries := make([]model.Entry, 0, len(db.Songs))
	for _, song := range db.Songs {
		if song.Tags == nil || song.Tags.Title == "" || song.Tags.Author == "" {
			continue
		}
		entries = append(entries, model.Entry{
			ID:     len(entries) + 1,
			Title:  song.Tags.Title,
			Artist: song.Tags.Author,
			Genre:  orUnknown(song.Tags.Album),
			Year:   orUnknown(song.Tags.Year),
		})
	}
	return entries, nil
}

// ParseKaraokeCSV reads a karaoke catalogue with Title, Artist and an
// optional Genre column. Header names are matched case-insensitively.
func ParseKaraokeCSV(r io.Reader) ([]model.Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read karaoke header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	titleCol, ok := columns["title"]
	if !ok {
		return nil, fmt.Errorf("%w: title", ErrMissingColumn)
	}
	artistCol, ok := columns["artist"]
	if !ok {
		return nil, fmt.Errorf("%w: artist", ErrMissingColumn)
	}
	genreCol, hasGenre := columns["genre"]

	var entries []model.Entry
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read karaoke row: %w", err)
		}

		title := strings.TrimSpace(field(record, titleCol))
		artist := strings.TrimSpace(field(record, artistCol))
		if title == "" || artist == "" {
			continue
		}

		genre := ""
		if hasGenre {
			genre = strings.TrimSpace(field(record, genreCol))
		}

		entries = append(entries, model.Entry{
			ID:         len(entries) + 1,
			Title:      title,
			Artist:     artist,
			Genre:      genre,
			Difficulty: DifficultyForGenre(genre),
		})
	}
	if entries == nil {
		entries = []model.Entry{}
	}
	return entries, nil
}

// DifficultyForGenre grades a karaoke track: pop and rnb are Easy, rock
// and metal are Hard, anything else (including no genre) is Medium.
func DifficultyForGenre(genre string) string {
	g := strings.ToLower(genre)
	switch {
	case strings.Contains(g, "pop"), strings.Contains(g, "rnb"):
		return "Easy"
	case strings.Contains(g, "rock"), strings.Contains(g, "metal"):
		return "Hard"
	default:
		return "Medium"
	}
}

// LoadSongs returns the song catalogue from path, or the seed catalogue
// when the file cannot be used.
func LoadSongs(path string) []model.Entry {
	entries, err := loadFile(path, ParseSongsXML)
	if err != nil {
		log.Printf("[catalogue] songs: %v, using sample data", err)
		return model.SeedSongs()
	}
	log.Printf("[catalogue] loaded %d songs from %s", len(entries), path)
	return entries
}

// LoadKaraoke returns the karaoke catalogue from path, or the seed
// catalogue when the file cannot be used.
func LoadKaraoke(path string) []model.Entry {
	entries, err := loadFile(path, ParseKaraokeCSV)
	if err != nil {
		log.Printf("[catalogue] karaoke: %v, using sample data", err)
		return model.SeedKaraoke()
	}
	log.Printf("[catalogue] loaded %d karaoke songs from %s", len(entries), path)
	return entries
}

func loadFile(path string, parse func(io.Reader) ([]model.Entry, error)) ([]model.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return parse(f)
}

func field(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
