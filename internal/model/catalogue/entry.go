package catalogue

import "github.com/mobiledjay/backend/internal/model/djay"

// Entry is one selectable track in a song or karaoke catalogue.
type Entry struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Genre      string `json:"genre,omitempty"`
	Year       string `json:"year,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// Ref snapshots the entry into a request's song reference.
func (e Entry) Ref() djay.SongRef {
	return djay.SongRef{
		ID:         e.ID,
		Title:      e.Title,
		Artist:     e.Artist,
		Genre:      e.Genre,
		Year:       e.Year,
		Difficulty: e.Difficulty,
	}
}

// SeedSongs is the song catalogue served when the XML database is unavailable.
func SeedSongs() []Entry {
	return []Entry{
		{ID: 1, Title: "Shape of You", Artist: "Ed Sheeran", Genre: "Pop", Year: "2017"},
		{ID: 2, Title: "Bohemian Rhapsody", Artist: "Queen", Genre: "Rock", Year: "1975"},
		{ID: 3, Title: "Billie Jean", Artist: "Michael Jackson", Genre: "Pop", Year: "1983"},
		{ID: 4, Title: "Hotel California", Artist: "Eagles", Genre: "Rock", Year: "1976"},
		{ID: 5, Title: "Sweet Caroline", Artist: "Neil Diamond", Genre: "Classic Rock", Year: "1969"},
		{ID: 6, Title: "Dancing Queen", Artist: "ABBA", Genre: "Disco", Year: "1976"},
		{ID: 7, Title: "Hey Jude", Artist: "The Beatles", Genre: "Rock", Year: "1968"},
		{ID: 8, Title: "Imagine", Artist: "John Lennon", Genre: "Classic Rock", Year: "1971"},
	}
}

// SeedKaraoke is the karaoke catalogue served when the CSV export is unavailable.
func SeedKaraoke() []Entry {
	return []Entry{
		{ID: 1, Title: "I Will Survive", Artist: "Gloria Gaynor", Difficulty: "Easy"},
		{ID: 2, Title: "Sweet Child O' Mine", Artist: "Guns N' Roses", Difficulty: "Hard"},
		{ID: 3, Title: "Don't Stop Believin'", Artist: "Journey", Difficulty: "Medium"},
		{ID: 4, Title: "Livin' on a Prayer", Artist: "Bon Jovi", Difficulty: "Medium"},
		{ID: 5, Title: "My Way", Artist: "Frank Sinatra", Difficulty: "Easy"},
		{ID: 6, Title: "Wonderwall", Artist: "Oasis", Difficulty: "Easy"},
		{ID: 7, Title: "We Are the Champions", Artist: "Queen", Difficulty: "Medium"},
		{ID: 8, Title: "Summer of '69", Artist: "Bryan Adams", Difficulty: "Easy"},
	}
}
