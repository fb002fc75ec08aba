package delivery

import (
	"fmt"

	"github.com/mobiledjay/backend/internal/model/djay"
)

// SongRequestText is the line the DJ software shows for a song request.
func SongRequestText(customerName string, song djay.SongRef, note string) string {
	text := fmt.Sprintf("Song Request from %s: \"%s\" by %s", customerName, song.Title, song.Artist)
	return withNote(text, note)
}

// KaraokeRequestText is the line the DJ software shows for a karaoke request.
func KaraokeRequestText(customerName string, song djay.SongRef, note string) string {
	text := fmt.Sprintf("Karaoke Request from %s: \"%s\" by %s (%s)", customerName, song.Title, song.Artist, song.Difficulty)
	return withNote(text, note)
}

// RequestText picks the line format for request's kind.
func RequestText(request djay.Request) string {
	if request.Kind == djay.KindKaraoke {
		return KaraokeRequestText(request.CustomerName, request.Song, request.Note)
	}
	return SongRequestText(request.CustomerName, request.Song, request.Note)
}

func withNote(text, note string) string {
	if note == "" {
		return text
	}
	return text + " - Additional message: " + note
}
