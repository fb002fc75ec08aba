package djay

import "time"

// RequestKind distinguishes the two catalogues a patron can request from.
type RequestKind string

const (
	KindSong    RequestKind = "song"
	KindKaraoke RequestKind = "karaoke"
)

// Valid reports whether k names a known catalogue.
func (k RequestKind) Valid() bool {
	return k == KindSong || k == KindKaraoke
}

// StatusPending is the only status a Request ever carries.
const StatusPending = "pending"

// SongRef snapshots the catalogue entry a request was made for.
type SongRef struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Genre      string `json:"genre,omitempty"`
	Year       string `json:"year,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// Request is a patron's song or karaoke pick queued for the DJ.
type Request struct {
	ID           int64       `json:"id"`
	Kind         RequestKind `json:"type"`
	CustomerName string      `json:"customerName"`
	Song         SongRef     `json:"song"`
	Note         string      `json:"message"`
	CreatedAt    time.Time   `json:"timestamp"`
	Status       string      `json:"status"`
}
