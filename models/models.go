// models/models.go
package models

import (
	"time"
)

// GameRecord is one finished game's terminal result. Only results are
// archived; a live game exists nowhere but in memory.
type GameRecord struct {
	JoinKey   string    `json:"join_key"`
	Winner    string    `json:"winner"` // "white", "black" or "draw"
	Reason    string    `json:"reason"` // "Checkmate" or "Stalemate"
	Moves     int       `json:"moves"`
	Duration  int       `json:"duration"` // seconds from creation to verdict
	CreatedAt time.Time `json:"created_at"`
}
