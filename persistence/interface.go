// persistence/interface.go
package persistence

import (
	"errors"

	"github.com/wfunc/chessrelay/models"
)

// Database archives finished games.
type Database interface {
	SaveGameRecord(record *models.GameRecord) error
	RecentGameRecords(limit int) ([]models.GameRecord, error)
	Close() error
}

var ErrRecordNotFound = errors.New("record not found")
