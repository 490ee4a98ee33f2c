package services

import (
	"time"

	"github.com/wfunc/chessrelay/game"
	"github.com/wfunc/chessrelay/models"
	"github.com/wfunc/chessrelay/persistence"
	"github.com/wfunc/chessrelay/rules"
)

// ArchiveService records terminal game results. Every method is safe on a
// nil receiver so the relay runs unchanged without a database.
type ArchiveService struct {
	db persistence.Database
}

func NewArchiveService(db persistence.Database) *ArchiveService {
	return &ArchiveService{db: db}
}

// RecordResult archives the verdict of a finished game.
func (s *ArchiveService) RecordResult(g *game.Game, outcome rules.Outcome) error {
	if s == nil || s.db == nil || !outcome.Finished() {
		return nil
	}

	winner := "draw"
	if outcome.Kind == rules.Checkmate {
		winner = "black"
		if outcome.WhiteWon {
			winner = "white"
		}
	}

	record := &models.GameRecord{
		JoinKey:  g.Key,
		Winner:   winner,
		Reason:   outcome.Reason(),
		Moves:    g.Moves(),
		Duration: int(time.Since(g.CreatedAt).Seconds()),
	}
	return s.db.SaveGameRecord(record)
}

// Recent returns the latest archived results.
func (s *ArchiveService) Recent(limit int) ([]models.GameRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return s.db.RecentGameRecords(limit)
}
