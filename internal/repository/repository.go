// Package repository provides persistence for players, games, box scores, prop lines and predictions.
package repository

import (
	"fmt"

	"github.com/yourusername/propcast/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Player      PlayerRepository
	Game        GameRepository
	PlayerStat  PlayerStatRepository
	TeamDefense TeamDefenseRepository
	PropLine    PropLineRepository
	Prediction  PredictionRepository
}

// NewRepositories creates and returns all PostgreSQL repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Player:      NewPostgresPlayerRepository(db),
		Game:        NewPostgresGameRepository(db),
		PlayerStat:  NewPostgresPlayerStatRepository(db),
		TeamDefense: NewPostgresTeamDefenseRepository(db),
		PropLine:    NewPostgresPropLineRepository(db),
		Prediction:  NewPostgresPredictionRepository(db),
	}, nil
}

// NewMemoryRepositories returns repositories backed by a fresh in-process store
func NewMemoryRepositories() *Repositories {
	return NewMemoryStore().Repositories()
}

// Repositories exposes the store through the repository interfaces
func (s *MemoryStore) Repositories() *Repositories {
	return &Repositories{
		Player:      &memoryPlayers{s},
		Game:        &memoryGames{s},
		PlayerStat:  &memoryPlayerStats{s},
		TeamDefense: &memoryTeamDefense{s},
		PropLine:    &memoryPropLines{s},
		Prediction:  &memoryPredictions{s},
	}
}
