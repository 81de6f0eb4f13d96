package repository

import (
	"fmt"
	"io"

	"github.com/amankumarsingh77/clip-splitter/internal/config"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks"
	boltdb "github.com/amankumarsingh77/clip-splitter/pkg/db/bolt"
	"github.com/amankumarsingh77/clip-splitter/pkg/db/postgres"
)

// NewStore opens the task store selected by taskStore.driver.
func NewStore(cfg *config.Config) (tasks.Repository, io.Closer, error) {
	switch cfg.TaskStore.Driver {
	case "postgres":
		db, err := postgres.NewPsqlDB(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return NewTaskRepo(db), db, nil
	case "bolt":
		db, err := boltdb.NewBoltDB(cfg.TaskStore.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		repo, err := NewBoltTaskRepo(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown task store driver %q", cfg.TaskStore.Driver)
	}
}
