package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/amankumarsingh77/clip-splitter/internal/models"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var tasksBucket = []byte("tasks")

type boltTaskRepo struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBoltTaskRepo keeps tasks as JSON documents in an embedded bbolt file.
func NewBoltTaskRepo(db *bolt.DB) (tasks.Repository, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tasksBucket)
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "boltTaskRepo.CreateBucket")
	}
	return &boltTaskRepo{db: db, now: time.Now}, nil
}

func (r *boltTaskRepo) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	created := *task
	now := r.now()
	created.CreatedAt = now
	created.UpdatedAt = now
	data, err := json.Marshal(&created)
	if err != nil {
		return nil, errors.Wrap(err, "boltTaskRepo.Create.Marshal")
	}
	if err := r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tasksBucket).Put([]byte(created.ID), data)
	}); err != nil {
		return nil, errors.Wrap(err, "boltTaskRepo.Create.Put")
	}
	return &created, nil
}

func (r *boltTaskRepo) GetByID(ctx context.Context, id string) (*models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	task := &models.Task{}
	err := r.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(tasksBucket).Get([]byte(id))
		if data == nil {
			return tasks.ErrNotFound
		}
		return json.Unmarshal(data, task)
	})
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "boltTaskRepo.GetByID(%s)", id)
	}
	return task, nil
}

func (r *boltTaskRepo) Update(ctx context.Context, id string, update *models.TaskUpdate) (*models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	task := &models.Task{}
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(tasksBucket)
		data := b.Get([]byte(id))
		if data == nil {
			return tasks.ErrNotFound
		}
		if err := json.Unmarshal(data, task); err != nil {
			return err
		}
		task.Apply(update, r.now())
		updated, err := json.Marshal(task)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), updated)
	})
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "boltTaskRepo.Update(%s)", id)
	}
	return task, nil
}
