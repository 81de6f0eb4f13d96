package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amankumarsingh77/clip-splitter/internal/config"
	"github.com/amankumarsingh77/clip-splitter/internal/models"
	"github.com/amankumarsingh77/clip-splitter/internal/queue"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks"
	"github.com/amankumarsingh77/clip-splitter/pkg/logger"
)

type stubRepo struct {
	created   []*models.Task
	updates   []*models.TaskUpdate
	createErr error
	tasks     map[string]*models.Task
}

func (s *stubRepo) Create(_ context.Context, t *models.Task) (*models.Task, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, t)
	return t, nil
}

func (s *stubRepo) GetByID(_ context.Context, id string) (*models.Task, error) {
	if t, ok := s.tasks[id]; ok {
		return t, nil
	}
	return nil, tasks.ErrNotFound
}

func (s *stubRepo) Update(_ context.Context, _ string, u *models.TaskUpdate) (*models.Task, error) {
	s.updates = append(s.updates, u)
	return &models.Task{}, nil
}

type stubQueue struct {
	queue   string
	name    string
	payload interface{}
	err     error
}

func (s *stubQueue) Enqueue(_ context.Context, q, name string, payload interface{}) (string, error) {
	s.queue, s.name, s.payload = q, name, payload
	return "id", s.err
}

func newUC(t *testing.T, repo *stubRepo, q *stubQueue) (tasks.UseCase, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{Server: config.ServerConfig{UploadDir: dir}}
	return NewTaskUseCase(cfg, repo, q, logger.NewNopLogger()), dir
}

func TestSubmitSavesFileAndQueuesExtraction(t *testing.T) {
	repo := &stubRepo{}
	q := &stubQueue{}
	uc, dir := newUC(t, repo, q)

	task, err := uc.Submit(context.Background(), &models.SubmitInput{
		Filename: "talk.mp4",
		MimeType: "video/mp4",
		Encoding: "7bit",
	}, strings.NewReader("video-bytes"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if task.Status != models.TaskStatusInProgress || task.Outputs != nil {
		t.Fatalf("task = %+v", task)
	}
	wantPath := filepath.Join(dir, task.ID, "talk.mp4")
	if task.OriginalFile != wantPath {
		t.Fatalf("original file = %q, want %q", task.OriginalFile, wantPath)
	}
	if data, err := os.ReadFile(wantPath); err != nil || string(data) != "video-bytes" {
		t.Fatalf("saved file = %q, %v", data, err)
	}
	if len(repo.created) != 1 {
		t.Fatal("task not created")
	}

	if q.queue != queue.Extract || q.name != "talk.mp4__audioExtraction" {
		t.Fatalf("queued %s/%s", q.queue, q.name)
	}
	job, ok := q.payload.(models.Job)
	if !ok {
		t.Fatalf("payload type %T", q.payload)
	}
	want := models.Job{ID: task.ID, Filename: "talk.mp4", Filepath: wantPath, MimeType: "video/mp4", Encoding: "7bit"}
	if job.ID != want.ID || job.Filepath != want.Filepath || job.MimeType != want.MimeType || job.Encoding != want.Encoding || job.Filename != want.Filename {
		t.Fatalf("job = %+v", job)
	}
}

func TestSubmitRejectsNonVideo(t *testing.T) {
	uc, _ := newUC(t, &stubRepo{}, &stubQueue{})
	_, err := uc.Submit(context.Background(), &models.SubmitInput{Filename: "a.png", MimeType: "image/png"}, strings.NewReader("x"))
	if !errors.Is(err, tasks.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSubmitContinuesWhenCreateFails(t *testing.T) {
	repo := &stubRepo{createErr: errors.New("store down")}
	q := &stubQueue{}
	uc, _ := newUC(t, repo, q)

	task, err := uc.Submit(context.Background(), &models.SubmitInput{Filename: "a.mp4", MimeType: "video/mp4"}, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if task.ID == "" || q.name != "a.mp4__audioExtraction" {
		t.Fatalf("task=%+v queued=%q", task, q.name)
	}
}

func TestSubmitEnqueueFailure(t *testing.T) {
	repo := &stubRepo{}
	uc, dir := newUC(t, repo, &stubQueue{err: errors.New("redis down")})

	_, err := uc.Submit(context.Background(), &models.SubmitInput{Filename: "a.mp4", MimeType: "video/mp4"}, strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(repo.updates) != 1 || *repo.updates[0].Status != models.TaskStatusFailed {
		t.Fatalf("task not marked failed: %+v", repo.updates)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("upload dir not cleaned: %v", entries)
	}
}

func TestSubmitStripsDirectories(t *testing.T) {
	q := &stubQueue{}
	uc, dir := newUC(t, &stubRepo{}, q)
	task, err := uc.Submit(context.Background(), &models.SubmitInput{Filename: "../../etc/x.mp4", MimeType: "video/mp4"}, strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(task.OriginalFile) != filepath.Join(dir, task.ID) {
		t.Fatalf("file escaped the task dir: %s", task.OriginalFile)
	}
}

func TestGetTask(t *testing.T) {
	repo := &stubRepo{tasks: map[string]*models.Task{"t1": {ID: "t1", Status: models.TaskStatusCompleted}}}
	uc, _ := newUC(t, repo, &stubQueue{})

	task, err := uc.GetTask(context.Background(), "t1")
	if err != nil || task.Status != models.TaskStatusCompleted {
		t.Fatalf("task=%+v err=%v", task, err)
	}
	if _, err := uc.GetTask(context.Background(), "nope"); !errors.Is(err, tasks.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
