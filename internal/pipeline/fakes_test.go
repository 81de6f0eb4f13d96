package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/amankumarsingh77/clip-splitter/internal/media"
	"github.com/amankumarsingh77/clip-splitter/internal/models"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks"
	"github.com/amankumarsingh77/clip-splitter/internal/transcribe"
)

type enqueued struct {
	queue   string
	name    string
	payload interface{}
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []enqueued
	err  error
}

func (f *fakeQueue) Enqueue(_ context.Context, queue, name string, payload interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, enqueued{queue: queue, name: name, payload: payload})
	return "job-id", nil
}

// memStore is an in-memory task store that keeps every state it passed through.
type memStore struct {
	mu       sync.Mutex
	tasks    map[string]*models.Task
	history  []models.Task
	failures int
	calls    int
}

func newMemStore() *memStore {
	return &memStore{tasks: map[string]*models.Task{}}
}

func (s *memStore) Create(_ context.Context, task *models.Task) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *task
	s.tasks[t.ID] = &t
	return &t, nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (s *memStore) Update(_ context.Context, id string, update *models.TaskUpdate) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("store unavailable")
	}
	t, ok := s.tasks[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	t.Apply(update, time.Now())
	s.history = append(s.history, *t)
	c := *t
	return &c, nil
}

func (s *memStore) snapshot(id string) models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tasks[id]
}

type cut struct {
	input    string
	output   string
	start    float64
	duration int
	codec    media.Codec
}

type fakeEngine struct {
	mu         sync.Mutex
	cuts       []cut
	extractErr error
	cutErr     error
}

func (f *fakeEngine) ExtractAudio(_ context.Context, videoPath, audioPath string) error {
	if f.extractErr != nil {
		return f.extractErr
	}
	return os.WriteFile(audioPath, []byte("mp3"), 0o600)
}

func (f *fakeEngine) CutSegment(_ context.Context, input, output string, start float64, duration int, codec media.Codec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cutErr != nil {
		return f.cutErr
	}
	f.cuts = append(f.cuts, cut{input: input, output: output, start: start, duration: duration, codec: codec})
	return os.WriteFile(output, []byte("clip"), 0o600)
}

func (f *fakeEngine) ClipCodec() media.Codec {
	return media.Codec{Video: "libx264", Audio: "aac"}
}

type fakeTranscriber struct {
	segments []transcribe.RawSegment
	block    bool
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, _ string) ([]transcribe.RawSegment, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.segments, nil
}

type fakeUploader struct {
	mu      sync.Mutex
	uploads []string
	// failOn makes every upload of a file whose name contains the key fail.
	failOn string
	calls  int
}

func (f *fakeUploader) Upload(_ context.Context, path, folder string) (*models.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn != "" && strings.HasPrefix(filepath.Base(path), f.failOn) {
		return nil, errors.New("storage unavailable")
	}
	f.uploads = append(f.uploads, folder+"/"+filepath.Base(path))
	return &models.UploadResult{SecureURL: "https://cdn.test/" + folder + "/" + filepath.Base(path)}, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.TaskEvent
}

func (f *fakeEvents) Publish(_ context.Context, ev models.TaskEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}
