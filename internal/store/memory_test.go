package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"mytutor_backend/internal/model"
	"mytutor_backend/internal/util"
)

func TestMemoryStoreProcessingCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.GetProcessing(ctx, "nope"); !errors.Is(err, util.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	session := &model.ProcessingSession{
		ID:        "p1",
		CourseURL: "https://courses.example.com/go-101",
		Status:    model.StatusAwaitingLogin,
		StartedAt: time.Now(),
	}
	if err := s.PutProcessing(ctx, session); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetProcessing(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusAwaitingLogin {
		t.Errorf("expected awaiting_login, got %s", got.Status)
	}

	// 取出的是快照，改动不影响存储内容
	got.Status = model.StatusError
	again, _ := s.GetProcessing(ctx, "p1")
	if again.Status != model.StatusAwaitingLogin {
		t.Error("store snapshot was mutated through the returned copy")
	}

	if err := s.DeleteProcessing(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetProcessing(ctx, "p1"); !errors.Is(err, util.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestMemoryStoreTrainingCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	session := &model.TrainingSession{
		ID:              "t1",
		KnowledgeBaseID: "kb1",
		Status:          model.TrainingActive,
		Difficulty:      model.Beginner,
	}
	if err := s.PutTraining(ctx, session); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetTraining(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.KnowledgeBaseID != "kb1" {
		t.Errorf("unexpected knowledge base id %s", got.KnowledgeBaseID)
	}
}

func TestMemoryStoreTryAcquire(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	release, err := s.TryAcquire(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.TryAcquire(ctx, "t1"); !errors.Is(err, util.ErrOperationInFlight) {
		t.Fatalf("expected ErrOperationInFlight, got %v", err)
	}

	// 其他 key 不受影响
	release2, err := s.TryAcquire(ctx, "t2")
	if err != nil {
		t.Fatalf("unrelated key blocked: %v", err)
	}
	release2()

	release()
	release() // 重复释放无害

	if _, err := s.TryAcquire(ctx, "t1"); err != nil {
		t.Fatalf("expected reacquire after release, got %v", err)
	}
}
