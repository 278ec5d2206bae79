package repository_test

import (
	"context"
	"testing"
	"time"

	"anesthesia_controller/internal/models"
	"anesthesia_controller/internal/repository"
)

func TestStatusMemory_Load_NothingSavedReturnsZeroValue(t *testing.T) {
	repo := repository.NewStatusMemory()

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if !got.UpdatedAt.IsZero() || got.State != "" {
		t.Fatalf("Load() expected zero status, got: %+v", got)
	}
}

func TestStatusMemory_Save_SetsUTCWhenTimeZero(t *testing.T) {
	repo := repository.NewStatusMemory()

	if err := repo.Save(context.Background(), models.Status{State: "MONITORING"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, _ := repo.Load(context.Background())
	if got.UpdatedAt.Location() != time.UTC {
		t.Fatalf("UpdatedAt not UTC: %v", got.UpdatedAt)
	}
	now := time.Now().UTC()
	if got.UpdatedAt.Before(now.Add(-5*time.Second)) || got.UpdatedAt.After(now.Add(5*time.Second)) {
		t.Fatalf("UpdatedAt not recent: %v", got.UpdatedAt)
	}
}

func TestStatusMemory_Save_PreservesGivenTimeButConvertsToUTC(t *testing.T) {
	repo := repository.NewStatusMemory()

	locTokyo := time.FixedZone("JST", 9*3600)
	original := time.Date(2023, 10, 5, 12, 34, 56, 0, locTokyo)
	if err := repo.Save(context.Background(), models.Status{State: "ALARM", UpdatedAt: original}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, _ := repo.Load(context.Background())
	if !got.UpdatedAt.Equal(original) || got.UpdatedAt.Location() != time.UTC {
		t.Fatalf("want %v as UTC, got %v", original, got.UpdatedAt)
	}
}

func TestStatusMemory_ReturnsCopies(t *testing.T) {
	repo := repository.NewStatusMemory()

	causes := []string{"critical hypoxemia"}
	vitals := &models.Vitals{SpO2: 85}
	_ = repo.Save(context.Background(), models.Status{AlarmCauses: causes, Vitals: vitals})
	causes[0] = "mutated"
	vitals.SpO2 = 99

	got, _ := repo.Load(context.Background())
	if got.AlarmCauses[0] != "critical hypoxemia" || got.Vitals.SpO2 != 85 {
		t.Fatalf("stored status aliased caller data: %+v", got)
	}

	got.AlarmCauses[0] = "mutated again"
	again, _ := repo.Load(context.Background())
	if again.AlarmCauses[0] != "critical hypoxemia" {
		t.Fatalf("Load() returned shared slice")
	}
}
