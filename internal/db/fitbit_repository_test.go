package db

import (
	"testing"

	"study-sms-server/internal/models"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef"

func TestFitbitTokenUpsertAndGet(t *testing.T) {
	conn := setupTestDB(t)
	participants := NewParticipantRepository(conn)
	repo := NewFitbitTokenRepository(conn, testEncryptionKey)

	p := createTestParticipant(t, participants, "VET100")

	token := &models.FitbitToken{
		ParticipantID: p.ID,
		AccessToken:   "access-1",
		RefreshToken:  "refresh-1",
		ExpiresAt:     1800000000,
	}
	if err := repo.Upsert(token); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.GetByParticipantID(p.ID)
	if err != nil {
		t.Fatalf("GetByParticipantID() error = %v", err)
	}
	if got == nil {
		t.Fatal("expected token, got nil")
	}
	if got.AccessToken != "access-1" || got.RefreshToken != "refresh-1" {
		t.Errorf("token values not round-tripped: %+v", got)
	}

	// Token values must not sit in plaintext at rest
	var stored string
	if err := conn.QueryRow("SELECT access_token FROM fitbit_tokens WHERE participant_id = ?", p.ID).Scan(&stored); err != nil {
		t.Fatal(err)
	}
	if stored == "access-1" {
		t.Error("access token stored in plaintext despite encryption key")
	}
}

func TestFitbitTokenUpsertReplaces(t *testing.T) {
	conn := setupTestDB(t)
	participants := NewParticipantRepository(conn)
	repo := NewFitbitTokenRepository(conn, testEncryptionKey)

	p := createTestParticipant(t, participants, "VET100")

	first := &models.FitbitToken{ParticipantID: p.ID, AccessToken: "a1", RefreshToken: "r1", ExpiresAt: 100}
	if err := repo.Upsert(first); err != nil {
		t.Fatal(err)
	}

	second := &models.FitbitToken{ParticipantID: p.ID, AccessToken: "a2", RefreshToken: "r2", ExpiresAt: 200}
	if err := repo.Upsert(second); err != nil {
		t.Fatalf("Upsert() replace error = %v", err)
	}

	got, err := repo.GetByParticipantID(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != "a2" || got.ExpiresAt != 200 {
		t.Errorf("expected replaced token, got %+v", got)
	}
}

func TestFitbitTokenDelete(t *testing.T) {
	conn := setupTestDB(t)
	participants := NewParticipantRepository(conn)
	repo := NewFitbitTokenRepository(conn, "")

	p := createTestParticipant(t, participants, "VET100")
	token := &models.FitbitToken{ParticipantID: p.ID, AccessToken: "a", RefreshToken: "r", ExpiresAt: 100}
	if err := repo.Upsert(token); err != nil {
		t.Fatal(err)
	}

	if err := repo.DeleteByParticipantID(p.ID); err != nil {
		t.Fatalf("DeleteByParticipantID() error = %v", err)
	}

	got, err := repo.GetByParticipantID(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("expected token to be deleted")
	}
}

func TestFitbitTokenValidation(t *testing.T) {
	repo := NewFitbitTokenRepository(setupTestDB(t), "")

	tests := []struct {
		name  string
		token *models.FitbitToken
	}{
		{name: "nil", token: nil},
		{name: "missing participant", token: &models.FitbitToken{AccessToken: "a", RefreshToken: "r"}},
		{name: "missing values", token: &models.FitbitToken{ParticipantID: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Upsert(tt.token); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
