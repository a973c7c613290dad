package provider

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"tunesync/internal/core"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCredentialStore_RoundTrip(t *testing.T) {
	store, err := NewCredentialStore(newTestDB(t), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	creds := &core.Credentials{
		UserID:  1,
		Service: core.ServiceSpotify,
		Values:  map[string]string{"access_token": "a", "refresh_token": "r"},
	}
	if err := store.Set(ctx, creds); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := store.Get(ctx, 1, core.ServiceSpotify)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Values["access_token"] != "a" || got.Values["refresh_token"] != "r" {
		t.Errorf("values mismatch: %v", got.Values)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped")
	}
}

func TestCredentialStore_SetOverwrites(t *testing.T) {
	store, err := NewCredentialStore(newTestDB(t), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	first := &core.Credentials{UserID: 1, Service: core.ServiceDeezer, Values: map[string]string{"access_token": "old"}}
	second := &core.Credentials{UserID: 1, Service: core.ServiceDeezer, Values: map[string]string{"access_token": "new"}}
	if err := store.Set(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, 1, core.ServiceDeezer)
	if err != nil {
		t.Fatal(err)
	}
	if got.Values["access_token"] != "new" {
		t.Errorf("access_token = %q, want new", got.Values["access_token"])
	}
}

func TestCredentialStore_MissingIsAuthError(t *testing.T) {
	store, err := NewCredentialStore(newTestDB(t), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	_, err = store.Get(context.Background(), 42, core.ServiceSubsonic)
	if !errors.Is(err, core.ErrAuth) {
		t.Errorf("error = %v, want ErrAuth", err)
	}
}

func TestCredentialStore_Delete(t *testing.T) {
	store, err := NewCredentialStore(newTestDB(t), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	creds := &core.Credentials{UserID: 1, Service: core.ServiceSpotify, Values: map[string]string{"access_token": "a"}}
	if err := store.Set(ctx, creds); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, 1, core.ServiceSpotify); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(ctx, 1, core.ServiceSpotify); !errors.Is(err, core.ErrAuth) {
		t.Errorf("deleted credentials should read as ErrAuth, got %v", err)
	}

	// Deleting again stays silent.
	if err := store.Delete(ctx, 1, core.ServiceSpotify); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestUserStore_GetMissingIsNilNil(t *testing.T) {
	store, err := NewUserStore(newTestDB(t))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	id, err := store.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	user, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if user == nil || user.Username != "alice" {
		t.Errorf("user = %+v", user)
	}

	missing, err := store.Get(ctx, id+1)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing user, got %+v", missing)
	}
}
