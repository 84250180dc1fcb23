// Package storetest provides a shared conformance test suite for config.Store
// implementations. Each backend (memory, file, sqlite) wires this suite to
// verify it satisfies the full Store contract.
package storetest

import (
	"context"
	"strings"
	"testing"

	"mapsources/internal/config"
)

// TestStore runs the full conformance suite against a Store implementation.
// newStore must return a fresh, empty store for each sub-test.
func TestStore(t *testing.T, newStore func(t *testing.T) config.Store) {
	t.Run("LoadEmpty", func(t *testing.T) {
		s := newStore(t)
		cfg, err := s.Load(context.Background())
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg != nil {
			t.Fatalf("expected nil config from empty store, got %+v", cfg)
		}
	})

	t.Run("GetMissingSetting", func(t *testing.T) {
		s := newStore(t)
		got, err := s.GetSetting(context.Background(), "missing")
		if err != nil {
			t.Fatalf("GetSetting: %v", err)
		}
		if got != nil {
			t.Fatalf("expected nil for missing key, got %q", *got)
		}
	})

	t.Run("PutGetSetting", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.PutSetting(ctx, "spatialite_maps", `[{"title":"roads"}]`); err != nil {
			t.Fatalf("PutSetting: %v", err)
		}
		got, err := s.GetSetting(ctx, "spatialite_maps")
		if err != nil {
			t.Fatalf("GetSetting: %v", err)
		}
		assertStringPtr(t, "spatialite_maps", got, `[{"title":"roads"}]`)
	})

	t.Run("PutOverwritesSetting", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.PutSetting(ctx, "k", "v1"); err != nil {
			t.Fatalf("PutSetting v1: %v", err)
		}
		if err := s.PutSetting(ctx, "k", "v2"); err != nil {
			t.Fatalf("PutSetting v2: %v", err)
		}
		got, err := s.GetSetting(ctx, "k")
		if err != nil {
			t.Fatalf("GetSetting: %v", err)
		}
		assertStringPtr(t, "k", got, "v2")
	})

	t.Run("EmptyValueIsPresent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.PutSetting(ctx, "k", ""); err != nil {
			t.Fatalf("PutSetting: %v", err)
		}
		got, err := s.GetSetting(ctx, "k")
		if err != nil {
			t.Fatalf("GetSetting: %v", err)
		}
		assertStringPtr(t, "k", got, "")
	})

	t.Run("LargeValue", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		big := strings.Repeat(`{"databasePath":"/maps/a.sqlite","title":"roads"},`, 2000)
		if err := s.PutSetting(ctx, "k", big); err != nil {
			t.Fatalf("PutSetting: %v", err)
		}
		got, err := s.GetSetting(ctx, "k")
		if err != nil {
			t.Fatalf("GetSetting: %v", err)
		}
		if got == nil || len(*got) != len(big) {
			t.Fatalf("large value not preserved")
		}
	})

	t.Run("DeleteSetting", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.PutSetting(ctx, "k", "v"); err != nil {
			t.Fatalf("PutSetting: %v", err)
		}
		if err := s.DeleteSetting(ctx, "k"); err != nil {
			t.Fatalf("DeleteSetting: %v", err)
		}
		got, err := s.GetSetting(ctx, "k")
		if err != nil {
			t.Fatalf("GetSetting: %v", err)
		}
		if got != nil {
			t.Fatalf("expected nil after delete, got %q", *got)
		}
	})

	t.Run("DeleteMissingSetting", func(t *testing.T) {
		s := newStore(t)
		if err := s.DeleteSetting(context.Background(), "missing"); err != nil {
			t.Fatalf("DeleteSetting on missing key: %v", err)
		}
	})

	t.Run("ListSettings", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		empty, err := s.ListSettings(ctx)
		if err != nil {
			t.Fatalf("ListSettings: %v", err)
		}
		if len(empty) != 0 {
			t.Fatalf("expected no settings, got %v", empty)
		}

		if err := s.PutSetting(ctx, "a", "1"); err != nil {
			t.Fatalf("PutSetting a: %v", err)
		}
		if err := s.PutSetting(ctx, "b", "2"); err != nil {
			t.Fatalf("PutSetting b: %v", err)
		}

		all, err := s.ListSettings(ctx)
		if err != nil {
			t.Fatalf("ListSettings: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 settings, got %d", len(all))
		}
		if all["a"] != "1" || all["b"] != "2" {
			t.Errorf("unexpected settings: %v", all)
		}

		// Mutating the returned map must not affect the store.
		all["a"] = "changed"
		got, err := s.GetSetting(ctx, "a")
		if err != nil {
			t.Fatalf("GetSetting: %v", err)
		}
		assertStringPtr(t, "a", got, "1")
	})

	t.Run("LoadAfterPut", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.PutSetting(ctx, "k", "v"); err != nil {
			t.Fatalf("PutSetting: %v", err)
		}
		cfg, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg == nil {
			t.Fatal("expected config after put, got nil")
		}
		if cfg.Settings["k"] != "v" {
			t.Errorf("Settings[k]: expected %q, got %q", "v", cfg.Settings["k"])
		}
	})

	t.Run("BoolHelpers", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		b, err := config.GetBool(ctx, s, "flag", true)
		if err != nil {
			t.Fatalf("GetBool: %v", err)
		}
		if !b {
			t.Error("expected default true for missing flag")
		}

		if err := config.PutBool(ctx, s, "flag", false); err != nil {
			t.Fatalf("PutBool: %v", err)
		}
		b, err = config.GetBool(ctx, s, "flag", true)
		if err != nil {
			t.Fatalf("GetBool: %v", err)
		}
		if b {
			t.Error("expected false after PutBool(false)")
		}

		if err := s.PutSetting(ctx, "flag", "not-a-bool"); err != nil {
			t.Fatalf("PutSetting: %v", err)
		}
		b, err = config.GetBool(ctx, s, "flag", true)
		if err != nil {
			t.Fatalf("GetBool: %v", err)
		}
		if !b {
			t.Error("expected default for unparsable flag")
		}
	})
}

func assertStringPtr(t *testing.T, name string, got *string, want string) {
	t.Helper()
	if got == nil {
		t.Errorf("%s: expected %q, got nil", name, want)
		return
	}
	if *got != want {
		t.Errorf("%s: expected %q, got %q", name, want, *got)
	}
}
