package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "GAME_BATCH", "CAT_HOSTS", "SESSION_IDLE_MINUTES", "NODE_ENV"} {
		t.Setenv(k, "")
	}
	c := Load()
	if c.Port != "5175" || c.GameBatch != 10 || c.GalleryBatch != 20 {
		t.Fatalf("defaults = %+v", c)
	}
	if len(c.CatHosts) != 1 || c.CatHosts[0] != "cdn2.thecatapi.com" {
		t.Fatalf("hosts = %v", c.CatHosts)
	}
	if c.SessionIdle != 30*time.Minute || c.Production {
		t.Fatalf("idle = %v production = %v", c.SessionIdle, c.Production)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("GAME_BATCH", "3")
	t.Setenv("GALLERY_BATCH", "-4")
	t.Setenv("CAT_HOSTS", " a.com , ,b.com")
	t.Setenv("NODE_ENV", "production")

	c := Load()
	if c.Port != "9000" || c.GameBatch != 3 {
		t.Fatalf("overrides = %+v", c)
	}
	if c.GalleryBatch != 20 {
		t.Fatalf("negative batch accepted: %d", c.GalleryBatch)
	}
	if len(c.CatHosts) != 2 || c.CatHosts[1] != "b.com" {
		t.Fatalf("hosts = %q", c.CatHosts)
	}
	if !c.Production {
		t.Fatal("production not detected")
	}
}
