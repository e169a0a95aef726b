package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"voicetransit/internal/logger"
	"voicetransit/internal/model"
)

func sampleLocations() []model.StopLocation {
	dist := 240
	return []model.StopLocation{
		{ID: "8000105", Name: "Frankfurt(Main)Hbf", Lat: 50.107145, Lon: 8.663789},
		{ID: "100", Name: "Konstablerwache", Lat: 50.11, Lon: 8.68, Distance: &dist},
	}
}

func TestLocationKey(t *testing.T) {
	a := LocationKey("transportrest", "Frankfurt Süd")
	b := LocationKey("transportrest", "  frankfurt  SÜD ")
	if a != b {
		t.Errorf("keys differ for equivalent queries: %q vs %q", a, b)
	}
	if a == LocationKey("hafas", "Frankfurt Süd") {
		t.Error("keys collide across backends")
	}
}

func TestNearbyKey(t *testing.T) {
	a := NearbyKey("hafas", 50.11041, 8.68212, 1000)
	b := NearbyKey("hafas", 50.11009, 8.68249, 1000)
	if a != b {
		t.Errorf("nearby coordinates not rounded together: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "near:hafas:50.110:8.682:") {
		t.Errorf("key = %q", a)
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, time.Hour)

	if _, ok := m.GetLocations(ctx, "a"); ok {
		t.Fatal("empty cache reported a hit")
	}
	m.SetLocations(ctx, "a", sampleLocations())
	m.SetLocations(ctx, "b", nil)
	m.SetLocations(ctx, "c", sampleLocations())

	if _, ok := m.GetLocations(ctx, "a"); ok {
		t.Error("oldest entry not evicted")
	}
	got, ok := m.GetLocations(ctx, "c")
	if !ok || len(got) != 2 {
		t.Errorf("GetLocations(c) = %v, %v", got, ok)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(4, 20*time.Millisecond)
	m.SetLocations(ctx, "a", sampleLocations())

	time.Sleep(60 * time.Millisecond)
	if _, ok := m.GetLocations(ctx, "a"); ok {
		t.Error("expired entry still returned")
	}
}

func TestRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	r, err := NewRedis(ctx, "redis://"+mr.Addr()+"/0", time.Minute, logger.Discard())
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	defer r.Close()

	if _, ok := r.GetLocations(ctx, "loc:x"); ok {
		t.Fatal("empty cache reported a hit")
	}

	r.SetLocations(ctx, "loc:x", sampleLocations())
	got, ok := r.GetLocations(ctx, "loc:x")
	if !ok || len(got) != 2 {
		t.Fatalf("GetLocations() = %v, %v", got, ok)
	}
	if got[1].Distance == nil || *got[1].Distance != 240 || got[0].Lat != 50.107145 {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if !mr.Exists(redisPrefix + "loc:x") {
		t.Error("key not prefixed")
	}

	mr.FastForward(2 * time.Minute)
	if _, ok := r.GetLocations(ctx, "loc:x"); ok {
		t.Error("expired entry still returned")
	}
}

func TestRedis_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	if err := mr.Set(redisPrefix+"loc:bad", "not msgpack"); err != nil {
		t.Fatal(err)
	}

	r, err := NewRedis(ctx, "redis://"+mr.Addr(), time.Minute, logger.Discard())
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	defer r.Close()

	if _, ok := r.GetLocations(ctx, "loc:bad"); ok {
		t.Error("corrupt entry reported as hit")
	}
}

func TestNewRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := NewRedis(ctx, "redis://"+addr, time.Minute, nil); err == nil {
		t.Error("NewRedis() succeeded against a closed server")
	}
}
