package config

import (
	"sync"
	"testing"
)

func TestValueStore(t *testing.T) {
	store := NewValueStore()

	data := map[string]any{"key": "value"}
	store.Store(data)

	loaded := store.Load()
	if loaded["key"] != "value" {
		t.Error("Load failed")
	}

	// Test concurrency
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Load()
		}()
	}
	wg.Wait()
}

func TestPathCache(t *testing.T) {
	cache := &PathCache{}

	path := "a:b.c"
	parts := cache.GetPathSegments(path)

	if len(parts) != 3 {
		t.Errorf("Expected 3 parts, got %d", len(parts))
	}
	if parts[0] != "a" || parts[1] != "b" || parts[2] != "c" {
		t.Error("Parse failed")
	}

	// Test cache hit
	parts2 := cache.GetPathSegments(path)
	if len(parts2) != 3 {
		t.Errorf("Expected 3 parts on second call, got %d", len(parts2))
	}
}

func TestConfigurationGet(t *testing.T) {
	cfg, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{
			"server": map[string]any{
				"host":  "localhost",
				"port":  8080,
				"debug": true,
			},
		}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := cfg.Get("server.host"); got != "localhost" {
		t.Errorf("Get(server.host) = %q", got)
	}
	if got := cfg.Get("server:host"); got != "localhost" {
		t.Errorf("Get(server:host) = %q", got)
	}
	if got := cfg.Get("missing"); got != "" {
		t.Errorf("Get(missing) = %q, want empty", got)
	}
	if got := cfg.GetWithDefault("missing", "fallback"); got != "fallback" {
		t.Errorf("GetWithDefault = %q", got)
	}

	port, err := cfg.GetInt("server.port")
	if err != nil || port != 8080 {
		t.Errorf("GetInt = %d, %v", port, err)
	}
	debug, err := cfg.GetBool("server.debug")
	if err != nil || !debug {
		t.Errorf("GetBool = %v, %v", debug, err)
	}
}

func TestConfigurationSourcePrecedence(t *testing.T) {
	// 后添加的源覆盖先添加的源
	cfg, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{"app": map[string]any{"name": "base", "env": "dev"}}).
		AddInMemory(map[string]any{"app": map[string]any{"name": "override"}}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := cfg.Get("app.name"); got != "override" {
		t.Errorf("Later source should win, got %q", got)
	}
	if got := cfg.Get("app.env"); got != "dev" {
		t.Errorf("Unoverridden keys survive the merge, got %q", got)
	}
}

func TestConfigurationSection(t *testing.T) {
	cfg, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{
			"database": map[string]any{
				"master": map[string]any{"dsn": "dsn-a"},
			},
		}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	section := cfg.GetSection("database.master")
	if got := section.Get("dsn"); got != "dsn-a" {
		t.Errorf("Section Get = %q", got)
	}

	empty := cfg.GetSection("nope")
	if got := empty.Get("anything"); got != "" {
		t.Errorf("Missing section should be empty, got %q", got)
	}
}

func TestConfigurationBind(t *testing.T) {
	type serverConfig struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}

	cfg, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{
			"server": map[string]any{"host": "0.0.0.0", "port": 9000},
		}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var sc serverConfig
	if err := cfg.Bind("server", &sc); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if sc.Host != "0.0.0.0" || sc.Port != 9000 {
		t.Errorf("Bound value %+v", sc)
	}

	if err := cfg.Bind("missing", &sc); err == nil {
		t.Error("Bind on missing key should fail")
	}
}

func TestEnvironmentVariableSource(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HOST", "envhost")

	cfg, err := NewConfigurationBuilder().
		AddEnvironmentVariables("MYAPP_").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := cfg.Get("server.host"); got != "envhost" {
		t.Errorf("Env value = %q", got)
	}
}

func BenchmarkConfigGet(b *testing.B) {
	config, _ := NewConfigurationBuilder().
		AddInMemory(map[string]any{
			"server": map[string]any{
				"host": "localhost",
				"port": 8080,
			},
		}).
		Build()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		config.Get("server:host")
	}
}
