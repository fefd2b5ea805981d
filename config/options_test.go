package config

import "testing"

type serverOpts struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func TestOptionsCacheBindAndRebind(t *testing.T) {
	cfg, err := NewConfigurationBuilder().AddInMemory(map[string]any{
		"server": map[string]any{"host": "localhost", "port": 8080},
	}).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	cache := NewOptionsCache[serverOpts](cfg, "server")
	if got := cache.Get(); got.Host != "localhost" || got.Port != 8080 {
		t.Fatalf("Unexpected initial binding: %+v", got)
	}
	if cache.Section() != "server" {
		t.Errorf("Unexpected section: %q", cache.Section())
	}

	monitor := NewOptionMonitor(cache)
	opt := NewOption(cache.Get())

	// 重建配置后 Rebind：monitor 看到新值，静态 Option 保持旧值
	cfg2, err := NewConfigurationBuilder().AddInMemory(map[string]any{
		"server": map[string]any{"host": "remote", "port": 9090},
	}).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := cache.Rebind(cfg2); err != nil {
		t.Fatalf("Rebind failed: %v", err)
	}

	if got := monitor.Value(); got.Host != "remote" || got.Port != 9090 {
		t.Errorf("Monitor must observe the rebound value, got %+v", got)
	}
	if got := opt.Value(); got.Host != "localhost" {
		t.Errorf("Static option must keep the value bound at creation, got %+v", got)
	}
}

func TestOptionsCacheMissingSection(t *testing.T) {
	cfg, err := NewConfigurationBuilder().AddInMemory(map[string]any{}).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	cache := NewOptionsCache[serverOpts](cfg, "absent")
	if got := cache.Get(); got.Host != "" || got.Port != 0 {
		t.Errorf("Missing section must bind the zero value, got %+v", got)
	}
	if err := cache.Rebind(cfg); err == nil {
		t.Error("Rebind against a missing section must report the error")
	}
}
