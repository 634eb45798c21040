// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"code.hybscloud.com/saga"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := saga.LoadConfig([]byte("name: orders\nbufferLimit: 4\nlogLevel: debug\nidle: 30s\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "orders" || cfg.BufferLimit != 4 || cfg.Idle != 30*time.Second {
		t.Fatalf("config got %+v", cfg)
	}
	if l, err := cfg.Level(); err != nil || l != slog.LevelDebug {
		t.Fatalf("Level got (%v, %v), want debug", l, err)
	}
	rt := saga.New(cfg.Options()...)
	if rt.Name() != "orders" {
		t.Fatalf("runtime name got %q, want orders", rt.Name())
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := saga.LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if l, _ := cfg.Level(); l != slog.LevelInfo {
		t.Fatalf("default level got %v, want info", l)
	}
	if opts := cfg.Options(); len(opts) != 0 {
		t.Fatalf("empty config produced %d options", len(opts))
	}
	if rt := saga.New(cfg.Options()...); rt.Name() != "saga" || rt.ID() == "" {
		t.Fatalf("runtime got name %q id %q", rt.Name(), rt.ID())
	}
}

func TestLoadConfigRejects(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
	}{
		{name: "negative limit", data: "bufferLimit: -1\n"},
		{name: "bad level", data: "logLevel: loud\n"},
		{name: "bad yaml", data: "name: [\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := saga.LoadConfig([]byte(tc.data)); err == nil {
				t.Fatalf("LoadConfig(%q) succeeded", tc.data)
			}
		})
	}
}

func TestReadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saga.yaml")
	if err := os.WriteFile(path, []byte("name: file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := saga.ReadConfig(path)
	if err != nil || cfg.Name != "file" {
		t.Fatalf("ReadConfig got (%+v, %v)", cfg, err)
	}
	if _, err := saga.ReadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("ReadConfig of a missing file succeeded")
	}
}

func TestConfigBufferLimit(t *testing.T) {
	cfg, err := saga.LoadConfig([]byte("bufferLimit: 1\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	rt, _ := newRuntime(cfg.Options()...)
	// Two unconsumed messages overflow the default ActionChannel buffer.
	task := rt.Run(func(...any) saga.Proc {
		return saga.Then(saga.ActionChannel("Q", nil), saga.Seq(saga.Take("NEVER")))
	})
	rt.Emit("Q")
	rt.Emit("Q")
	waitTask(t, task)
	if !task.IsAborted() {
		t.Fatalf("status got %s, want aborted on overflow", task.Status())
	}
}
