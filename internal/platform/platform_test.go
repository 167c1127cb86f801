package platform

import (
	"errors"
	"testing"

	"github.com/dshills/appshim/internal/backend/defaults"
	"github.com/dshills/appshim/internal/backend/isolated"
	"github.com/dshills/appshim/internal/backend/native"
	"github.com/dshills/appshim/internal/backend/preference"
	"github.com/dshills/appshim/internal/backend/prefs"
	"github.com/dshills/appshim/internal/backend/unsupported"
	"github.com/dshills/appshim/internal/config"
	"github.com/dshills/appshim/internal/storage"
)

func testConfig(t *testing.T, platform string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Platform = platform
	cfg.AppID = "com.example.app"
	cfg.DataDir = t.TempDir()
	cfg.Watch.Enabled = false
	return cfg
}

func TestProvider_Selection(t *testing.T) {
	tests := []struct {
		platform string
		want     string
	}{
		{"uwp", native.Name},
		{"Windows", native.Name},
		{"android", prefs.Name},
		{"windowsphone", native.Name},
		{"silverlight", isolated.Name},
		{"ios", defaults.Name},
		{" tvos ", defaults.Name},
		{"tizen", preference.Name},
	}

	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			p := Provider(testConfig(t, tt.platform), nil)
			b, err := p.Open(storage.LocalityLocal)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if b.Name() != tt.want {
				t.Errorf("backend = %q, want %q", b.Name(), tt.want)
			}
		})
	}
}

func TestProvider_Unsupported(t *testing.T) {
	for _, id := range []string{"win32", "beos", ""} {
		p := Provider(testConfig(t, id), nil)
		if _, ok := p.(unsupported.Provider); !ok {
			t.Errorf("Provider(%q) = %T, want unsupported", id, p)
		}
	}
	if Supported(Win32) {
		t.Error("win32 reported as supported")
	}
	if !Supported("IOS") {
		t.Error("IOS not reported as supported")
	}
}

func TestOpen_EndToEnd(t *testing.T) {
	for _, id := range IDs() {
		t.Run(string(id), func(t *testing.T) {
			data := Open(testConfig(t, string(id)), nil)
			defer data.Close()

			local, err := data.LocalSettings()
			if err != nil {
				t.Fatal(err)
			}
			s := local.Values()
			if err := s.Set("greeting", storage.String("hello")); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			got, err := s.GetString("greeting")
			if err != nil || got != "hello" {
				t.Errorf("GetString() = %q, %v", got, err)
			}
			if err := s.Set("greeting", storage.Null()); err != nil {
				t.Fatal(err)
			}
			if ok, _ := s.ContainsKey("greeting"); ok {
				t.Error("Null write left the key in place")
			}
			if removed, err := s.Remove("greeting"); err != nil || removed {
				t.Errorf("Remove(absent) = %v, %v", removed, err)
			}
		})
	}

	data := Open(testConfig(t, "win32"), nil)
	local, _ := data.LocalSettings()
	if err := local.Values().Set("k", storage.Int32(1)); !errors.Is(err, storage.ErrOperationNotSupported) {
		t.Errorf("win32 Set() error = %v", err)
	}
}

func TestProvider_SuitesOnlyOnIOS(t *testing.T) {
	tests := []struct {
		platform string
		want     error
	}{
		{"ios", storage.ErrContainerNotFound},
		{"tvos", storage.ErrOperationNotSupported},
	}

	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			data := Open(testConfig(t, tt.platform), nil)
			defer data.Close()

			local, err := data.LocalSettings()
			if err != nil {
				t.Fatal(err)
			}
			if _, err := local.CreateContainer("group.other", storage.DispositionExisting); !errors.Is(err, tt.want) {
				t.Errorf("CreateContainer() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOpen_NativePersists(t *testing.T) {
	cfg := testConfig(t, "uwp")

	data := Open(cfg, nil)
	local, err := data.LocalSettings()
	if err != nil {
		t.Fatal(err)
	}
	if err := local.Values().Set("volume", storage.Int32(7)); err != nil {
		t.Fatal(err)
	}
	if err := data.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened := Open(cfg, nil)
	defer reopened.Close()
	local, err = reopened.LocalSettings()
	if err != nil {
		t.Fatal(err)
	}
	got, err := local.Values().GetInt64("volume")
	if err != nil || got != 7 {
		t.Errorf("GetInt64(volume) = %d, %v, want 7", got, err)
	}
	if NativePath(cfg) == "" {
		t.Error("NativePath() is empty")
	}
}
