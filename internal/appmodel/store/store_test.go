package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/dshills/appshim/internal/config"
)

const testGUID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

func testConfig(platform string, onWin10 bool) *config.Config {
	cfg := config.Default()
	cfg.Platform = platform
	cfg.Store = config.StoreConfig{
		AppGUID:     testGUID,
		FamilyName:  "Contoso.App_8wekyb3d8bbwe",
		ProductID:   "9NBLGGH4R32N",
		OnWindows10: onWin10,
	}
	return cfg
}

func TestURIs(t *testing.T) {
	tests := []struct {
		platform    string
		onWin10     bool
		wantDetails string
		wantReview  string
	}{
		{"uwp", false,
			"ms-windows-store:PDP?PFN=Contoso.App_8wekyb3d8bbwe",
			"ms-windows-store:REVIEW?PFN=Contoso.App_8wekyb3d8bbwe"},
		{"Windows", false,
			"ms-windows-store:PDP?PFN=Contoso.App_8wekyb3d8bbwe",
			"ms-windows-store:REVIEW?PFN=Contoso.App_8wekyb3d8bbwe"},
		{"windowsphone", true,
			"ms-windows-store://pdp/?PhoneAppId=9NBLGGH4R32N",
			"ms-windows-store://reviewapp/?AppId=9NBLGGH4R32N"},
		{"windowsphone", false,
			"ms-windows-store:navigate?appid=" + testGUID,
			"ms-windows-store:reviewapp?appid=" + testGUID},
		{"silverlight", false,
			"zune:navigate?appid=" + testGUID,
			"zune:reviewapp?appid=app" + testGUID},
		{"android", false, "", ""},
		{"win32", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			app := New(testConfig(tt.platform, tt.onWin10))
			if got := app.DetailsURI(); got != tt.wantDetails {
				t.Errorf("DetailsURI() = %q, want %q", got, tt.wantDetails)
			}
			if got := app.ReviewURI(); got != tt.wantReview {
				t.Errorf("ReviewURI() = %q, want %q", got, tt.wantReview)
			}
		})
	}
}

func TestNew_InvalidGUID(t *testing.T) {
	cfg := testConfig("silverlight", false)
	cfg.Store.AppGUID = ""
	app := New(cfg)
	if app.AppID != uuid.Nil {
		t.Errorf("AppID = %v, want nil UUID", app.AppID)
	}
}

func TestRequest(t *testing.T) {
	var launched []string
	rec := LauncherFunc(func(_ context.Context, uri string) error {
		launched = append(launched, uri)
		return nil
	})

	app := New(testConfig("uwp", false), WithLauncher(rec))
	ok, err := app.RequestReview(context.Background())
	if err != nil || !ok {
		t.Fatalf("RequestReview() = %v, %v", ok, err)
	}
	ok, err = app.RequestDetails(context.Background())
	if err != nil || !ok {
		t.Fatalf("RequestDetails() = %v, %v", ok, err)
	}

	want := []string{
		"ms-windows-store:REVIEW?PFN=Contoso.App_8wekyb3d8bbwe",
		"ms-windows-store:PDP?PFN=Contoso.App_8wekyb3d8bbwe",
	}
	if !reflect.DeepEqual(launched, want) {
		t.Errorf("launched = %v, want %v", launched, want)
	}
}

func TestRequest_NoStore(t *testing.T) {
	called := false
	app := New(testConfig("tizen", false), WithLauncher(LauncherFunc(func(context.Context, string) error {
		called = true
		return nil
	})))

	ok, err := app.RequestReview(context.Background())
	if ok || err != nil {
		t.Errorf("RequestReview() = %v, %v, want false, nil", ok, err)
	}
	if called {
		t.Error("launcher called for platform without store")
	}
}

func TestRequest_LaunchError(t *testing.T) {
	boom := errors.New("no handler")
	app := New(testConfig("uwp", false), WithLauncher(LauncherFunc(func(context.Context, string) error {
		return boom
	})))

	ok, err := app.RequestDetails(context.Background())
	if ok || !errors.Is(err, boom) {
		t.Errorf("RequestDetails() = %v, %v, want false, %v", ok, err, boom)
	}
}

func TestExecLauncher_Command(t *testing.T) {
	tests := []struct {
		goos     string
		wantName string
		wantArgs []string
	}{
		{"windows", "rundll32", []string{"url.dll,FileProtocolHandler", "zune:x"}},
		{"darwin", "open", []string{"zune:x"}},
		{"linux", "xdg-open", []string{"zune:x"}},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args := ExecLauncher{GOOS: tt.goos}.Command("zune:x")
			if name != tt.wantName || !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("Command() = %s %v, want %s %v", name, args, tt.wantName, tt.wantArgs)
			}
		})
	}
}
