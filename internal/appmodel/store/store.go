// Package store builds store detail and review links for the running
// application and hands them to the platform's URI launcher.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dshills/appshim/internal/config"
	"github.com/dshills/appshim/internal/logging"
)

// Platform identifiers with a store link scheme.
const (
	PlatformUWP          = "uwp"
	PlatformWindows      = "windows"
	PlatformWindowsPhone = "windowsphone"
	PlatformSilverlight  = "silverlight"
)

// CurrentApp identifies the running application in its platform store.
type CurrentApp struct {
	// Platform is a platform identifier such as "uwp".
	Platform string
	// AppID is the store application GUID. It is uuid.Nil on platforms
	// without one.
	AppID uuid.UUID
	// FamilyName is the package family name.
	FamilyName string
	// ProductID is the store product identifier.
	ProductID string
	// OnWindows10 selects the newer link forms on phone platforms.
	OnWindows10 bool

	launcher Launcher
	logger   *logging.Logger
}

// Option configures a CurrentApp.
type Option func(*CurrentApp)

// WithLauncher replaces the default ExecLauncher.
func WithLauncher(l Launcher) Option {
	return func(a *CurrentApp) {
		if l != nil {
			a.launcher = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *CurrentApp) {
		a.logger = logging.OrNull(l)
	}
}

// New returns the CurrentApp described by cfg. An invalid or empty app GUID
// yields uuid.Nil.
func New(cfg *config.Config, opts ...Option) *CurrentApp {
	a := &CurrentApp{
		Platform:    strings.ToLower(strings.TrimSpace(cfg.Platform)),
		FamilyName:  cfg.Store.FamilyName,
		ProductID:   cfg.Store.ProductID,
		OnWindows10: cfg.Store.OnWindows10,
		launcher:    ExecLauncher{},
		logger:      logging.NullLogger,
	}
	if id, err := uuid.Parse(cfg.Store.AppGUID); err == nil {
		a.AppID = id
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DetailsURI returns the link to the app's store page, or "" when the
// platform has no store.
func (a *CurrentApp) DetailsURI() string {
	switch a.Platform {
	case PlatformUWP, PlatformWindows:
		return "ms-windows-store:PDP?PFN=" + a.FamilyName
	case PlatformWindowsPhone:
		if a.OnWindows10 {
			return "ms-windows-store://pdp/?PhoneAppId=" + a.ProductID
		}
		return "ms-windows-store:navigate?appid=" + a.AppID.String()
	case PlatformSilverlight:
		return "zune:navigate?appid=" + a.AppID.String()
	default:
		return ""
	}
}

// ReviewURI returns the link to the app's review page, or "" when the
// platform has no store.
func (a *CurrentApp) ReviewURI() string {
	switch a.Platform {
	case PlatformUWP, PlatformWindows:
		return "ms-windows-store:REVIEW?PFN=" + a.FamilyName
	case PlatformWindowsPhone:
		if a.OnWindows10 {
			return "ms-windows-store://reviewapp/?AppId=" + a.ProductID
		}
		return "ms-windows-store:reviewapp?appid=" + a.AppID.String()
	case PlatformSilverlight:
		return "zune:reviewapp?appid=app" + a.AppID.String()
	default:
		return ""
	}
}

// RequestDetails opens the app's store page. It reports false without error
// when the platform has no store.
func (a *CurrentApp) RequestDetails(ctx context.Context) (bool, error) {
	return a.launch(ctx, "details", a.DetailsURI())
}

// RequestReview opens the app's review page. It reports false without error
// when the platform has no store.
func (a *CurrentApp) RequestReview(ctx context.Context) (bool, error) {
	return a.launch(ctx, "review", a.ReviewURI())
}

func (a *CurrentApp) launch(ctx context.Context, what, uri string) (bool, error) {
	if uri == "" {
		a.logger.Debug("no store %s link on platform %q", what, a.Platform)
		return false, nil
	}
	a.logger.Info("opening store %s: %s", what, uri)
	if err := a.launcher.Launch(ctx, uri); err != nil {
		return false, fmt.Errorf("opening store %s: %w", what, err)
	}
	return true, nil
}
