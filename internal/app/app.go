package app

import (
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/sqldb"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/services/media"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/services/sentry"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/services/tokens"
)

type App struct {
	db     sqldb.Service
	sentry *sentry.SentryService
	tokens *tokens.TokenService
	media  media.Storer
}

func NewApp(
	db sqldb.Service,
	sentry *sentry.SentryService,
	tokens *tokens.TokenService,
	media media.Storer,
) *App {
	return &App{
		db:     db,
		sentry: sentry,
		tokens: tokens,
		media:  media,
	}
}
