package types

import (
	"context"
	"errors"

	"airsync/internal/app"
)

type contextKey string

// AppKey ключ собранного приложения в контексте команды
const AppKey contextKey = "app"

var errNoApp = errors.New("application is not initialized")

func WithApp(ctx context.Context, a *app.App) context.Context {
	return context.WithValue(ctx, AppKey, a)
}

// AppFrom достает приложение, подготовленное в PersistentPreRunE
func AppFrom(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(AppKey).(*app.App)
	if !ok || a == nil {
		return nil, errNoApp
	}
	return a, nil
}
