// Package app assembles the application's object graph.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/samber/do/v2"

	"github.com/nfrund/parley/internal/account"
	"github.com/nfrund/parley/internal/auth"
	"github.com/nfrund/parley/internal/chat"
	"github.com/nfrund/parley/internal/config"
	"github.com/nfrund/parley/internal/database"
	"github.com/nfrund/parley/internal/handlers"
	"github.com/nfrund/parley/internal/pubsub"
	"github.com/nfrund/parley/internal/rooms"
	"github.com/nfrund/parley/internal/websocket"
)

// Dependencies holds the core services the server is built from.
type Dependencies struct {
	Config        *config.Config
	Stores        *database.Stores
	Validate      *validator.Validate
	Tokens        *auth.TokenService
	Authenticator *auth.Authenticator
	Accounts      *account.Service
	Registry      *rooms.Registry
	Bus           *pubsub.WatermillBridge
	Relay         *rooms.Relay
	Pipeline      *chat.Pipeline
	History       *chat.History
	Sessions      *websocket.Handler
}

// NewContainer registers every service provider for cfg. Nothing is built
// until a service is first invoked.
func NewContainer(cfg *config.Config) *do.RootScope {
	i := do.New()

	do.ProvideValue(i, cfg)
	do.Provide(i, provideStores)
	do.Provide(i, provideValidate)
	do.Provide(i, provideTokens)
	do.Provide(i, provideHasher)
	do.Provide(i, provideAuthenticator)
	do.Provide(i, provideAccounts)
	do.Provide(i, provideRegistry)
	do.Provide(i, provideBus)
	do.Provide(i, provideRelay)
	do.Provide(i, provideResolver)
	do.Provide(i, providePipeline)
	do.Provide(i, provideHistory)
	do.Provide(i, provideSessions)

	return i
}

// Resolve builds the full graph registered by NewContainer.
func Resolve(i do.Injector) (*Dependencies, error) {
	var errs []error
	deps := &Dependencies{
		Config:        invoke[*config.Config](i, &errs),
		Stores:        invoke[*database.Stores](i, &errs),
		Validate:      invoke[*validator.Validate](i, &errs),
		Tokens:        invoke[*auth.TokenService](i, &errs),
		Authenticator: invoke[*auth.Authenticator](i, &errs),
		Accounts:      invoke[*account.Service](i, &errs),
		Registry:      invoke[*rooms.Registry](i, &errs),
		Bus:           invoke[*pubsub.WatermillBridge](i, &errs),
		Relay:         invoke[*rooms.Relay](i, &errs),
		Pipeline:      invoke[*chat.Pipeline](i, &errs),
		History:       invoke[*chat.History](i, &errs),
		Sessions:      invoke[*websocket.Handler](i, &errs),
	}
	if err := errors.Join(errs...); err != nil {
		if deps.Stores != nil {
			_ = deps.Stores.Close(context.Background())
		}
		return nil, err
	}
	return deps, nil
}

func invoke[T any](i do.Injector, errs *[]error) T {
	v, err := do.Invoke[T](i)
	if err != nil {
		*errs = append(*errs, err)
	}
	return v
}

// Close ends live sessions, then stops the bus and the stores.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Sessions.Close()
	return errors.Join(d.Bus.Close(), d.Stores.Close(ctx))
}

func provideStores(i do.Injector) (*database.Stores, error) {
	cfg := do.MustInvoke[*config.Config](i)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
	defer cancel()

	stores, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s stores: %w", cfg.StoreDriver, err)
	}
	return stores, nil
}

func provideValidate(do.Injector) (*validator.Validate, error) {
	return handlers.NewValidate(), nil
}

func provideTokens(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return auth.NewTokenService([]byte(cfg.JWTSecret), cfg.JWTExpire), nil
}

func provideHasher(i do.Injector) (*auth.Hasher, error) {
	cfg := do.MustInvoke[*config.Config](i)
	params := auth.Params{
		MemoryKB:    uint32(cfg.Argon2MemoryKB),
		Iterations:  uint32(cfg.Argon2Iterations),
		Parallelism: uint8(cfg.Argon2Parallelism),
	}
	return auth.NewHasher(params, cfg.HashConcurrency), nil
}

func provideAuthenticator(i do.Injector) (*auth.Authenticator, error) {
	stores, err := do.Invoke[*database.Stores](i)
	if err != nil {
		return nil, err
	}
	return auth.NewAuthenticator(do.MustInvoke[*auth.TokenService](i), stores.Users), nil
}

func provideAccounts(i do.Injector) (*account.Service, error) {
	stores, err := do.Invoke[*database.Stores](i)
	if err != nil {
		return nil, err
	}
	return account.NewService(
		stores.Profiles,
		do.MustInvoke[*auth.Hasher](i),
		do.MustInvoke[*auth.TokenService](i),
		do.MustInvoke[*validator.Validate](i),
	), nil
}

func provideRegistry(do.Injector) (*rooms.Registry, error) {
	return rooms.NewRegistry(), nil
}

func provideBus(do.Injector) (*pubsub.WatermillBridge, error) {
	return pubsub.NewWatermillBridge(), nil
}

func provideRelay(i do.Injector) (*rooms.Relay, error) {
	return rooms.NewRelay(do.MustInvoke[*pubsub.WatermillBridge](i), do.MustInvoke[*rooms.Registry](i)), nil
}

func provideResolver(i do.Injector) (*chat.Resolver, error) {
	stores, err := do.Invoke[*database.Stores](i)
	if err != nil {
		return nil, err
	}
	return chat.NewResolver(stores.Profiles), nil
}

func providePipeline(i do.Injector) (*chat.Pipeline, error) {
	cfg := do.MustInvoke[*config.Config](i)
	stores, err := do.Invoke[*database.Stores](i)
	if err != nil {
		return nil, err
	}
	resolver, err := do.Invoke[*chat.Resolver](i)
	if err != nil {
		return nil, err
	}
	fanout := rooms.NewBusFanout(do.MustInvoke[*pubsub.WatermillBridge](i))
	return chat.NewPipeline(stores.Messages, resolver, fanout, chat.PipelineOptions{
		MaxMessageLength: cfg.MaxMessageLength,
		StoreTimeout:     cfg.StoreTimeout,
	}), nil
}

func provideHistory(i do.Injector) (*chat.History, error) {
	cfg := do.MustInvoke[*config.Config](i)
	stores, err := do.Invoke[*database.Stores](i)
	if err != nil {
		return nil, err
	}
	resolver, err := do.Invoke[*chat.Resolver](i)
	if err != nil {
		return nil, err
	}
	return chat.NewHistory(stores.Messages, resolver, chat.HistoryOptions{
		DefaultLimit: cfg.HistoryDefaultLimit,
		MaxLimit:     cfg.HistoryMaxLimit,
		StoreTimeout: cfg.StoreTimeout,
	}), nil
}

func provideSessions(i do.Injector) (*websocket.Handler, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authenticator, err := do.Invoke[*auth.Authenticator](i)
	if err != nil {
		return nil, err
	}
	pipeline, err := do.Invoke[*chat.Pipeline](i)
	if err != nil {
		return nil, err
	}
	history, err := do.Invoke[*chat.History](i)
	if err != nil {
		return nil, err
	}
	return websocket.NewHandler(
		authenticator,
		do.MustInvoke[*rooms.Registry](i),
		pipeline,
		history,
		do.MustInvoke[*validator.Validate](i),
		websocket.Options{
			OriginPatterns: cfg.OriginPatterns(),
			SendBuffer:     cfg.SessionSendBuffer,
		},
	), nil
}
