package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-taskforms/internal/config"
	"github.com/goliatone/go-taskforms/internal/storage/sqlite"
	"github.com/goliatone/go-taskforms/internal/tracing"
	"github.com/goliatone/go-taskforms/pkg/orchestrator"
	"github.com/goliatone/go-taskforms/pkg/render"
	"github.com/goliatone/go-taskforms/pkg/renderers/openapi"
	"github.com/goliatone/go-taskforms/pkg/renderers/tui"
	"github.com/goliatone/go-taskforms/pkg/renderers/vanilla"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *sqlite.Store
	forms    *orchestrator.Orchestrator
	shutdown func(context.Context) error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}

	tp, shutdown, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    appName,
		ServiceVersion: Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRatio:    cfg.TraceSample,
	}, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	store, err := sqlite.Open(ctx, cfg.DBPath, sqlite.WithLogger(logger.Named("store")))
	if err != nil {
		_ = tracing.Shutdown(shutdown, logger)
		_ = logger.Sync()
		return nil, err
	}

	registry, err := newRegistry(cfg.DefaultEngine)
	if err != nil {
		_ = store.Close()
		_ = tracing.Shutdown(shutdown, logger)
		return nil, err
	}
	saveMode, err := cfg.SaveValidationMode()
	if err != nil {
		_ = store.Close()
		_ = tracing.Shutdown(shutdown, logger)
		return nil, err
	}

	localizer, err := newLocalizer(cfg)
	if err != nil {
		_ = store.Close()
		_ = tracing.Shutdown(shutdown, logger)
		return nil, err
	}

	forms := orchestrator.New(store, store,
		orchestrator.WithRegistry(registry),
		orchestrator.WithDecorators(localizer),
		orchestrator.WithSaveValidation(saveMode),
		orchestrator.WithLogger(logger.Named("forms")),
		orchestrator.WithTracerProvider(tp),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		forms:    forms,
		shutdown: shutdown,
	}, nil
}

// namedEngine is a bundled renderer that knows its registration name.
type namedEngine interface {
	render.Renderer
	Name() string
}

// newRegistry registers the bundled engines under their own names and marks
// defaultEngine as the default. The registry is sealed before use. The
// terminal engine talks on stderr so stdout stays machine readable.
func newRegistry(defaultEngine string) (*render.Registry, error) {
	html, err := vanilla.New()
	if err != nil {
		return nil, err
	}

	registry := render.NewRegistry()
	engines := []namedEngine{
		html,
		openapi.New(),
		tui.New(tui.WithOutput(os.Stderr)),
	}
	found := false
	for _, e := range engines {
		isDefault := e.Name() == defaultEngine
		found = found || isDefault
		if err := registry.Register(e.Name(), e, isDefault); err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, fmt.Errorf("config: default engine %q is not one of %v", defaultEngine, registry.List())
	}
	registry.Seal()
	return registry, nil
}

// contentType reports the media type of the named engine, or of the default
// engine when name is empty. Unknown engines and engines without a media type
// yield "".
func (a *app) contentType(name string) string {
	registry := a.forms.Registry()
	var (
		r   render.Renderer
		err error
	)
	if name == "" {
		r, err = registry.LookupDefault()
	} else {
		r, err = registry.Lookup(name)
	}
	if err != nil {
		return ""
	}
	if typed, ok := r.(render.ContentTyper); ok {
		return typed.ContentType()
	}
	return ""
}

// newLocalizer returns a label translator for the configured locale. Without
// a catalog file every label falls back to its definition name.
func newLocalizer(cfg config.Config) (*render.Localizer, error) {
	localizer := &render.Localizer{Locale: strings.TrimSpace(cfg.Locale)}
	if path := strings.TrimSpace(cfg.Translations); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read translations: %w", err)
		}
		catalog, err := render.ParseCatalog(data)
		if err != nil {
			return nil, err
		}
		localizer.Translator = catalog
	}
	return localizer, nil
}

func (a *app) Close() error {
	if a == nil {
		return nil
	}
	err := a.store.Close()
	_ = tracing.Shutdown(a.shutdown, a.logger)
	_ = a.logger.Sync()
	return err
}
