package cloudfunctions

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/pep299/econ-news-digest/internal/config"
	"github.com/pep299/econ-news-digest/internal/di"
	"github.com/pep299/econ-news-digest/internal/logging"
)

func init() {
	functions.HTTP("EconomicReport", EconomicReport)
}

var (
	initOnce sync.Once
	handler  http.Handler
	initErr  error
)

// EconomicReport serves the control surface as an HTTP function
func EconomicReport(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		handler, initErr = newHandler(context.Background())
	})
	if initErr != nil {
		log.Printf("Failed to initialize function: %v", initErr)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	handler.ServeHTTP(w, r)
}

func newHandler(ctx context.Context) (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	container, err := di.NewContainer(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return container.Server(nil, "function").SetupRoutes(), nil
}
