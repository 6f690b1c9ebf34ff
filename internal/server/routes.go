package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/pagecap/internal/api/v1"
	"github.com/gosuda/pagecap/internal/api/ws"
	"github.com/gosuda/pagecap/internal/capture"
	"github.com/gosuda/pagecap/internal/config"
)

func registerAPIRoutes(api huma.API, agg *capture.Aggregator, capCfg config.CaptureConfig) {
	v1.RegisterCaptureRoutes(api, agg)
	v1.RegisterSettingsRoutes(api, v1.CaptureSettings{
		DebounceMS:  int(capCfg.Debounce.Milliseconds()),
		MinTextLen:  capCfg.MinTextLen,
		MaxTextLen:  capCfg.MaxTextLen,
		BudgetBytes: capCfg.Budget,
	})
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/frames/{tabID}", hub.ServeFrame)
}
