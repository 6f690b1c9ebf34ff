// Package v1 is the control surface: the toolbar popup (or any other
// controller) toggles and inspects the capture session through these routes.
package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/pagecap/internal/domain"
)

type ToggleCaptureInput struct {
	Body struct {
		TabID int `json:"tab_id" minimum:"0" doc:"Tab the toggle was invoked on"`
	}
}

type ToggleCaptureOutput struct {
	Body struct {
		Recording bool                `json:"recording" doc:"Whether a session is running after the toggle"`
		State     domain.SessionState `json:"state"`
	}
}

type GetStateOutput struct {
	Body domain.SessionState
}

type GetTabStateInput struct {
	TabID int `path:"tabID" minimum:"0" doc:"Tab ID"`
}

type GetTabStateOutput struct {
	Body domain.TabSessionState
}

type GetSizeOutput struct {
	Body struct {
		SizeBytes int64 `json:"size_bytes" doc:"Approximate accumulated text cost in bytes"`
	}
}

type TabEventInput struct {
	TabID int `path:"tabID" minimum:"0" doc:"Tab ID"`
}

// CaptureSettings is handed to frames at startup so their observers and
// filters run with the daemon's configured tunables.
type CaptureSettings struct {
	DebounceMS  int   `json:"debounce_ms" doc:"Mutation batch quiescence window"`
	MinTextLen  int   `json:"min_text_len" doc:"Minimum cleaned text length kept"`
	MaxTextLen  int   `json:"max_text_len" doc:"Length above which text is truncated"`
	BudgetBytes int64 `json:"budget_bytes" doc:"Session size budget"`
}

type GetSettingsOutput struct {
	Body CaptureSettings
}

type TabEventOutput struct {
	Body struct {
		Acknowledged bool `json:"acknowledged"`
	}
}

func RegisterCaptureRoutes(api huma.API, ctrl CaptureController) {
	huma.Register(api, huma.Operation{
		OperationID: "toggle-capture",
		Method:      http.MethodPost,
		Path:        "/capture/toggle",
		Summary:     "Start capturing if stopped, stop if recording",
		Tags:        []string{"Capture"},
	}, func(ctx context.Context, input *ToggleCaptureInput) (*ToggleCaptureOutput, error) {
		if ctrl.State().IsCapturing {
			if err := ctrl.Stop(ctx, true); err != nil {
				return nil, huma.Error500InternalServerError("failed to stop capture", err)
			}
		} else {
			if err := ctrl.Start(ctx, input.Body.TabID); err != nil {
				if errors.Is(err, domain.ErrAlreadyRecording) {
					return nil, huma.Error409Conflict("capture already running")
				}
				return nil, huma.Error500InternalServerError("failed to start capture", err)
			}
		}

		out := &ToggleCaptureOutput{}
		out.Body.State = ctrl.State()
		out.Body.Recording = out.Body.State.IsCapturing
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-capture-state",
		Method:      http.MethodGet,
		Path:        "/capture/state",
		Summary:     "Get the current session state",
		Tags:        []string{"Capture"},
	}, func(_ context.Context, _ *struct{}) (*GetStateOutput, error) {
		return &GetStateOutput{Body: ctrl.State()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tab-capture-state",
		Method:      http.MethodGet,
		Path:        "/capture/state/{tabID}",
		Summary:     "Get the session state scoped to a tab",
		Tags:        []string{"Capture"},
	}, func(ctx context.Context, input *GetTabStateInput) (*GetTabStateOutput, error) {
		st, err := ctrl.TabState(ctx, input.TabID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to get tab state", err)
		}
		return &GetTabStateOutput{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-capture-size",
		Method:      http.MethodGet,
		Path:        "/capture/size",
		Summary:     "Get the accumulated session size",
		Tags:        []string{"Capture"},
	}, func(_ context.Context, _ *struct{}) (*GetSizeOutput, error) {
		out := &GetSizeOutput{}
		out.Body.SizeBytes = ctrl.CumulativeSize()
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "tab-navigated",
		Method:      http.MethodPost,
		Path:        "/capture/tab/{tabID}/navigated",
		Summary:     "Report that a tracked tab finished a navigation",
		Tags:        []string{"Capture"},
	}, func(ctx context.Context, input *TabEventInput) (*TabEventOutput, error) {
		ctrl.TabNavigated(ctx, input.TabID)
		out := &TabEventOutput{}
		out.Body.Acknowledged = true
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "tab-closed",
		Method:      http.MethodPost,
		Path:        "/capture/tab/{tabID}/closed",
		Summary:     "Report that a tracked tab was closed",
		Tags:        []string{"Capture"},
	}, func(ctx context.Context, input *TabEventInput) (*TabEventOutput, error) {
		ctrl.TabClosed(ctx, input.TabID)
		out := &TabEventOutput{}
		out.Body.Acknowledged = true
		return out, nil
	})
}

// RegisterSettingsRoutes exposes the daemon's capture tunables.
func RegisterSettingsRoutes(api huma.API, settings CaptureSettings) {
	huma.Register(api, huma.Operation{
		OperationID: "get-capture-settings",
		Method:      http.MethodGet,
		Path:        "/capture/settings",
		Summary:     "Get the capture tunables frames should run with",
		Tags:        []string{"Capture"},
	}, func(_ context.Context, _ *struct{}) (*GetSettingsOutput, error) {
		return &GetSettingsOutput{Body: settings}, nil
	})
}
