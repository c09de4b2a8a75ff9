package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"sowforge/internal/domain"
	"sowforge/internal/engine"
	"sowforge/internal/export"
	"sowforge/internal/repo"
	"sowforge/internal/transcript"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"validation failed: client.name: required"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"client.name\":\"required\"}"`
}

type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Sowforge API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope above.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	hcfg := huma.DefaultConfig("Sowforge API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerGenerate(group, cfg.Engine)
	registerTranscript(group)
	registerWorkspace(group, cfg.Engine)
	registerDocuments(group, cfg.Engine)
	registerVersions(group, cfg.Engine)
	registerComments(group, cfg.Engine)
	registerChanges(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve *engine.ValidationError
	if errors.As(err, &ve) {
		details := make(map[string]any, len(ve.Fields))
		for k, v := range ve.Fields {
			details[k] = v
		}
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), details)
	}
	var ce *engine.ConflictError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func bodyBytes(ctx context.Context) []byte {
	if b, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return b
	}
	return nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Sowforge API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerGenerate(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "generate",
		Method:        http.MethodPost,
		Path:          "/generate",
		Summary:       "Generate SOW and Proposal drafts",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ActorID string          `header:"X-Actor-ID"`
		Body    GenerateRequest `json:"body"`
	}) (*struct {
		Body GenerateResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		res, err := e.Generate(ctx, input.Body.Discovery, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GenerateResponse `json:"body"`
		}{Body: GenerateResponse{SOW: res.SOW, Proposal: res.Proposal, Origin: res.Origin}}, nil
	})
}

func registerTranscript(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "parse-transcript",
		Method:      http.MethodPost,
		Path:        "/transcript/parse",
		Summary:     "Extract a discovery record from a call transcript",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ParseTranscriptRequest `json:"body"`
	}) (*struct {
		Body domain.Discovery `json:"body"`
	}, error) {
		text := input.Body.Text
		if input.Body.Sample {
			text = transcript.SampleTranscript
		}
		if strings.TrimSpace(text) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "text is required", nil)
		}
		return &struct {
			Body domain.Discovery `json:"body"`
		}{Body: transcript.Extract(text)}, nil
	})
}

func registerWorkspace(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-workspace",
		Method:      http.MethodGet,
		Path:        "/workspace",
		Summary:     "Get the full workspace state",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Workspace `json:"body"`
	}, error) {
		ws, err := e.Workspace(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Workspace `json:"body"`
		}{Body: ws}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "clear-workspace",
		Method:        http.MethodDelete,
		Path:          "/workspace",
		Summary:       "Clear the workspace",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *struct {
		ActorID string `header:"X-Actor-ID"`
	}) (*struct{}, error) {
		if err := e.Clear(ctx, input.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

type SlotPath struct {
	Slot string `path:"slot" enum:"sow,proposal"`
}

func registerDocuments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-document",
		Method:      http.MethodGet,
		Path:        "/documents/{slot}",
		Summary:     "Get a document draft",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *SlotPath) (*struct {
		Body domain.DocumentDraft `json:"body"`
	}, error) {
		doc, err := e.GetDocument(ctx, input.Slot)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DocumentDraft `json:"body"`
		}{Body: doc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-document-status",
		Method:      http.MethodPost,
		Path:        "/documents/{slot}/status",
		Summary:     "Advance a document's review status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		SlotPath
		ActorID string           `header:"X-Actor-ID"`
		Body    SetStatusRequest `json:"body"`
	}) (*struct {
		Body domain.DocumentDraft `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		doc, err := e.SetStatus(ctx, input.Slot, input.Body.Status, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DocumentDraft `json:"body"`
		}{Body: doc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-section",
		Method:      http.MethodPatch,
		Path:        "/documents/{slot}/sections/{section_id}",
		Summary:     "Replace a section's content",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		SlotPath
		SectionID string               `path:"section_id"`
		ActorID   string               `header:"X-Actor-ID"`
		Body      UpdateSectionRequest `json:"body"`
	}) (*struct {
		Body domain.DocumentDraft `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		upd := engine.SectionUpdate{
			Text:         input.Body.Text,
			Bullets:      input.Body.Bullets,
			Deliverables: input.Body.Deliverables,
			Milestones:   input.Body.Milestones,
			Pricing:      input.Body.Pricing,
			Risks:        input.Body.Risks,
		}
		doc, err := e.UpdateSection(ctx, input.Slot, input.SectionID, upd, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DocumentDraft `json:"body"`
		}{Body: doc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "render-document",
		Method:      http.MethodPost,
		Path:        "/documents/{slot}/render",
		Summary:     "Re-render a document's markdown from its draft fields",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SlotPath
		ActorID string `header:"X-Actor-ID"`
	}) (*struct {
		Body domain.DocumentDraft `json:"body"`
	}, error) {
		doc, err := e.Render(ctx, input.Slot, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DocumentDraft `json:"body"`
		}{Body: doc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-document",
		Method:      http.MethodGet,
		Path:        "/documents/{slot}/export",
		Summary:     "Export a document as markdown, html or text",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SlotPath
		Format string `query:"format" enum:"markdown,html,text" default:"markdown"`
	}) (*struct {
		Body ExportResponse `json:"body"`
	}, error) {
		doc, err := e.GetDocument(ctx, input.Slot)
		if err != nil {
			return nil, handleError(err)
		}
		var resp ExportResponse
		switch input.Format {
		case "", "markdown":
			resp = ExportResponse{
				Filename:    export.Filename(doc.Meta.Title, "md"),
				ContentType: "text/markdown",
				Content:     doc.Markdown,
			}
		case "html":
			resp = ExportResponse{
				Filename:    export.Filename(doc.Meta.Title, "html"),
				ContentType: "text/html",
				Content:     export.Document(doc),
			}
		case "text":
			resp = ExportResponse{
				Filename:    export.Filename(doc.Meta.Title, "txt"),
				ContentType: "text/plain",
				Content:     export.Text(doc),
			}
		default:
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown format "+input.Format, nil)
		}
		return &struct {
			Body ExportResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerVersions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "save-version",
		Method:        http.MethodPost,
		Path:          "/documents/{slot}/versions",
		Summary:       "Snapshot the current draft",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SlotPath
		ActorID string             `header:"X-Actor-ID"`
		Body    SaveVersionRequest `json:"body"`
	}) (*struct {
		Body domain.Version `json:"body"`
	}, error) {
		v, err := e.SaveVersion(ctx, input.Slot, input.Body.Description, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Version `json:"body"`
		}{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-versions",
		Method:      http.MethodGet,
		Path:        "/versions",
		Summary:     "List saved versions",
	}, func(ctx context.Context, input *struct {
		Slot string `query:"slot" enum:"sow,proposal,"`
	}) (*struct {
		Body []domain.Version `json:"body"`
	}, error) {
		items, err := e.ListVersions(ctx, input.Slot)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Version `json:"body"`
		}{Body: items}, nil
	})
}

func registerComments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-comment",
		Method:        http.MethodPost,
		Path:          "/documents/{slot}/comments",
		Summary:       "Comment on a section",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		SlotPath
		Body AddCommentRequest `json:"body"`
	}) (*struct {
		Body domain.Comment `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		c, err := e.AddComment(ctx, input.Slot, input.Body.SectionID, input.Body.Content, input.Body.Author)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Comment `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-comments",
		Method:      http.MethodGet,
		Path:        "/comments",
		Summary:     "List comments",
	}, func(ctx context.Context, input *struct {
		Slot string `query:"slot" enum:"sow,proposal,"`
	}) (*struct {
		Body []domain.Comment `json:"body"`
	}, error) {
		items, err := e.ListComments(ctx, input.Slot)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Comment `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "resolve-comment",
		Method:        http.MethodPost,
		Path:          "/comments/{comment_id}/resolve",
		Summary:       "Resolve a comment",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CommentID string `path:"comment_id"`
		ActorID   string `header:"X-Actor-ID"`
	}) (*struct{}, error) {
		if err := e.ResolveComment(ctx, input.CommentID, input.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerChanges(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "propose-change",
		Method:        http.MethodPost,
		Path:          "/documents/{slot}/changes",
		Summary:       "Propose an edit to a section",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		SlotPath
		Body ProposeChangeRequest `json:"body"`
	}) (*struct {
		Body domain.Change `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		c, err := e.ProposeChange(ctx, input.Slot, input.Body.SectionID, input.Body.After, input.Body.Author)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Change `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-changes",
		Method:      http.MethodGet,
		Path:        "/changes",
		Summary:     "List proposed changes",
	}, func(ctx context.Context, input *struct {
		Slot   string `query:"slot" enum:"sow,proposal,"`
		Status string `query:"status" enum:"pending,accepted,rejected,"`
	}) (*struct {
		Body []domain.Change `json:"body"`
	}, error) {
		items, err := e.ListChanges(ctx, input.Slot, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Change `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "diff-change",
		Method:      http.MethodGet,
		Path:        "/changes/{change_id}/diff",
		Summary:     "Line diff between a change's before and after",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ChangeID string `path:"change_id"`
	}) (*struct {
		Body DiffResponse `json:"body"`
	}, error) {
		c, err := e.Repo.GetChange(ctx, input.ChangeID)
		if err != nil {
			return nil, handleError(err)
		}
		d := export.Lines(c.Before, c.After)
		return &struct {
			Body DiffResponse `json:"body"`
		}{Body: DiffResponse{
			ChangeID:  c.ID,
			SectionID: c.SectionID,
			Added:     d.Added,
			Removed:   d.Removed,
			Unchanged: d.Unchanged,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-change",
		Method:      http.MethodPost,
		Path:        "/changes/{change_id}/accept",
		Summary:     "Accept a pending change",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ChangeID string `path:"change_id"`
		ActorID  string `header:"X-Actor-ID"`
	}) (*struct {
		Body domain.DocumentDraft `json:"body"`
	}, error) {
		doc, err := e.AcceptChange(ctx, input.ChangeID, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DocumentDraft `json:"body"`
		}{Body: doc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "reject-change",
		Method:        http.MethodPost,
		Path:          "/changes/{change_id}/reject",
		Summary:       "Reject a pending change",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ChangeID string `path:"change_id"`
		ActorID  string `header:"X-Actor-ID"`
	}) (*struct{}, error) {
		if err := e.RejectChange(ctx, input.ChangeID, input.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
	}, func(ctx context.Context, input *struct {
		Limit int    `query:"limit" minimum:"0" maximum:"500"`
		Type  string `query:"type"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		items, err := e.LatestEvents(ctx, input.Limit, input.Type)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}
