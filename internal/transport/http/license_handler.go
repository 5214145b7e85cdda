package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "nftgate/internal/errors"
	"nftgate/internal/infrastructure"
	"nftgate/internal/license"
)

// maxResponseBody caps the size of a submitted licensing response
const maxResponseBody = 64 << 10

// Licensing is the challenge-response capability served over HTTP
type Licensing interface {
	IssueChallenge(ctx context.Context) license.LicensingRequest
	ValidateResponse(ctx context.Context, response *license.LicensingResponse) (bool, error)
}

// VerifyResult is the body returned by POST /verify
type VerifyResult struct {
	Valid bool `json:"valid"`
}

// LicenseHandler handles licensing challenge and verification requests
type LicenseHandler struct {
	licensing    Licensing
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(licensing Licensing, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		licensing:    licensing,
		errorHandler: errorHandler,
		logger:       infrastructure.WithComponent(logger, "license_handler"),
	}
}

// Routes returns a chi router for license endpoints
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/challenge", h.IssueChallenge)
	r.Post("/verify", h.Verify)
	return r
}

// IssueChallenge handles POST /api/license/challenge
func (h *LicenseHandler) IssueChallenge(w http.ResponseWriter, r *http.Request) {
	request := h.licensing.IssueChallenge(r.Context())

	h.logger.DebugContext(r.Context(), "challenge issued",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("challenge_id", request.ID))

	render.JSON(w, r, request)
}

// Verify handles POST /api/license/verify. Protocol rejections answer
// {"valid":false}; only undecodable bodies and oracle failures are errors.
func (h *LicenseHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var response license.LicensingResponse
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxResponseBody), &response); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	valid, err := h.licensing.ValidateResponse(ctx, &response)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, VerifyResult{Valid: valid})
}
