package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/veribadge/veribadge-core/pkg/badge"
	"github.com/veribadge/veribadge-core/pkg/token"
)

// collapsedCode replaces precise verification failure codes in public
// responses so callers cannot probe which check rejected a token.
const collapsedCode = "NOT_VERIFIED"

type generateRequest struct {
	ContractAddress string             `json:"contract_address"`
	UserID          string             `json:"user_id,omitempty"`
	Metadata        token.Metadata     `json:"metadata"`
	Options         badge.IssueOptions `json:"options"`
}

type verifyRequest struct {
	Token           string `json:"token"`
	Format          string `json:"format,omitempty"`
	IncludeMetadata bool   `json:"include_metadata,omitempty"`
}

type revokeRequest struct {
	ContractAddress string `json:"contract_address"`
	UserID          string `json:"user_id"`
	Reason          string `json:"reason,omitempty"`
}

func (s *Server) handleGenerate(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, errorBody(badge.ErrCodeValidation, "invalid request body", nil))
	}

	issued, err := s.issuer.Issue(c.Request().Context(), badge.IssueRequest{
		ContractAddress: req.ContractAddress,
		UserID:          req.UserID,
		Metadata:        req.Metadata,
		Options:         req.Options,
		CallerIP:        c.RealIP(),
		UserAgent:       c.Request().UserAgent(),
	})
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"badge":   issued,
	})
}

func (s *Server) handleVerify(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, errorBody(badge.ErrCodeValidation, "invalid request body", nil))
	}
	if req.Token == "" {
		return c.JSON(http.StatusUnprocessableEntity, errorBody(badge.ErrCodeValidation, "token is required", nil))
	}

	result, err := s.verifier.Verify(c.Request().Context(), req.Token, badge.VerifyContext{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
		Consume:   true,
	})
	if result == nil {
		// Transient failure, not a verification verdict.
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, s.verifyBody(result, req))
}

// verifyBody shapes a verification result per the requested format.
func (s *Server) verifyBody(result *badge.Result, req verifyRequest) map[string]any {
	body := map[string]any{
		"verified": result.Verified,
	}
	if !result.Verified {
		body["code"] = s.publicCode(result.Code)
	}

	switch req.Format {
	case "minimal":
		return body
	case "detailed":
		body["checked_at"] = result.CheckedAt
		if s.opts.ExposeFailureDetail {
			body["state"] = result.State
		}
		fallthrough
	default:
		if result.Badge != nil {
			body["badge"] = badge.NewDisplayData(result.Badge)
		}
		if req.IncludeMetadata && result.Badge != nil {
			body["metadata"] = result.Badge.Metadata
		}
	}
	return body
}

// publicCode collapses failure codes unless detail exposure is enabled.
func (s *Server) publicCode(code string) string {
	if s.opts.ExposeFailureDetail {
		return code
	}
	return collapsedCode
}

func (s *Server) handleDisplay(c echo.Context) error {
	tok := c.Param("token")

	result, err := s.verifier.Verify(c.Request().Context(), tok, badge.VerifyContext{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
		Consume:   false,
	})
	if result == nil {
		return s.writeError(c, err)
	}

	opts := badge.DisplayOptions{
		Theme:       c.QueryParam("theme"),
		Size:        c.QueryParam("size"),
		ShowDetails: c.QueryParam("show_details") == "true",
	}

	if c.QueryParam("format") == "svg" {
		var svg string
		if result.Verified {
			svg = badge.RenderSVG(badge.NewDisplayData(result.Badge), opts)
		} else {
			svg = badge.RenderErrorSVG(s.publicCode(result.Code))
		}
		return c.Blob(http.StatusOK, "image/svg+xml", []byte(svg))
	}

	if !result.Verified {
		return c.JSON(http.StatusOK, map[string]any{
			"verified": false,
			"code":     s.publicCode(result.Code),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"verified": true,
		"badge":    badge.NewDisplayData(result.Badge),
	})
}

func (s *Server) handleRevoke(c echo.Context) error {
	var req revokeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, errorBody(badge.ErrCodeValidation, "invalid request body", nil))
	}

	b, err := s.revoker.Revoke(c.Request().Context(), req.ContractAddress, req.Reason, req.UserID)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":          true,
		"badge_id":         b.ID,
		"contract_address": b.ContractAddress,
		"revoked_at":       b.RevokedAt,
	})
}

func (s *Server) handleLevels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"levels":  badge.Levels(),
		"default": badge.DefaultLevel,
	})
}

func (s *Server) handleStats(c echo.Context) error {
	days := 30
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 365 {
			return c.JSON(http.StatusUnprocessableEntity, errorBody(badge.ErrCodeValidation, "days must be between 1 and 365", nil))
		}
		days = n
	}

	since := time.Now().AddDate(0, 0, -days)
	stats, err := s.store.Stats(c.Request().Context(), since)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"period_days": days,
		"stats":       stats,
	})
}

// writeError maps domain error codes onto HTTP statuses.
func (s *Server) writeError(c echo.Context, err error) error {
	verr, ok := badge.AsError(err)
	if !ok {
		s.logger.Error("unhandled request error", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("INTERNAL_ERROR", "internal server error", nil))
	}

	status := http.StatusInternalServerError
	switch verr.Code {
	case badge.ErrCodeValidation:
		status = http.StatusUnprocessableEntity
	case badge.ErrCodeConflict, badge.ErrCodeAlreadyRevoked:
		status = http.StatusConflict
	case badge.ErrCodeNotFound:
		status = http.StatusNotFound
	case badge.ErrCodeUnauthorized:
		status = http.StatusForbidden
	case badge.ErrCodeStoreUnavailable:
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, errorBody(verr.Code, verr.Message, verr.Details))
}
