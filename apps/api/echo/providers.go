package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mentora/mentora/core/livesession"
	"github.com/mentora/mentora/core/meeting"
	"github.com/mentora/mentora/core/user"
)

type providerSettingsApi struct {
	svc      *livesession.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerProviderSettingsAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *livesession.Service,
	usrSvc *user.Service,
	validate *validator.Validate,
) {
	api := providerSettingsApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	pg := g.Group("/video-providers/:provider/settings", jwt, mentorOrAdminMiddleware())
	pg.GET("", api.retrieve)
	pg.PUT("", api.save)
}

// ProviderSettingsResponse never carries the full access token.
type ProviderSettingsResponse struct {
	Provider    meeting.Provider `json:"provider"`
	Configured  bool             `json:"configured"`
	AccessToken string           `json:"access_token,omitempty"` // masked
	UpdatedAt   *time.Time       `json:"updated_at"`
}

func newProviderSettingsResponse(ps livesession.ProviderSettings) ProviderSettingsResponse {
	res := ProviderSettingsResponse{
		Provider:    ps.Provider,
		Configured:  ps.AccessToken != "",
		AccessToken: ps.MaskedToken(),
	}
	if !ps.UpdatedAt.IsZero() {
		updatedAt := ps.UpdatedAt
		res.UpdatedAt = &updatedAt
	}
	return res
}

// Handlers

func (api *providerSettingsApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	provider, err := livesession.ParseProvider(ctx.Param("provider"))
	if err != nil {
		return err
	}

	ps, err := api.svc.ProviderSettings(ctx.Request().Context(), usr.ID, provider)
	if err != nil {
		if errors.Cause(err) != livesession.ErrNotFound {
			return errors.Wrap(err, "getting video provider settings")
		}
		ps = livesession.ProviderSettings{MentorID: usr.ID, Provider: provider}
	}
	return ctx.JSON(http.StatusOK, newProviderSettingsResponse(ps))
}

func (api *providerSettingsApi) save(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	provider, err := livesession.ParseProvider(ctx.Param("provider"))
	if err != nil {
		return err
	}

	var data livesession.SaveProviderSettings
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveProviderSettings")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	ps, err := api.svc.SaveProviderSettings(ctx.Request().Context(), usr.ID, provider, data)
	if err != nil {
		return errors.Wrap(err, "saving video provider settings")
	}
	return ctx.JSON(http.StatusOK, newProviderSettingsResponse(ps))
}
