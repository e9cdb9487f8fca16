package meeting

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/mentora/mentora/core"
)

// conferencer is implemented by every provider strategy.
type conferencer interface {
	create(ctx context.Context, desc Description, token string) (Credentials, error)
	update(ctx context.Context, meetingID string, desc Description, token string) (Credentials, error)
	delete(ctx context.Context, meetingID, token string) error
	recording(ctx context.Context, meetingID, token string) (*Recording, error)
}

type Options struct {
	GoogleBaseURL   string
	ZoomBaseURL     string
	ZohoBaseURL     string
	FallbackBaseURL string // where fallback meetings are hosted
	HTTPClient      *http.Client
}

// OptionsFromConfig builds adapter options from the app config.
func OptionsFromConfig(conf core.MeetingConfig) Options {
	return Options{
		GoogleBaseURL:   conf.GoogleBaseURL,
		ZoomBaseURL:     conf.ZoomBaseURL,
		ZohoBaseURL:     conf.ZohoBaseURL,
		FallbackBaseURL: conf.FallbackBaseURL,
		HTTPClient:      &http.Client{Timeout: conf.HTTPTimeout},
	}
}

// Adapter translates meeting lifecycle operations into provider API calls.
type Adapter struct {
	googleMeet conferencer
	zoom       conferencer
	zoho       conferencer
	fallback   fallbackGenerator
	logger     core.Logger
}

func NewAdapter(opts Options, logger core.Logger) *Adapter {
	vala.BeginValidation().Validate(
		vala.StringNotEmpty(opts.GoogleBaseURL, "GoogleBaseURL"),
		vala.StringNotEmpty(opts.ZoomBaseURL, "ZoomBaseURL"),
		vala.StringNotEmpty(opts.ZohoBaseURL, "ZohoBaseURL"),
		vala.StringNotEmpty(opts.FallbackBaseURL, "FallbackBaseURL"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Adapter{
		googleMeet: newGoogleMeet(opts.GoogleBaseURL, httpClient),
		zoom:       newZoom(opts.ZoomBaseURL, httpClient),
		zoho:       newZoho(opts.ZohoBaseURL, httpClient),
		fallback:   fallbackGenerator{baseURL: opts.FallbackBaseURL},
		logger:     logger,
	}
}

func (a *Adapter) strategy(p Provider) (conferencer, error) {
	switch p {
	case GoogleMeet:
		return a.googleMeet, nil
	case Zoom:
		return a.zoom, nil
	case Zoho:
		return a.zoho, nil
	}
	return nil, errors.Wrapf(ErrUnknownProvider, "%q", p)
}

func (a *Adapter) prepare(p Provider, settings Settings) (conferencer, string, error) {
	conf, err := a.strategy(p)
	if err != nil {
		return nil, "", err
	}
	if settings.AccessToken == "" {
		return nil, "", errors.Wrapf(ErrMissingAccessToken, "%s", p)
	}
	return conf, settings.AccessToken, nil
}

func (a *Adapter) createMeeting(ctx context.Context, desc Description, settings Settings) (Credentials, error) {
	conf, token, err := a.prepare(desc.Provider, settings)
	if err != nil {
		return Credentials{}, err
	}
	return conf.create(ctx, desc, token)
}

// CreateMeeting schedules a meeting with the description's provider.
// It never fails: when the provider cannot be used, a fallback meeting is generated.
func (a *Adapter) CreateMeeting(ctx context.Context, desc Description, settings Settings) Credentials {
	creds, err := a.createMeeting(ctx, desc, settings)
	if err != nil {
		a.logger.Warn(fmt.Sprintf("meeting: creating %s meeting failed, using a fallback meeting: %v", desc.Provider, err), err)
		return a.GenerateMeetingCredentials(desc)
	}
	return creds
}

// UpdateMeeting reschedules an existing provider meeting. Errors are returned as is.
func (a *Adapter) UpdateMeeting(ctx context.Context, meetingID string, desc Description, settings Settings) (Credentials, error) {
	conf, token, err := a.prepare(desc.Provider, settings)
	if err != nil {
		return Credentials{}, err
	}
	creds, err := conf.update(ctx, meetingID, desc, token)
	if err != nil {
		return Credentials{}, errors.Wrap(err, "updating meeting")
	}
	return creds, nil
}

// DeleteMeeting removes the provider meeting on a best effort basis; failures are only logged.
func (a *Adapter) DeleteMeeting(ctx context.Context, meetingID string, provider Provider, settings Settings) {
	if IsFallbackMeeting(meetingID) {
		return
	}
	conf, token, err := a.prepare(provider, settings)
	if err == nil {
		err = conf.delete(ctx, meetingID, token)
	}
	if err != nil {
		a.logger.Warn(fmt.Sprintf("meeting: deleting %s meeting %q failed: %v", provider, meetingID, err), err)
	}
}

// GetMeetingRecording returns the meeting recording, or nil when none is available.
func (a *Adapter) GetMeetingRecording(ctx context.Context, meetingID string, provider Provider, settings Settings) *Recording {
	if IsFallbackMeeting(meetingID) {
		return nil
	}
	conf, token, err := a.prepare(provider, settings)
	if err != nil {
		a.logger.Debug(fmt.Sprintf("meeting: no recording for %s meeting %q: %v", provider, meetingID, err))
		return nil
	}
	rec, err := conf.recording(ctx, meetingID, token)
	if err != nil {
		if !IsNotFound(err) {
			a.logger.Warn(fmt.Sprintf("meeting: fetching %s recording %q failed: %v", provider, meetingID, err), err)
		}
		return nil
	}
	return rec
}

// GenerateMeetingCredentials returns a fallback meeting hosted on the fallback domain.
func (a *Adapter) GenerateMeetingCredentials(desc Description) Credentials {
	return a.fallback.generate(desc)
}
