// services/dispatcher.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/lcjefferson/cliniflow2026-sub001/models"
	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

// DispatchResult describes a delivered message.
type DispatchResult struct {
	Channel     string
	ProviderRef string
}

// Dispatcher sends the action of one execution. A nil error means delivered.
type Dispatcher interface {
	Dispatch(ctx context.Context, exec *models.FollowUpExecution) (DispatchResult, error)
}

var (
	ErrNoRecipient     = errors.New("patient has no phone number")
	ErrEmptyMessage    = errors.New("rendered message is empty")
	ErrChannelDisabled = errors.New("channel disabled for clinic")
)

// RenderMessage fills the definition template for the execution's patient.
func RenderMessage(exec *models.FollowUpExecution, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	firstName := strings.TrimSpace(exec.Patient.Name)
	if i := strings.IndexByte(firstName, ' '); i > 0 {
		firstName = firstName[:i]
	}

	pairs := []string{
		"{{patient_name}}", exec.Patient.Name,
		"{{patient_first_name}}", firstName,
		"{{clinic_name}}", exec.Clinic.Name,
		"{{appointment_date}}", "",
		"{{appointment_time}}", "",
		"{{professional_name}}", "",
	}
	if appt := exec.Appointment; appt != nil {
		start := appt.StartsAt.In(loc)
		pairs[7] = start.Format("02/01/2006")
		pairs[9] = start.Format("15:04")
		pairs[11] = appt.Professional.Name
	}
	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(exec.Definition.MessageTemplate))
}

// ResolveChannel picks the delivery channel. "auto" uses WhatsApp for numbers
// in international format and SMS otherwise.
func ResolveChannel(preferred, phone string) string {
	switch preferred {
	case models.ChannelSMS, models.ChannelWhatsApp:
		return preferred
	}
	if strings.HasPrefix(phone, "+") {
		return models.ChannelWhatsApp
	}
	return models.ChannelSMS
}

// clinicLocation is the clinic's own zone, or fallback when the clinic has
// none or an unknown one.
func clinicLocation(exec *models.FollowUpExecution, fallback *time.Location) *time.Location {
	if exec.Clinic.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(exec.Clinic.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// ChannelPolicy decides whether a clinic accepts sends on a channel and which
// channel "auto" definitions use.
type ChannelPolicy interface {
	Allowed(ctx context.Context, clinicID uuid.UUID, channel string) (bool, error)
	DefaultChannel(ctx context.Context, clinicID uuid.UUID) (string, error)
}

// SettingsPolicy reads ClinicSettings. Clinics without a settings row allow everything.
type SettingsPolicy struct {
	db *gorm.DB
}

func NewSettingsPolicy(db *gorm.DB) *SettingsPolicy {
	return &SettingsPolicy{db: db}
}

func (p *SettingsPolicy) load(ctx context.Context, clinicID uuid.UUID) (*models.ClinicSettings, error) {
	var settings models.ClinicSettings
	err := p.db.WithContext(ctx).Where("clinic_id = ?", clinicID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load clinic settings: %w", err)
	}
	return &settings, nil
}

func (p *SettingsPolicy) DefaultChannel(ctx context.Context, clinicID uuid.UUID) (string, error) {
	settings, err := p.load(ctx, clinicID)
	if err != nil || settings == nil || settings.DefaultChannel == "" {
		return models.ChannelAuto, err
	}
	return settings.DefaultChannel, nil
}

func (p *SettingsPolicy) Allowed(ctx context.Context, clinicID uuid.UUID, channel string) (bool, error) {
	settings, err := p.load(ctx, clinicID)
	if err != nil {
		return false, err
	}
	if settings == nil {
		return true, nil
	}
	if !settings.FollowUpsEnabled {
		return false, nil
	}
	switch channel {
	case models.ChannelWhatsApp:
		return settings.WhatsAppNotifications, nil
	case models.ChannelSMS:
		return settings.SMSNotifications, nil
	}
	return false, nil
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioDispatcher delivers follow-ups over Twilio SMS or WhatsApp.
type TwilioDispatcher struct {
	api          messageCreator
	fromSMS      string
	fromWhatsApp string
	limiter      *rate.Limiter
	policy       ChannelPolicy
	loc          *time.Location
	log          zerolog.Logger
}

type TwilioOption func(*TwilioDispatcher)

func WithTwilioCredentials(accountSID, authToken string) TwilioOption {
	return func(d *TwilioDispatcher) {
		d.api = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}).Api
	}
}

func WithSenders(smsNumber, whatsAppNumber string) TwilioOption {
	return func(d *TwilioDispatcher) {
		d.fromSMS = smsNumber
		d.fromWhatsApp = strings.TrimPrefix(whatsAppNumber, "whatsapp:")
	}
}

func WithRateLimit(perSecond int) TwilioOption {
	return func(d *TwilioDispatcher) {
		if perSecond > 0 {
			d.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		}
	}
}

func WithChannelPolicy(policy ChannelPolicy) TwilioOption {
	return func(d *TwilioDispatcher) { d.policy = policy }
}

func WithLocation(loc *time.Location) TwilioOption {
	return func(d *TwilioDispatcher) { d.loc = loc }
}

func WithDispatchLogger(log zerolog.Logger) TwilioOption {
	return func(d *TwilioDispatcher) { d.log = log }
}

func withMessageCreator(api messageCreator) TwilioOption {
	return func(d *TwilioDispatcher) { d.api = api }
}

func NewTwilioDispatcher(opts ...TwilioOption) (*TwilioDispatcher, error) {
	d := &TwilioDispatcher{
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		loc:     time.UTC,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.api == nil {
		return nil, errors.New("twilio credentials must be provided")
	}
	if d.fromSMS == "" && d.fromWhatsApp == "" {
		return nil, errors.New("at least one twilio sender number must be provided")
	}
	return d, nil
}

func (d *TwilioDispatcher) Dispatch(ctx context.Context, exec *models.FollowUpExecution) (DispatchResult, error) {
	phone := utils.NormalizePhone(exec.Patient.Phone)
	if phone == "" {
		return DispatchResult{}, ErrNoRecipient
	}
	body := RenderMessage(exec, clinicLocation(exec, d.loc))
	if body == "" {
		return DispatchResult{}, ErrEmptyMessage
	}

	preferred := exec.Definition.Channel
	if d.policy != nil && (preferred == "" || preferred == models.ChannelAuto) {
		clinicDefault, err := d.policy.DefaultChannel(ctx, exec.ClinicID)
		if err != nil {
			return DispatchResult{}, err
		}
		preferred = clinicDefault
	}
	channel := ResolveChannel(preferred, phone)
	// Only a definition that asks for WhatsApp explicitly refuses the SMS fallback.
	if channel == models.ChannelWhatsApp && d.fromWhatsApp == "" && exec.Definition.Channel != models.ChannelWhatsApp {
		channel = models.ChannelSMS
	}
	result := DispatchResult{Channel: channel}

	if d.policy != nil {
		ok, err := d.policy.Allowed(ctx, exec.ClinicID, channel)
		if err != nil {
			return result, err
		}
		if !ok {
			return result, fmt.Errorf("%w: %s", ErrChannelDisabled, channel)
		}
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetBody(body)
	switch channel {
	case models.ChannelWhatsApp:
		if d.fromWhatsApp == "" {
			return result, errors.New("no whatsapp sender configured")
		}
		params.SetTo("whatsapp:" + phone)
		params.SetFrom("whatsapp:" + d.fromWhatsApp)
	default:
		if d.fromSMS == "" {
			return result, errors.New("no sms sender configured")
		}
		params.SetTo(phone)
		params.SetFrom(d.fromSMS)
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return result, fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := d.send(ctx, params)
	if err != nil {
		d.log.Warn().Err(err).Str("execution_id", exec.ID.String()).Str("channel", channel).Msg("twilio send failed")
		return result, fmt.Errorf("send %s message: %w", channel, err)
	}
	if resp != nil && resp.Sid != nil {
		result.ProviderRef = *resp.Sid
	}
	d.log.Debug().Str("execution_id", exec.ID.String()).Str("channel", channel).Str("sid", result.ProviderRef).Msg("twilio message sent")
	return result, nil
}

// send runs the blocking SDK call and gives up when ctx ends.
func (d *TwilioDispatcher) send(ctx context.Context, params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	type reply struct {
		msg *twilioApi.ApiV2010Message
		err error
	}
	done := make(chan reply, 1)
	go func() {
		msg, err := d.api.CreateMessage(params)
		done <- reply{msg: msg, err: err}
	}()

	select {
	case r := <-done:
		return r.msg, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LogDispatcher renders and logs messages without sending them. It is used
// when Twilio is not configured.
type LogDispatcher struct {
	loc *time.Location
	log zerolog.Logger
}

func NewLogDispatcher(loc *time.Location, log zerolog.Logger) *LogDispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &LogDispatcher{loc: loc, log: log}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, exec *models.FollowUpExecution) (DispatchResult, error) {
	phone := utils.NormalizePhone(exec.Patient.Phone)
	if phone == "" {
		return DispatchResult{}, ErrNoRecipient
	}
	body := RenderMessage(exec, clinicLocation(exec, d.loc))
	if body == "" {
		return DispatchResult{}, ErrEmptyMessage
	}
	channel := ResolveChannel(exec.Definition.Channel, phone)
	d.log.Info().
		Str("execution_id", exec.ID.String()).
		Str("clinic_id", exec.ClinicID.String()).
		Str("channel", channel).
		Str("to", phone).
		Str("body", body).
		Msg("dry-run follow-up")
	return DispatchResult{Channel: channel, ProviderRef: "dry-run"}, nil
}
