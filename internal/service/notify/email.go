package notify

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/wneessen/go-mail"

	"smartsurveil/internal/config"
	"smartsurveil/internal/logger"
	"smartsurveil/internal/model"
	"smartsurveil/internal/stream"
)

// SendFunc delivers a rendered alert mail.
type SendFunc func(ctx context.Context, msg *mail.Msg) error

type alert struct {
	camera      model.Camera
	imagePath   string
	personCount int
	timestamp   time.Time
}

// EmailService mails intrusion alerts from a background queue.
type EmailService struct {
	server   string
	port     int
	address  string
	password string
	enabled  bool

	queue  chan alert
	send   SendFunc
	logger *logger.Logger
}

var _ stream.Notifier = (*EmailService)(nil)

func NewEmailService(cfg *config.Config, logger *logger.Logger) *EmailService {
	size := cfg.EmailQueueSize
	if size <= 0 {
		size = 16
	}
	s := &EmailService{
		server:   cfg.SMTPServer,
		port:     cfg.SMTPPort,
		address:  cfg.EmailAddress,
		password: cfg.EmailPassword,
		enabled:  cfg.EmailEnabled(),
		queue:    make(chan alert, size),
		logger:   logger,
	}
	s.send = s.dialAndSend
	if !s.enabled {
		logger.Info("Email notifications disabled: SMTP not configured")
	}
	return s
}

// WithSender replaces the SMTP transport.
func (s *EmailService) WithSender(send SendFunc) *EmailService {
	s.send = send
	return s
}

// Enabled reports whether SMTP credentials are configured.
func (s *EmailService) Enabled() bool {
	return s.enabled
}

// SendAlert queues an alert mail. It never blocks; alerts are dropped when
// email is disabled or the queue is full.
func (s *EmailService) SendAlert(camera model.Camera, imagePath string, personCount int) {
	if !s.enabled {
		return
	}
	select {
	case s.queue <- alert{camera: camera, imagePath: imagePath, personCount: personCount, timestamp: time.Now()}:
	default:
		s.logger.Warning("Email queue full, dropping alert for camera %d", camera.ID)
	}
}

// Run sends queued alerts until ctx is done.
func (s *EmailService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-s.queue:
			if err := s.deliver(ctx, a); err != nil {
				s.logger.Error("Failed to send alert email for camera %d: %v", a.camera.ID, err)
				continue
			}
			s.logger.Info("Alert email sent for camera %d (%s)", a.camera.ID, a.camera.Name)
		}
	}
}

func (s *EmailService) deliver(ctx context.Context, a alert) error {
	msg, err := s.buildMessage(a)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

// dialAndSend delivers msg over STARTTLS with PLAIN auth.
func (s *EmailService) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(s.server,
		mail.WithPort(s.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.address),
		mail.WithPassword(s.password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// buildMessage renders the alert mail with the alert image attached.
func (s *EmailService) buildMessage(a alert) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.address); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(s.address); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject("SmartSurveil Alert - " + a.camera.Name)
	msg.SetDateWithValue(a.timestamp)
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf("Intrusion detected on camera %s.\r\n\r\nPersons: %d\r\nTime: %s\r\n",
		a.camera.Name, a.personCount, a.timestamp.Format("2006-01-02 15:04:05")))

	if a.imagePath != "" {
		if _, err := os.Stat(a.imagePath); err != nil {
			s.logger.Warning("Alert image %s not attached: %v", a.imagePath, err)
		} else {
			msg.AttachFile(a.imagePath)
		}
	}
	return msg, nil
}
