package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/docdelta/internal/config"
	"git.home.luguber.info/inful/docdelta/internal/foundation/errors"
	"git.home.luguber.info/inful/docdelta/internal/logfields"
)

const publishTimeout = 5 * time.Second

// streamPublisher is the part of jetstream.JetStream the publisher uses.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSPublisher publishes one JetStream message per version to
// "<subject>.<version>".
type NATSPublisher struct {
	conn    *nats.Conn
	js      streamPublisher
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher connects to cfg.URL and makes sure the stream capturing
// cfg.Subject exists.
func NewNATSPublisher(ctx context.Context, cfg config.NotifyConfig, logger *slog.Logger) (*NATSPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.ConfigError("notify url is required").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("docdelta"))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNotify, "failed to connect to NATS").
			WithContext("url", cfg.URL).
			Retryable().
			Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errors.WrapError(err, errors.CategoryNotify, "failed to create JetStream context").Build()
	}

	if cfg.Stream != "" {
		sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		_, err = js.CreateOrUpdateStream(sctx, jetstream.StreamConfig{
			Name:        cfg.Stream,
			Description: "docdelta build plans",
			Subjects:    []string{cfg.Subject + ".>"},
			MaxAge:      7 * 24 * time.Hour,
		})
		if err != nil {
			conn.Close()
			return nil, errors.WrapError(err, errors.CategoryNotify, "failed to ensure plan stream").
				WithContext("stream", cfg.Stream).
				Build()
		}
	}

	logger.Info("NATS plan publisher initialized",
		slog.String("url", cfg.URL),
		slog.String("subject", cfg.Subject),
		slog.String("stream", cfg.Stream))

	return &NATSPublisher{conn: conn, js: js, subject: cfg.Subject, logger: logger}, nil
}

// Publish sends one message per plan. It stops at the first failure.
func (p *NATSPublisher) Publish(ctx context.Context, plans []VersionPlan) error {
	for _, plan := range plans {
		data, err := json.Marshal(plan)
		if err != nil {
			return errors.WrapError(err, errors.CategoryNotify, "failed to marshal plan").
				WithContext("version", plan.Version).
				Build()
		}

		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		_, err = p.js.Publish(pctx, p.subjectFor(plan.Version), data,
			jetstream.WithMsgID(plan.BuildID+"/"+plan.Version))
		cancel()
		if err != nil {
			return errors.NotifyError("failed to publish plan").
				WithCause(err).
				WithContext("version", plan.Version).
				Build()
		}
		p.logger.Debug("Published version plan",
			logfields.BuildID(plan.BuildID),
			logfields.Version(plan.Version),
			slog.Bool("incremental", plan.Incremental))
	}
	return nil
}

func (p *NATSPublisher) subjectFor(version string) string {
	return p.subject + "." + subjectToken(version)
}

// subjectToken replaces characters NATS treats as subject syntax.
func subjectToken(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch r {
		case '.', '*', '>', ' ', '\t':
			out[i] = '_'
		}
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
