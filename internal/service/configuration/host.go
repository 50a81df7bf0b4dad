package configuration

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/catalogmf/catalog/internal/model"
	"github.com/catalogmf/catalog/internal/service/log"
	"github.com/catalogmf/catalog/internal/service/notify"
)

// HostFile is the host configuration as written by the host shell
// deployment. The token is not validated here, a wrong token is not an
// error but a setup screen.
type HostFile struct {
	Token  string      `yaml:"token"`
	User   *UserFile   `yaml:"user"`
	Auth   *AuthFile   `yaml:"auth"`
	Notify *NotifyFile `yaml:"notify"`
}

// UserFile is the user section of the host configuration.
type UserFile struct {
	ID   string `yaml:"id" validate:"required"`
	Name string `yaml:"name"`
}

// AuthFile is the auth section of the host configuration.
type AuthFile struct {
	User  *UserFile `yaml:"user"`
	Roles []string  `yaml:"roles"`
}

// NotifyFile configures the host notification webhook.
type NotifyFile struct {
	WebhookURL  string        `yaml:"webhook_url" validate:"required,url"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
	MaxAttempts int           `yaml:"max_attempts" validate:"gte=0,lte=10"`
}

var validate = validator.New()

// ParseHostFile parses and validates a host configuration document.
func ParseHostFile(data []byte) (*HostFile, error) {
	hf := &HostFile{}
	if err := yaml.Unmarshal(data, hf); err != nil {
		return nil, errors.Wrap(err, "could not parse host config yaml")
	}
	if err := validate.Struct(hf); err != nil {
		return nil, errors.Wrap(err, "invalid host config")
	}
	return hf, nil
}

// LoadHostConfig reads the host configuration file at path and builds the
// host configuration with its capabilities.
func LoadHostConfig(path string, logger log.Logger) (*model.HostConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read host config %q", path)
	}

	hf, err := ParseHostFile(data)
	if err != nil {
		return nil, errors.Wrapf(err, "host config %q", path)
	}

	return hf.HostConfig(logger)
}

// HostConfig converts the file representation into the host configuration.
func (h *HostFile) HostConfig(logger log.Logger) (*model.HostConfig, error) {
	cfg := &model.HostConfig{
		Token: h.Token,
		User:  h.User.user(),
	}

	if h.Auth != nil {
		cfg.Auth = &model.AuthContext{
			User:  h.Auth.User.user(),
			Roles: h.Auth.Roles,
		}
	}

	if h.Notify != nil {
		n, err := notify.NewWebhook(notify.WebhookConfig{
			URL:         h.Notify.WebhookURL,
			Timeout:     h.Notify.Timeout,
			MaxAttempts: h.Notify.MaxAttempts,
			Logger:      logger,
		})
		if err != nil {
			return nil, errors.Wrap(err, "could not create host notifier")
		}
		cfg.Notifier = n
	}

	return cfg, nil
}

func (u *UserFile) user() *model.User {
	if u == nil {
		return nil
	}
	return &model.User{ID: u.ID, Name: u.Name}
}
