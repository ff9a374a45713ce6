package factory

import (
	"fmt"

	"github.com/mailsift/mailsift/internal/adapters/imap"
	"github.com/mailsift/mailsift/internal/config"
	"github.com/mailsift/mailsift/internal/core"
	"go.uber.org/zap"
)

// MailboxFactory creates mail store connections
type MailboxFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMailboxFactory creates a new mailbox factory
func NewMailboxFactory(cfg *config.Config, logger *zap.Logger) *MailboxFactory {
	return &MailboxFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateMailStore dials and authenticates the configured mailbox
func (f *MailboxFactory) CreateMailStore() (core.MailStore, error) {
	imapCfg := f.cfg.GetIMAP()
	if imapCfg.Host == "" {
		return nil, fmt.Errorf("imap host is required")
	}
	if imapCfg.Username == "" || imapCfg.Password == "" {
		return nil, fmt.Errorf("imap credentials are required")
	}

	return imap.Dial(imap.Config{
		Host:     imapCfg.Host,
		Port:     imapCfg.Port,
		Username: imapCfg.Username,
		Password: imapCfg.Password,
		Security: imap.Security(imapCfg.Security),
	}, f.logger)
}
