// Package imap adapts a remote IMAP mailbox to the MailStore port. One
// Mailbox wraps one connection; callers serialize access to it.
package imap

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/mailsift/mailsift/internal/core"
	"go.uber.org/zap"
)

// Security selects how the connection to the server is protected
type Security string

const (
	SecurityTLS      Security = "tls"
	SecurityStartTLS Security = "starttls"
	SecurityNone     Security = "none"
)

// Config holds the connection parameters for one mailbox account
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Security Security
}

// Mailbox is an IMAP implementation of the MailStore interface
type Mailbox struct {
	client *imapclient.Client
	logger *zap.Logger
}

// Dial connects to the server, authenticates, and returns a ready Mailbox
func Dial(cfg Config, logger *zap.Logger) (*Mailbox, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var (
		client *imapclient.Client
		err    error
	)
	switch cfg.Security {
	case SecurityStartTLS:
		client, err = imapclient.DialStartTLS(addr, nil)
	case SecurityNone:
		client, err = imapclient.DialInsecure(addr, nil)
	default:
		client, err = imapclient.DialTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial IMAP server %s: %w", addr, err)
	}

	if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to login as %s: %w", cfg.Username, err)
	}

	logger.Info("IMAP connection established",
		zap.String("server", addr),
		zap.String("username", cfg.Username))
	return &Mailbox{client: client, logger: logger}, nil
}

// Folders lists all folder paths on the server
func (m *Mailbox) Folders(ctx context.Context) ([]string, error) {
	mboxes, err := m.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	folders := make([]string, 0, len(mboxes))
	for _, mbox := range mboxes {
		folders = append(folders, mbox.Mailbox)
	}
	return folders, nil
}

// Select opens a folder for subsequent search/fetch/copy/store calls
func (m *Mailbox) Select(ctx context.Context, folder string) error {
	if _, err := m.client.Select(folder, nil).Wait(); err != nil {
		return fmt.Errorf("failed to select folder %s: %w", folder, err)
	}
	return nil
}

// Search enumerates message UIDs in the selected folder
func (m *Mailbox) Search(ctx context.Context, scope core.SearchScope) ([]string, error) {
	criteria := &imap.SearchCriteria{}
	if scope == core.ScopeUnseen {
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}

	data, err := m.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to search folder: %w", err)
	}

	numeric := data.AllUIDs()
	uids := make([]string, 0, len(numeric))
	for _, uid := range numeric {
		uids = append(uids, strconv.FormatUint(uint64(uid), 10))
	}
	return uids, nil
}

// FetchDate returns the internal date of a message in the selected folder
func (m *Mailbox) FetchDate(ctx context.Context, uid string) (time.Time, error) {
	uidSet, err := parseUIDSet(uid)
	if err != nil {
		return time.Time{}, err
	}

	msgs, err := m.client.Fetch(uidSet, &imap.FetchOptions{
		UID:          true,
		InternalDate: true,
	}).Collect()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch date for UID %s: %w", uid, err)
	}
	if len(msgs) == 0 {
		return time.Time{}, fmt.Errorf("no message with UID %s", uid)
	}
	return msgs[0].InternalDate, nil
}

// FetchMessage fetches and decodes a message in the selected folder. The
// caller fills in the folder half of the identity.
func (m *Mailbox) FetchMessage(ctx context.Context, uid string) (*core.Message, error) {
	uidSet, err := parseUIDSet(uid)
	if err != nil {
		return nil, err
	}

	bodySection := &imap.FetchItemBodySection{}
	msgs, err := m.client.Fetch(uidSet, &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch UID %s: %w", uid, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("no message with UID %s", uid)
	}
	buf := msgs[0]

	msg := &core.Message{
		ID:   core.MessageID{UID: uid},
		Date: buf.InternalDate,
	}
	if buf.Envelope != nil {
		msg.Subject = buf.Envelope.Subject
		if len(buf.Envelope.From) > 0 {
			msg.From = buf.Envelope.From[0].Addr()
		}
	}

	raw := buf.FindBodySection(bodySection)
	if len(raw) > 0 {
		body, err := extractTextBody(raw)
		if err != nil {
			// Classification degrades to headers only, it does not abort
			m.logger.Debug("failed to extract message body",
				zap.String("uid", uid),
				zap.Error(err))
		} else {
			msg.Body = body
		}
	}
	return msg, nil
}

// Copy copies a message from the selected folder to dest
func (m *Mailbox) Copy(ctx context.Context, uid string, dest string) error {
	uidSet, err := parseUIDSet(uid)
	if err != nil {
		return err
	}
	if _, err := m.client.Copy(uidSet, dest).Wait(); err != nil {
		return fmt.Errorf("failed to copy UID %s to %s: %w", uid, dest, err)
	}
	return nil
}

// MarkDeleted flags a message in the selected folder for expunge
func (m *Mailbox) MarkDeleted(ctx context.Context, uid string) error {
	uidSet, err := parseUIDSet(uid)
	if err != nil {
		return err
	}
	cmd := m.client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("failed to mark UID %s deleted: %w", uid, err)
	}
	return nil
}

// Expunge permanently removes messages flagged deleted
func (m *Mailbox) Expunge(ctx context.Context) error {
	if err := m.client.Expunge().Close(); err != nil {
		return fmt.Errorf("failed to expunge folder: %w", err)
	}
	return nil
}

// Create creates a folder
func (m *Mailbox) Create(ctx context.Context, folder string) error {
	if err := m.client.Create(folder, nil).Wait(); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", folder, err)
	}
	return nil
}

// Close logs out and closes the connection
func (m *Mailbox) Close() error {
	if err := m.client.Logout().Wait(); err != nil {
		m.client.Close()
		return fmt.Errorf("failed to logout: %w", err)
	}
	return m.client.Close()
}

func parseUIDSet(uid string) (imap.UIDSet, error) {
	n, err := strconv.ParseUint(uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid UID %q: %w", uid, err)
	}
	return imap.UIDSetNum(imap.UID(n)), nil
}
