// Package inbox watches an IMAP mailbox for letters that arrive by e-mail.
package inbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/amtspost/amtspost/internal/config"
	"github.com/amtspost/amtspost/internal/ingest"
)

// Monitor handles the IMAP connection and letter fetching
type Monitor struct {
	config  config.InboxConfig
	client  *client.Client
	senders []string
	log     *slog.Logger
}

// Letter is one e-mail accepted for analysis
type Letter struct {
	UID        uint32 // IMAP UID for move/archive
	MessageID  string
	From       string
	FromDomain string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// Text renders the letter with its subject as a Betreff line.
func (l Letter) Text() string {
	subject := strings.TrimSpace(l.Subject)
	if subject == "" {
		return l.Body
	}
	return "Betreff: " + subject + "\n\n" + l.Body
}

// Source identifies the letter in the history store.
func (l Letter) Source() string {
	if l.MessageID != "" {
		return "imap:" + l.MessageID
	}
	return fmt.Sprintf("imap:uid:%d", l.UID)
}

// NewMonitor creates a new inbox monitor
func NewMonitor(cfg config.InboxConfig) *Monitor {
	senders := make([]string, 0, len(cfg.Senders))
	for _, s := range cfg.Senders {
		s = strings.ToLower(strings.TrimSpace(s))
		s = strings.TrimPrefix(s, "@")
		if s != "" {
			senders = append(senders, s)
		}
	}
	return &Monitor{
		config:  cfg,
		senders: senders,
		log:     slog.Default().With("component", "inbox"),
	}
}

// Accepts reports whether mail from domain passes the sender allow-list. An
// empty list accepts everything; subdomains of a listed domain match.
func (m *Monitor) Accepts(domain string) bool {
	if len(m.senders) == 0 {
		return true
	}
	domain = strings.ToLower(domain)
	for _, s := range m.senders {
		if domain == s || strings.HasSuffix(domain, "."+s) {
			return true
		}
	}
	return false
}

// Connect establishes IMAP connection
func (m *Monitor) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", m.config.Server, m.config.Port)
	m.log.Info("connecting to IMAP server", "addr", addr)

	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(m.config.Email, m.config.Password); err != nil {
		c.Logout()
		return fmt.Errorf("failed to login: %w", err)
	}

	m.client = c
	m.log.Info("logged in", "email", m.config.Email)
	return nil
}

// Disconnect closes the IMAP connection
func (m *Monitor) Disconnect() error {
	if m.client != nil {
		return m.client.Logout()
	}
	return nil
}

// FetchRecentLetters fetches accepted letters from the last N days
func (m *Monitor) FetchRecentLetters(ctx context.Context, days int) ([]Letter, error) {
	if m.client == nil {
		return nil, fmt.Errorf("not connected to IMAP server")
	}

	mbox, err := m.client.Select(m.config.Folder, false)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", m.config.Folder, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	since := time.Now().AddDate(0, 0, -days)
	criteria := imap.NewSearchCriteria()
	criteria.Since = since

	uids, err := m.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search emails: %w", err)
	}
	m.log.Debug("searched mailbox", "folder", m.config.Folder, "since", since.Format("2006-01-02"), "found", len(uids))
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	// Peek keeps letters unread for the user
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- m.client.UidFetch(seqSet, items, messages)
	}()

	var letters []Letter
	var skipped int
	for msg := range messages {
		if msg == nil || msg.Envelope == nil {
			continue
		}
		letter, err := newLetter(msg.Uid, msg.Envelope, msg.GetBody(section))
		if err != nil {
			m.log.Warn("failed to parse message", "uid", msg.Uid, "error", err)
			continue
		}
		if !m.Accepts(letter.FromDomain) {
			skipped++
			continue
		}
		letters = append(letters, *letter)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	m.log.Info("fetched letters", "accepted", len(letters), "skipped", skipped)
	return letters, nil
}

// newLetter builds a Letter from an envelope and the raw message body.
func newLetter(uid uint32, env *imap.Envelope, body io.Reader) (*Letter, error) {
	letter := &Letter{
		UID:        uid,
		MessageID:  env.MessageId,
		Subject:    env.Subject,
		ReceivedAt: env.Date,
	}
	if len(env.From) > 0 {
		from := env.From[0]
		letter.From = from.Address()
		letter.FromDomain = strings.ToLower(from.HostName)
	}

	if body == nil {
		return letter, nil
	}
	parsed, err := ingest.ParseMail(body)
	if err != nil {
		return nil, err
	}
	if letter.Subject == "" {
		letter.Subject = parsed.Subject
	}
	letter.Body = parsed.Text()
	return letter, nil
}

// updateBuffer bounds unsolicited server updates queued between reads.
const updateBuffer = 32

// maxRefetch caps the fetches run for one burst of new mail.
const maxRefetch = 3

// idler is the IDLE part of the IMAP client.
type idler interface {
	Idle(stop <-chan struct{}, opts *client.IdleOptions) error
}

// WatchForNewLetters monitors the mailbox with IDLE and calls callback for
// each new accepted letter. It blocks until ctx is cancelled.
func (m *Monitor) WatchForNewLetters(ctx context.Context, callback func(Letter)) error {
	if m.client == nil {
		return fmt.Errorf("not connected to IMAP server")
	}

	if _, err := m.client.Select(m.config.Folder, false); err != nil {
		return fmt.Errorf("failed to select mailbox: %w", err)
	}

	updates := make(chan client.Update, updateBuffer)
	m.client.Updates = updates
	defer func() { m.client.Updates = nil }()

	m.log.Info("watching for new letters", "folder", m.config.Folder)

	fetch := func() ([]Letter, error) { return m.FetchRecentLetters(ctx, 1) }
	return watch(ctx, m.client, updates, fetch, callback, m.log)
}

// watch runs the IDLE loop. Each mailbox update ends IDLE, fetches, hands
// unseen letters to callback and starts IDLE again.
func watch(ctx context.Context, c idler, updates <-chan client.Update, fetch func() ([]Letter, error), callback func(Letter), log *slog.Logger) error {
	seen := make(map[uint32]bool)
	idleDone := make(chan error, 1)
	var stop chan struct{}
	startIdle := func() {
		stop = make(chan struct{})
		go func(stop <-chan struct{}) {
			idleDone <- c.Idle(stop, nil)
		}(stop)
	}
	startIdle()

	for {
		select {
		case <-ctx.Done():
			close(stop)
			<-idleDone
			return ctx.Err()
		case update := <-updates:
			u, ok := update.(*client.MailboxUpdate)
			if !ok {
				continue
			}
			log.Info("new mail detected", "messages", u.Mailbox.Messages)
			close(stop)
			if err := <-idleDone; err != nil {
				return fmt.Errorf("IDLE error: %w", err)
			}

			for _, letter := range fetchDraining(updates, fetch, log) {
				if seen[letter.UID] {
					continue
				}
				seen[letter.UID] = true
				callback(letter)
			}
			startIdle()
		case err := <-idleDone:
			if err != nil {
				return fmt.Errorf("IDLE error: %w", err)
			}
			log.Debug("IDLE ended by server, restarting")
			startIdle()
		}
	}
}

// fetchDraining runs fetch while consuming updates, so the client never
// blocks on delivering one mid-fetch. Mail announced during a fetch triggers
// another fetch.
func fetchDraining(updates <-chan client.Update, fetch func() ([]Letter, error), log *slog.Logger) []Letter {
	var letters []Letter
	for i := 0; i < maxRefetch; i++ {
		done := make(chan struct{})
		pending := make(chan bool, 1)
		go func() {
			more := false
			for {
				select {
				case u := <-updates:
					if _, ok := u.(*client.MailboxUpdate); ok {
						more = true
					}
				case <-done:
					pending <- more
					return
				}
			}
		}()

		got, err := fetch()
		close(done)
		more := <-pending
		if err != nil {
			log.Error("failed to fetch new letters", "error", err)
		} else {
			letters = append(letters, got...)
		}
		if !more {
			break
		}
	}
	return letters
}

// EnsureFolderExists creates a folder/label if it doesn't already exist
func (m *Monitor) EnsureFolderExists(name string) error {
	if m.client == nil {
		return fmt.Errorf("not connected to IMAP server")
	}

	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- m.client.List("", "*", mailboxes)
	}()

	exists := false
	for mbox := range mailboxes {
		if strings.EqualFold(mbox.Name, name) {
			exists = true
		}
	}
	if err := <-done; err != nil {
		return fmt.Errorf("failed to list folders: %w", err)
	}
	if exists {
		return nil
	}

	if err := m.client.Create(name); err != nil {
		return fmt.Errorf("failed to create folder '%s': %w", name, err)
	}
	m.log.Info("created folder", "folder", name)
	return nil
}

// ArchiveLetters moves the given letters to the archive folder
func (m *Monitor) ArchiveLetters(uids []uint32) error {
	if m.client == nil {
		return fmt.Errorf("not connected to IMAP server")
	}
	if len(uids) == 0 {
		return nil
	}
	folder := m.config.ArchiveFolder

	if _, err := m.client.Select(m.config.Folder, false); err != nil {
		return fmt.Errorf("failed to select mailbox: %w", err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	// MOVE (RFC 6851) with COPY+DELETE fallback
	if err := m.client.UidMove(seqSet, folder); err != nil {
		m.log.Debug("MOVE not supported, falling back to COPY+DELETE", "error", err)

		if err := m.client.UidCopy(seqSet, folder); err != nil {
			return fmt.Errorf("failed to copy emails to '%s': %w", folder, err)
		}
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		flags := []interface{}{imap.DeletedFlag}
		if err := m.client.UidStore(seqSet, item, flags, nil); err != nil {
			return fmt.Errorf("failed to mark emails as deleted: %w", err)
		}
		if err := m.client.Expunge(nil); err != nil {
			return fmt.Errorf("failed to expunge deleted emails: %w", err)
		}
	}

	m.log.Info("archived letters", "count", len(uids), "folder", folder)
	return nil
}
