package main

import (
	"chatter-box/domain"
	"chatter-box/repositories"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	view := flag.String("view", "users", "What to print: users, messages or summary")
	userID := flag.String("user", "", "User id, required for messages and summary")
	peerID := flag.String("peer", "", "Peer id, restricts messages to one conversation")
	colours := flag.Bool("colours", true, "Colorize headers")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	inspector := &inspector{
		out:      os.Stdout,
		users:    repositories.NewUserRepository(db),
		messages: repositories.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelError)),
		colours:  *colours,
	}

	switch *view {
	case "users":
		err = inspector.Users()
	case "messages":
		err = inspector.Messages(domain.UserID(*userID), domain.UserID(*peerID))
	case "summary":
		err = inspector.Summary(domain.UserID(*userID))
	default:
		err = fmt.Errorf("unknown view %q", *view)
	}
	if err != nil {
		log.Fatal(err)
	}
}

type inspector struct {
	out      io.Writer
	users    repositories.IUserRepository
	messages repositories.IMessageRepository
	colours  bool
}

func (i *inspector) Users() error {
	users, err := i.users.ListUsers()
	if err != nil {
		return err
	}
	i.title(fmt.Sprintf("%d users", len(users)))
	table := newTable(i.out, "ID", "Username", "Email", "Created")
	for _, u := range users {
		table.Append([]string{string(u.ID), u.Username, u.Email, u.CreatedAt.Format("2006-01-02 15:04:05")})
	}
	table.Render()
	return nil
}

// Messages prints every conversation of user, or only the one with peer.
func (i *inspector) Messages(user, peer domain.UserID) error {
	if user == "" {
		return fmt.Errorf("-user is required")
	}
	peers := []domain.UserID{peer}
	if peer == "" {
		users, err := i.users.ListUsers()
		if err != nil {
			return err
		}
		peers = peers[:0]
		for _, u := range users {
			if u.ID != user {
				peers = append(peers, u.ID)
			}
		}
	}

	for _, p := range peers {
		history, err := i.messages.ListConversation(user, p)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			continue
		}
		i.title(fmt.Sprintf("%s <-> %s (%d)", user, p, len(history)))
		table := newTable(i.out, "ID", "From", "To", "Read", "Created", "Content")
		for _, m := range history {
			table.Append([]string{
				shortID(m.ID.String()),
				string(m.Sender),
				string(m.Receiver),
				fmt.Sprintf("%t", m.Read),
				m.CreatedAt.Format("15:04:05.000"),
				m.Content,
			})
		}
		table.Render()
	}
	return nil
}

func (i *inspector) Summary(user domain.UserID) error {
	if user == "" {
		return fmt.Errorf("-user is required")
	}
	users, err := i.users.ListUsers()
	if err != nil {
		return err
	}

	var summaries []domain.ConversationSummary
	for _, peer := range users {
		if peer.ID == user {
			continue
		}
		history, err := i.messages.ListConversation(user, peer.ID)
		if err != nil {
			return err
		}
		summaries = append(summaries, domain.Summarize(user, peer, history))
	}
	domain.SortSummaries(summaries)

	i.title(fmt.Sprintf("Chat list of %s", user))
	table := newTable(i.out, "Peer", "Username", "Unread", "Last message", "At")
	for _, s := range summaries {
		last, at := "", ""
		if s.LastMessage != nil {
			last = s.LastMessage.Content
			at = s.LastMessage.CreatedAt.Format("2006-01-02 15:04:05")
		}
		table.Append([]string{string(s.Peer.ID), s.Peer.Username, fmt.Sprintf("%d", s.UnreadCount), last, at})
	}
	table.Render()
	return nil
}

func (i *inspector) title(text string) {
	header := fmt.Sprintf("  ====== %s ======", text)
	if i.colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	fmt.Fprintln(i.out, header)
}

func newTable(out io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil && strings.Contains(err.Error(), "Log truncate required") {
		// A crashed writer leaves the value log untruncated, a write open repairs it.
		repaired, repairErr := badger.Open(badger.DefaultOptions(path).WithLogger(nil).WithBypassLockGuard(true))
		if repairErr != nil {
			return nil, fmt.Errorf("repair failed: %w", repairErr)
		}
		_ = repaired.Close()
		return badger.Open(opts)
	}
	return db, err
}
