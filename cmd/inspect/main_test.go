package main

import (
	"bytes"
	"chatter-box/repositories"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestInspector_Views(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	users := repositories.NewUserRepository(db)
	messages := repositories.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelError))
	alice, err := users.CreateUser("alice", "alice@example.com", "hash")
	req.NoError(err)
	bob, err := users.CreateUser("bob", "bob@example.com", "hash")
	req.NoError(err)
	_, err = messages.Create(bob.ID, alice.ID, "hello from bob")
	req.NoError(err)

	var out bytes.Buffer
	i := &inspector{out: &out, users: users, messages: messages}

	req.NoError(i.Users())
	req.Contains(out.String(), "alice@example.com")
	req.Contains(out.String(), "bob@example.com")

	out.Reset()
	req.NoError(i.Messages(alice.ID, ""))
	req.Contains(out.String(), "hello from bob")

	out.Reset()
	req.NoError(i.Summary(alice.ID))
	req.Contains(out.String(), "Chat list of "+string(alice.ID))
	req.Contains(out.String(), "hello from bob")

	req.Error(i.Messages("", ""))
	req.Error(i.Summary(""))
}
