// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

// Package store persists chat message history in BadgerDB.
//
// Messages are keyed so that a prefix scan over a room yields newest
// messages first, which matches how clients page through history.
package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/teamup-chat/teamup/internal/config"
	"github.com/teamup-chat/teamup/internal/logging"
	"github.com/teamup-chat/teamup/internal/metrics"
	"github.com/teamup-chat/teamup/internal/models"
)

// messageKeyPrefix namespaces message records in the shared database.
const messageKeyPrefix = "msg:"

// MessageStore is a BadgerDB-backed chat history store.
//
// Keys have the form "msg:{roomID}:{inverse-timestamp}:{uuid}". The
// inverse timestamp (MaxInt64 minus unix nanos, zero-padded) makes a
// forward iteration over the room prefix return newest messages first.
type MessageStore struct {
	db          *badger.DB
	defaultPage int
	maxPage     int
}

// Open opens or creates the message database described by cfg.
func Open(cfg *config.StoreConfig) (*MessageStore, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)
	if cfg.InMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open message store: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("Message store opened")

	return &MessageStore{
		db:          db,
		defaultPage: cfg.DefaultPageSize,
		maxPage:     cfg.MaxPageSize,
	}, nil
}

// Close releases the underlying database.
func (s *MessageStore) Close() error {
	return s.db.Close()
}

// messageKey builds the storage key for a message.
func messageKey(roomID string, createdAt time.Time, id string) []byte {
	inverse := math.MaxInt64 - createdAt.UnixNano()
	return []byte(fmt.Sprintf("%s%s:%020d:%s", messageKeyPrefix, roomID, inverse, id))
}

// roomPrefix returns the key prefix covering one room's messages.
func roomPrefix(roomID string) []byte {
	return []byte(messageKeyPrefix + roomID + ":")
}

// Append persists a new message. ID and CreatedAt are assigned here;
// callers supply RoomID, SenderID, and Text.
func (s *MessageStore) Append(ctx context.Context, roomID, senderID, text string) (*models.ChatMessage, error) {
	start := time.Now()

	msg := &models.ChatMessage{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(roomID, msg.CreatedAt, msg.ID), data)
	})
	metrics.RecordStoreOperation("append", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	return msg, nil
}

// ListOptions control a history listing.
type ListOptions struct {
	// Limit caps the page size. Zero means the configured default;
	// values above the configured maximum are clamped.
	Limit int

	// Cursor resumes a previous listing. Empty starts from the newest
	// message.
	Cursor string
}

// List returns one page of a room's history, newest first, along with
// pagination metadata. An unknown room yields an empty page, not an
// error.
func (s *MessageStore) List(ctx context.Context, roomID string, opts ListOptions) (*models.MessagesPage, error) {
	start := time.Now()

	limit := opts.Limit
	if limit <= 0 {
		limit = s.defaultPage
	}
	if limit > s.maxPage {
		limit = s.maxPage
	}

	prefix := roomPrefix(roomID)
	startKey := prefix
	if opts.Cursor != "" {
		decoded, err := decodeCursor(opts.Cursor)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(decoded, string(prefix)) {
			return nil, fmt.Errorf("%w: cursor does not match room", ErrInvalidCursor)
		}
		startKey = []byte(decoded)
	}

	messages := make([]models.ChatMessage, 0, limit)
	nextCursor := ""

	err := s.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.PrefetchValues = true
		itOpts.Prefix = prefix
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Seek(startKey); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			if len(messages) == limit {
				nextCursor = encodeCursor(item.KeyCopy(nil))
				return nil
			}

			var msg models.ChatMessage
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return fmt.Errorf("unmarshal message %s: %w", item.Key(), err)
			}
			messages = append(messages, msg)
		}
		return nil
	})
	metrics.RecordStoreOperation("list", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	return &models.MessagesPage{
		Messages: messages,
		Pagination: models.PaginationInfo{
			Limit:      limit,
			HasMore:    nextCursor != "",
			NextCursor: nextCursor,
		},
	}, nil
}

// Count returns the number of persisted messages in a room. Keys only,
// no value fetches.
func (s *MessageStore) Count(ctx context.Context, roomID string) (int, error) {
	start := time.Now()
	count := 0

	prefix := roomPrefix(roomID)
	err := s.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.PrefetchValues = false
		itOpts.Prefix = prefix
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	metrics.RecordStoreOperation("count", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}

	return count, nil
}

// encodeCursor wraps a raw iteration key as an opaque client cursor.
func encodeCursor(key []byte) string {
	return base64.RawURLEncoding.EncodeToString(key)
}

// decodeCursor unwraps a client cursor back into an iteration key.
func decodeCursor(cursor string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return string(decoded), nil
}
