// TeamUp Realtime - Chat Gateway for the TeamUp Sports Partner Marketplace
// Copyright 2026 TeamUp Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/teamup-chat/teamup

package store

import "errors"

// ErrInvalidCursor reports a pagination cursor that is malformed or
// belongs to a different room.
var ErrInvalidCursor = errors.New("invalid pagination cursor")
