/*
Package store implements the server's flat-file persistence.

This file defines the BanStore, the persisted set of usernames permanently
denied authentication. The on-disk format is one username per line, sorted,
so the file stays hand-editable.
*/
package store

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"dischat/internal/pkg/logx"
)

// BansFile is the default ban list file name inside the data dir.
const BansFile = "banned_users.txt"

// BanStore persists the set of banned usernames. Membership blocks any
// future authentication by that username regardless of credential validity.
// All methods are safe for concurrent use.
type BanStore struct {
	mu     sync.RWMutex
	path   string
	banned map[string]struct{}
}

// OpenBanStore loads the ban list at path. A missing file is an empty list.
func OpenBanStore(path string) (*BanStore, error) {
	bs := &BanStore{
		path:   path,
		banned: make(map[string]struct{}),
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return bs, nil
		}
		return nil, fmt.Errorf("open ban list: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			bs.banned[name] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ban list: %w", err)
	}

	logx.Info("Ban store loaded", "path", path, "banned", len(bs.banned))
	return bs, nil
}

// Ban adds a username to the set and persists immediately. Banning an
// already banned username is a no-op.
func (bs *BanStore) Ban(username string) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if _, exists := bs.banned[username]; exists {
		return nil
	}

	bs.banned[username] = struct{}{}
	if err := bs.persistLocked(); err != nil {
		delete(bs.banned, username)
		return err
	}
	return nil
}

// Unban removes a username from the set and persists immediately. It
// reports false when the username was not banned.
func (bs *BanStore) Unban(username string) (bool, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if _, exists := bs.banned[username]; !exists {
		return false, nil
	}

	delete(bs.banned, username)
	if err := bs.persistLocked(); err != nil {
		bs.banned[username] = struct{}{}
		return false, err
	}
	return true, nil
}

// IsBanned reports whether the username is banned.
func (bs *BanStore) IsBanned(username string) bool {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	_, banned := bs.banned[username]
	return banned
}

// List returns a sorted snapshot of banned usernames.
func (bs *BanStore) List() []string {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	names := make([]string, 0, len(bs.banned))
	for name := range bs.banned {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// persistLocked rewrites the ban file atomically. Caller holds the write
// lock.
func (bs *BanStore) persistLocked() error {
	names := make([]string, 0, len(bs.banned))
	for name := range bs.banned {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteByte('\n')
	}

	return atomicWrite(bs.path, []byte(sb.String()))
}
