// Package redis provides a Redis-backed token store for hosts that run the
// SDK server-side (bots, bridges) and share one credential slot across
// restarts or replicas. The pair lives in a single hash so both tokens are
// written in one atomic command, and the key expires with the refresh token.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loopchat/authkit/tokenstore"
)

const (
	fieldAccess     = "access"
	fieldRefresh    = "refresh"
	fieldAccessExp  = "access_exp"
	fieldRefreshExp = "refresh_exp"
)

// Store keeps the credential pair in one Redis hash under prefix.
type Store struct {
	client redis.UniversalClient
	key    string
}

var _ tokenstore.Store = (*Store)(nil)

// New returns a store using the given client. prefix namespaces the key;
// "authkit" is used when empty.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "authkit"
	}
	return &Store{
		client: client,
		key:    prefix + ":credentials",
	}
}

func (s *Store) Read(ctx context.Context) (*tokenstore.Pair, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tokenstore.ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	accessExp, err := strconv.ParseInt(fields[fieldAccessExp], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt access expiry: %v", tokenstore.ErrUnavailable, err)
	}
	refreshExp, err := strconv.ParseInt(fields[fieldRefreshExp], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt refresh expiry: %v", tokenstore.ErrUnavailable, err)
	}

	return &tokenstore.Pair{
		AccessToken:      fields[fieldAccess],
		RefreshToken:     fields[fieldRefresh],
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *Store) Write(ctx context.Context, pair tokenstore.Pair) error {
	if err := pair.Validate(); err != nil {
		return err
	}

	// MULTI/EXEC so the hash write and its expiry land together.
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key,
			fieldAccess, pair.AccessToken,
			fieldRefresh, pair.RefreshToken,
			fieldAccessExp, strconv.FormatInt(pair.AccessExpiresAt, 10),
			fieldRefreshExp, strconv.FormatInt(pair.RefreshExpiresAt, 10),
		)
		pipe.ExpireAt(ctx, s.key, time.Unix(pair.RefreshExpiresAt, 0))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", tokenstore.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", tokenstore.ErrUnavailable, err)
	}
	return nil
}
