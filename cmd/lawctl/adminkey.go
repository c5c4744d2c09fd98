package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/searcher/adminkey"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/config"
)

// withAdminStore opens the configured SQL backend and runs fn against its
// admin key table.
func withAdminStore(c *cli.Context, fn func(*adminkey.Store) error) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	backend, err := retrieval.OpenBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()
	if backend.DB == nil {
		return errors.New("admin keys need corpus.source sqlite or postgres")
	}
	store := adminkey.NewStore(backend.DB, backend.Driver, nil)
	if err := store.EnsureSchema(c.Context); err != nil {
		return err
	}
	return fn(store)
}

func adminKeyCreate(c *cli.Context) error {
	return withAdminStore(c, func(s *adminkey.Store) error {
		var expiresAt *time.Time
		if ttl := c.Duration("ttl"); ttl > 0 {
			t := time.Now().Add(ttl)
			expiresAt = &t
		}
		raw, err := s.CreateKey(c.Context, c.String("name"), expiresAt)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, raw)
		return nil
	})
}

func adminKeyRevoke(c *cli.Context) error {
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("usage: lawctl admin-key revoke <id>: %w", err)
	}
	return withAdminStore(c, func(s *adminkey.Store) error {
		if err := s.RevokeKey(c.Context, id); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "revoked key %d\n", id)
		return nil
	})
}

func adminKeyList(c *cli.Context) error {
	return withAdminStore(c, func(s *adminkey.Store) error {
		keys, err := s.ListKeys(c.Context)
		if err != nil {
			return err
		}
		for _, k := range keys {
			expires := "never"
			if k.ExpiresAt != nil {
				expires = k.ExpiresAt.Format(time.RFC3339)
			}
			fmt.Fprintf(c.App.Writer, "%d\t%s\tcreated %s\texpires %s\n",
				k.ID, k.Name, k.CreatedAt.Format(time.RFC3339), expires)
		}
		return nil
	})
}
