package main

import (
	"context"
	"fmt"

	"github.com/s1natex/tasktracker/internal/auth"
	"github.com/s1natex/tasktracker/internal/config"
	"github.com/s1natex/tasktracker/internal/storage"
	"github.com/s1natex/tasktracker/internal/tasks"
)

type stores struct {
	tasks tasks.Store
	users auth.UserStore
	close func(context.Context) error
}

// openStores connects the backend named by cfg.Store and makes sure its
// schema or indexes exist.
func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return stores{
			tasks: tasks.NewInMemoryRepo(),
			users: auth.NewInMemoryUserStore(),
			close: func(context.Context) error { return nil },
		}, nil

	case config.StoreSQLite:
		dsn, err := storage.SQLiteFileDSN(cfg.SQLitePath)
		if err != nil {
			return stores{}, fmt.Errorf("sqlite path: %w", err)
		}
		db, err := storage.OpenSQLite(ctx, dsn)
		if err != nil {
			return stores{}, err
		}
		taskRepo := tasks.NewSQLiteRepo(db)
		userStore := auth.NewSQLiteUserStore(db)
		if err := taskRepo.ApplyMigrations(ctx); err != nil {
			_ = db.Close()
			return stores{}, err
		}
		if err := userStore.ApplyMigrations(ctx); err != nil {
			_ = db.Close()
			return stores{}, err
		}
		return stores{
			tasks: taskRepo,
			users: userStore,
			close: func(context.Context) error { return db.Close() },
		}, nil

	case config.StoreMongo:
		client, err := storage.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return stores{}, err
		}
		db := client.Database(cfg.MongoDatabase)
		taskRepo := tasks.NewMongoRepo(db)
		userStore := auth.NewMongoUserStore(db)
		if err := taskRepo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return stores{}, err
		}
		if err := userStore.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return stores{}, err
		}
		return stores{
			tasks: taskRepo,
			users: userStore,
			close: client.Disconnect,
		}, nil
	}
	return stores{}, fmt.Errorf("unknown store %q", cfg.Store)
}
