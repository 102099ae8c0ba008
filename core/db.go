package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Connect opens a pgx connection pool with conservative defaults and checks connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := newPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// newPool builds the pool without waiting for the server; connections are dialed on demand.
func newPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, errors.New("empty database dsn")
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second

	return pgxpool.NewWithConfig(ctx, config)
}

// ConnectMongo connects to MongoDB with the stable v1 server API and pings the primary.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := newMongoClient(uri)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// newMongoClient validates the URI and returns a client that dials lazily.
func newMongoClient(uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, errors.New("empty mongo uri")
	}
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1).SetStrict(true).SetDeprecationErrors(true))
	if opts.ServerSelectionTimeout == nil {
		opts.SetServerSelectionTimeout(5 * time.Second)
	}
	return mongo.Connect(context.Background(), opts)
}

// storeSetupRetry is the pause between attempts to prepare an unreachable store.
var storeSetupRetry = 5 * time.Second

// OpenUserRepository picks the user store from the scheme of cfg.DatabaseURL and
// returns it with a close func. Only a malformed URL or unknown scheme is an
// error. An unreachable server is logged and the repository is returned anyway;
// its calls fail with ErrStoreUnavailable until the server answers, and the
// uniqueness constraint is created in the background once it does.
func OpenUserRepository(ctx context.Context, cfg Config) (UserRepository, func(), error) {
	u, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		// do not echo the URL; it may carry credentials
		return nil, nil, errors.New("database url is not a valid URL")
	}

	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		client, err := newMongoClient(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		repo := NewMongoUserRepository(client.Database(cfg.DatabaseName).Collection(cfg.UsersCollection))
		stop := prepareStore(ctx, "mongo users index", repo.EnsureIndexes)
		closeFn := func() {
			stop()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		}
		return repo, closeFn, nil

	case "postgres", "postgresql":
		pool, err := newPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		repo := NewPgUserRepository(pool, cfg.UsersCollection)
		stop := prepareStore(ctx, "postgres users table", repo.EnsureSchema)
		closeFn := func() {
			stop()
			pool.Close()
		}
		return repo, closeFn, nil

	case "memory":
		return NewMemoryUserRepository(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}
}

// prepareStore runs setup once in the caller's goroutine and, if the store is
// not reachable yet, keeps retrying in the background until it succeeds or
// the returned stop func (or ctx) ends it.
func prepareStore(ctx context.Context, name string, setup func(context.Context) error) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	attempt := func() bool {
		actx, acancel := context.WithTimeout(ctx, 5*time.Second)
		defer acancel()
		if err := setup(actx); err != nil {
			log.Printf("%s not ready, serving with store unavailable: %v", name, err)
			return false
		}
		return true
	}
	if attempt() {
		return cancel
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(storeSetupRetry)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if attempt() {
					log.Printf("%s ready", name)
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
