// Package backend opens a knowledge.Store by name.
package backend

import (
	"context"
	"fmt"

	"github.com/barekit/dossier/pkg/knowledge"
	"github.com/barekit/dossier/pkg/knowledge/consts"
	"github.com/barekit/dossier/pkg/knowledge/inmemory"
	mongostore "github.com/barekit/dossier/pkg/knowledge/mongo"
	"github.com/barekit/dossier/pkg/knowledge/mssql"
	"github.com/barekit/dossier/pkg/knowledge/mysql"
	"github.com/barekit/dossier/pkg/knowledge/neo4j"
	"github.com/barekit/dossier/pkg/knowledge/postgres"
	"github.com/barekit/dossier/pkg/knowledge/redis"
	"github.com/barekit/dossier/pkg/knowledge/sqlite"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Type string

const (
	TypeSQLite   Type = "sqlite"
	TypePostgres Type = "postgres"
	TypeMySQL    Type = "mysql"
	TypeMSSQL    Type = "mssql"
	TypeRedis    Type = "redis"
	TypeNeo4j    Type = "neo4j"
	TypeMongo    Type = "mongo"
	TypeInMemory Type = "inmemory"
)

// DefaultSQLitePath is used when a sqlite store has no connection string.
const DefaultSQLitePath = "dossier.db"

// Config holds configuration for store backends.
type Config struct {
	Type             Type
	ConnectionString string
	Username         string
	Password         string
	DBName           string
}

// New opens the store named by cfg.Type.
func New(ctx context.Context, cfg Config) (knowledge.Store, error) {
	switch cfg.Type {
	case TypeSQLite, "":
		dsn := cfg.ConnectionString
		if dsn == "" {
			dsn = DefaultSQLitePath
		}
		return sqlite.New(dsn)

	case TypePostgres:
		return postgres.New(cfg.ConnectionString)

	case TypeRedis:
		opts, err := goredis.ParseURL(cfg.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := goredis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return redis.New(client), nil

	case TypeNeo4j:
		dbName := "neo4j"
		if cfg.DBName != "" {
			dbName = cfg.DBName
		}
		return neo4j.New(ctx, cfg.ConnectionString, cfg.Username, cfg.Password, dbName)

	case TypeMongo:
		opts := options.Client().ApplyURI(cfg.ConnectionString)
		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("failed to ping mongo: %w", err)
		}
		dbName := consts.DefaultDBName
		if cfg.DBName != "" {
			dbName = cfg.DBName
		}
		return mongostore.New(ctx, client, dbName, consts.TableNamePairs)

	case TypeMySQL:
		return mysql.New(cfg.ConnectionString)

	case TypeMSSQL:
		return mssql.New(cfg.ConnectionString)

	case TypeInMemory:
		return inmemory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}

// Close releases the connections held by store, if it holds any.
func Close(ctx context.Context, store knowledge.Store) error {
	if c, ok := store.(interface{ Close(context.Context) error }); ok {
		return c.Close(ctx)
	}
	return nil
}
