//go:build integration

package e2e_harness

import (
	"github.com/lychee-technology/rowstore"
)

// MembersTable is keyed by (org_id, user_id) with email as alternate key.
const MembersTable = "members"

// UsersTable has a generated single column key.
const UsersTable = "users"

// PostgresSchema creates the fixture tables on PostgreSQL.
var PostgresSchema = []string{
	`DROP TABLE IF EXISTS members`,
	`DROP TABLE IF EXISTS users`,
	`CREATE TABLE members (
  org_id BIGINT NOT NULL,
  user_id BIGINT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  name TEXT,
  created_at TEXT,
  updated_at TEXT,
  deleted_at TEXT,
  PRIMARY KEY (org_id, user_id)
)`,
	`CREATE TABLE users (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT UNIQUE,
  deleted_at TEXT
)`,
}

// MySQLSchema creates the fixture tables on MySQL.
var MySQLSchema = []string{
	"DROP TABLE IF EXISTS members",
	"DROP TABLE IF EXISTS users",
	"CREATE TABLE members (" +
		"org_id BIGINT NOT NULL, user_id BIGINT NOT NULL, email VARCHAR(191) NOT NULL UNIQUE, " +
		"name VARCHAR(191), created_at VARCHAR(32), updated_at VARCHAR(32), deleted_at VARCHAR(32), " +
		"PRIMARY KEY (org_id, user_id))",
	"CREATE TABLE users (" +
		"id BIGINT AUTO_INCREMENT PRIMARY KEY, name VARCHAR(191) NOT NULL, email VARCHAR(191) UNIQUE, deleted_at VARCHAR(32))",
}

// MembersModel describes the members table.
func MembersModel() rowstore.ModelConfig {
	cfg := rowstore.DefaultModelConfig(MembersTable)
	cfg.PrimaryKey = rowstore.Key{"org_id", "user_id"}
	cfg.AltKeys = []rowstore.Key{{"email"}}
	cfg.AutoIncrement = false
	cfg.UseTimestamps = true
	cfg.SoftDelete.Enabled = true
	cfg.RecordType = "Member"
	return cfg
}

// UsersModel describes the users table.
func UsersModel() rowstore.ModelConfig {
	cfg := rowstore.DefaultModelConfig(UsersTable)
	cfg.AltKeys = []rowstore.Key{{"email"}}
	cfg.SoftDelete.Enabled = true
	cfg.RecordType = "User"
	return cfg
}
