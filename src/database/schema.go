package database

// sqliteSchema is applied on every SQLite connect
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS indexes(
    name TEXT PRIMARY KEY,
    config TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS index_files(
    id TEXT PRIMARY KEY,
    index_name TEXT NOT NULL,
    file_name TEXT NOT NULL,
    len INTEGER NOT NULL,
    footer_len INTEGER NOT NULL,
    FOREIGN KEY (index_name) REFERENCES indexes(name) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS source_checkpoints(
    source_id TEXT NOT NULL,
    index_name TEXT NOT NULL,
    offset_value INTEGER NOT NULL,
    PRIMARY KEY (source_id, index_name),
    FOREIGN KEY (index_name) REFERENCES indexes(name) ON DELETE CASCADE
);`

// postgresSchema is applied on every PostgreSQL connect
const postgresSchema = `
CREATE TABLE IF NOT EXISTS indexes(
    name VARCHAR(255) PRIMARY KEY,
    config JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS index_files(
    id VARCHAR(36) PRIMARY KEY,
    index_name VARCHAR(255) NOT NULL REFERENCES indexes(name) ON DELETE CASCADE,
    file_name TEXT NOT NULL,
    len BIGINT NOT NULL,
    footer_len BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS source_checkpoints(
    source_id TEXT NOT NULL,
    index_name VARCHAR(255) NOT NULL REFERENCES indexes(name) ON DELETE CASCADE,
    offset_value BIGINT NOT NULL,
    PRIMARY KEY (source_id, index_name)
);`
