package database

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS cache_entries (
		fingerprint TEXT PRIMARY KEY,
		artifact_reference TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		last_validated_at INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		artifact_kind TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY,
		access_status INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS channels (
		channel_id INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		link TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT 1,
		added_by INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		user_id INTEGER NOT NULL,
		platform TEXT NOT NULL,
		quality TEXT NOT NULL,
		format TEXT NOT NULL DEFAULT 'video',
		updated_at INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, platform)
	)`,
	`CREATE TABLE IF NOT EXISTS download_stats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		platform TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		failure_kind TEXT NOT NULL DEFAULT '',
		cache_hit BOOLEAN NOT NULL DEFAULT 0,
		file_size INTEGER NOT NULL DEFAULT 0,
		download_time_ms INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_download_stats_created_at ON download_stats(created_at)`,
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		severity TEXT NOT NULL,
		category TEXT NOT NULL,
		message TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS cache_entries (
		fingerprint TEXT PRIMARY KEY,
		artifact_reference TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		last_validated_at BIGINT NOT NULL,
		size_bytes BIGINT NOT NULL DEFAULT 0,
		artifact_kind TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id BIGINT PRIMARY KEY,
		access_status INTEGER NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS channels (
		channel_id BIGINT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		link TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		added_by BIGINT NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		user_id BIGINT NOT NULL,
		platform TEXT NOT NULL,
		quality TEXT NOT NULL,
		format TEXT NOT NULL DEFAULT 'video',
		updated_at BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, platform)
	)`,
	`CREATE TABLE IF NOT EXISTS download_stats (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		platform TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		failure_kind TEXT NOT NULL DEFAULT '',
		cache_hit BOOLEAN NOT NULL DEFAULT FALSE,
		file_size BIGINT NOT NULL DEFAULT 0,
		download_time_ms BIGINT NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_download_stats_created_at ON download_stats(created_at)`,
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		timestamp BIGINT NOT NULL,
		severity TEXT NOT NULL,
		category TEXT NOT NULL,
		message TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp)`,
}
