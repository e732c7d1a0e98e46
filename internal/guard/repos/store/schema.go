package store

// schema creates the two backing relations and the blacklist guild index.
// Every statement is idempotent so it can run on each process start.
const schema = `
CREATE TABLE IF NOT EXISTS guild_configs (
	guild_id INTEGER PRIMARY KEY,
	log_channel_id INTEGER,
	timeout_duration INTEGER DEFAULT 300,
	dm_on_timeout BOOLEAN DEFAULT FALSE,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS guild_blacklists (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	guild_id INTEGER NOT NULL,
	emoji_type TEXT NOT NULL,
	emoji_value TEXT NOT NULL,
	emoji_name TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (guild_id) REFERENCES guild_configs(guild_id),
	UNIQUE(guild_id, emoji_type, emoji_value)
);

CREATE INDEX IF NOT EXISTS idx_guild_blacklists_guild_id
	ON guild_blacklists(guild_id);
`
