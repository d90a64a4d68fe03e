package data

// =============================================================================
// SCHEMA DEFINITIONS
// =============================================================================

// Quantities and money are stored as decimal text on sqlite so values round-trip exactly.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS barista_users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ingredients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ingredients_name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		supplier TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL DEFAULT '0'
	)`,
	`CREATE TABLE IF NOT EXISTS list_inventory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL UNIQUE,
		table_id TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS inventory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_name TEXT NOT NULL DEFAULT '',
		beggining_stock TEXT NOT NULL DEFAULT '0',
		qty_used TEXT NOT NULL DEFAULT '0',
		ending_stock TEXT NOT NULL DEFAULT '0',
		table_id TEXT NOT NULL REFERENCES list_inventory(table_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_table_id ON inventory(table_id)`,
	`CREATE TABLE IF NOT EXISTS snapshot_pending (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		table_id TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS petty_cash_capital (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		petty_cash_id TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL DEFAULT '0',
		balance TEXT NOT NULL DEFAULT '0'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_petty_cash_capital_date ON petty_cash_capital(date)`,
	`CREATE TABLE IF NOT EXISTS petty_cash (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		expense TEXT NOT NULL DEFAULT '0',
		petty_cash_id TEXT NOT NULL REFERENCES petty_cash_capital(petty_cash_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_petty_cash_group ON petty_cash(petty_cash_id)`,
}

// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are declared inline.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS barista_users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(128) NOT NULL UNIQUE,
		password VARCHAR(255) NOT NULL
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS ingredients (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		ingredients_name VARCHAR(255) NOT NULL DEFAULT '',
		description TEXT,
		supplier VARCHAR(255) NOT NULL DEFAULT '',
		price DECIMAL(12,2) NOT NULL DEFAULT 0
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS list_inventory (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		date DATE NOT NULL UNIQUE,
		table_id CHAR(36) NOT NULL UNIQUE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS inventory (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		item_name VARCHAR(255) NOT NULL DEFAULT '',
		beggining_stock DECIMAL(14,3) NOT NULL DEFAULT 0,
		qty_used DECIMAL(14,3) NOT NULL DEFAULT 0,
		ending_stock DECIMAL(14,3) NOT NULL DEFAULT 0,
		table_id CHAR(36) NOT NULL,
		INDEX idx_inventory_table_id (table_id),
		FOREIGN KEY (table_id) REFERENCES list_inventory(table_id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS snapshot_pending (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		date DATE NOT NULL,
		table_id CHAR(36) NOT NULL UNIQUE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS petty_cash_capital (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		date DATE NOT NULL,
		petty_cash_id CHAR(36) NOT NULL UNIQUE,
		description TEXT,
		amount DECIMAL(12,2) NOT NULL DEFAULT 0,
		balance DECIMAL(12,2) NOT NULL DEFAULT 0,
		INDEX idx_petty_cash_capital_date (date)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS petty_cash (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		date DATE NOT NULL,
		description TEXT,
		expense DECIMAL(12,2) NOT NULL DEFAULT 0,
		petty_cash_id CHAR(36) NOT NULL,
		INDEX idx_petty_cash_group (petty_cash_id),
		FOREIGN KEY (petty_cash_id) REFERENCES petty_cash_capital(petty_cash_id)
	) ENGINE=InnoDB`,
}

func schemaFor(d Dialect) []string {
	if d == DialectMySQL {
		return mysqlSchema
	}
	return sqliteSchema
}
