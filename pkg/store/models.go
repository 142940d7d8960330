package store

import (
	"time"

	"github.com/uptrace/bun"
)

// Roles stored in users.role.
const (
	RoleBasic = "basic"
	RoleAdmin = "admin"
)

// AdminUsername is the protected account seeded by Initialize.
const AdminUsername = "admin"

// UserRow maps the users table.
type UserRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Username     string    `bun:"username,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Role         string    `bun:"role,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

// SecretRow maps the stored_secrets table.
type SecretRow struct {
	bun.BaseModel `bun:"table:stored_secrets,alias:s"`

	ID                int64     `bun:"id,pk,autoincrement"`
	UserID            int64     `bun:"user_id,notnull"`
	Website           string    `bun:"website,notnull"`
	Username          string    `bun:"username,notnull"`
	EncryptedPassword []byte    `bun:"encrypted_password,notnull"`
	CreatedAt         time.Time `bun:"created_at,notnull"`
	UpdatedAt         time.Time `bun:"updated_at,notnull"`
}

// VaultKeyRow maps the single-row vault_keys table.
type VaultKeyRow struct {
	bun.BaseModel `bun:"table:vault_keys,alias:k"`

	ID             int64     `bun:"id,pk"`
	EncryptedDEK   []byte    `bun:"encrypted_dek,notnull"`
	DEKNonce       []byte    `bun:"dek_nonce,notnull"`
	KEKSalt        []byte    `bun:"kek_salt,notnull"`
	KEKSource      string    `bun:"kek_source,notnull"`
	InstallationID string    `bun:"installation_id,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

// Now returns the timestamp written to created_at/updated_at columns.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
