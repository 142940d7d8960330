package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forest6511/passvault/pkg/store"
)

const adminPW = store.DefaultAdminPassword

func TestUserAdd_AdminOnly(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice", "Secret123!")

	r := env.run(t, "pw-carol-1\npw-carol-1\n", "Secret123!", "user", "add", "carol", "-u", "alice")
	assert.ErrorIs(t, r.err, errAdminRequired)

	r = env.mustRun(t, "pw-carol-1\npw-carol-1\n", adminPW, "user", "add", "carol", "--role", "Admin", "-u", "admin")
	assert.Contains(t, r.out, "Account carol created with role admin")

	r = env.mustRun(t, "", adminPW, "user", "list", "-u", "admin")
	assert.Regexp(t, `admin\s+admin`, r.out)
	assert.Regexp(t, `alice\s+basic`, r.out)
	assert.Regexp(t, `carol\s+admin`, r.out)

	// carol can now manage accounts
	env.mustRun(t, "", "pw-carol-1", "user", "list", "-u", "carol")
}

func TestUserAdd_InvalidRole(t *testing.T) {
	env := newTestEnv(t)

	r := env.run(t, "x\nx\n", adminPW, "user", "add", "carol", "--role", "root", "-u", "admin")
	assert.ErrorIs(t, r.err, store.ErrValidation)
}

func TestUserAdd_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice", "Secret123!")

	r := env.run(t, "pw-123456\npw-123456\n", adminPW, "user", "add", "alice", "-u", "admin")
	assert.ErrorIs(t, r.err, store.ErrDuplicate)
}

func TestUserUpdate(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice", "Secret123!")

	r := env.mustRun(t, "new-password-1\nnew-password-1\n", adminPW, "user", "update", "alice", "-u", "admin")
	assert.Contains(t, r.out, "Account alice updated (role basic)")

	assert.ErrorIs(t, env.run(t, "", "Secret123!", "login", "-u", "alice").err, errAuthFailed)
	env.mustRun(t, "", "new-password-1", "login", "-u", "alice")

	r = env.mustRun(t, "pw-again-12\npw-again-12\n", adminPW, "user", "update", "alice", "--role", "admin", "-u", "admin")
	assert.Contains(t, r.out, "(role admin)")
}

func TestUserUpdate_Missing(t *testing.T) {
	env := newTestEnv(t)

	r := env.run(t, "pw-123456\npw-123456\n", adminPW, "user", "update", "ghost", "-u", "admin")
	assert.ErrorIs(t, r.err, store.ErrNotFound)
}

func TestUserUpdate_CannotDemoteAdmin(t *testing.T) {
	env := newTestEnv(t)

	r := env.run(t, "pw-123456\npw-123456\n", adminPW, "user", "update", "admin", "--role", "basic", "-u", "admin")
	assert.ErrorIs(t, r.err, store.ErrPermission)
}

func TestUserDelete(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice", "Secret123!")
	env.mustRun(t, "pw-123456\n", "Secret123!", "secret", "add", "https://a.example", "--username", "alice", "-u", "alice")

	r := env.mustRun(t, "n\n", adminPW, "user", "delete", "alice", "-u", "admin")
	assert.Contains(t, r.out, "Aborted")

	r = env.mustRun(t, "", adminPW, "user", "delete", "alice", "--force", "-u", "admin")
	assert.Contains(t, r.out, "Account alice deleted")

	r = env.run(t, "", "Secret123!", "login", "-u", "alice")
	assert.ErrorIs(t, r.err, errAuthFailed)

	r = env.run(t, "", adminPW, "user", "delete", "alice", "--force", "-u", "admin")
	assert.ErrorIs(t, r.err, store.ErrNotFound)
}

func TestUserDelete_AdminRejectedBeforeStore(t *testing.T) {
	env := newTestEnv(t)

	// no password and no database needed: the CLI refuses first
	r := env.run(t, "", "", "user", "delete", " admin ", "--force")
	assert.ErrorIs(t, r.err, errProtectedAdmin)
	assert.NoFileExists(t, env.db)
}

func TestUserDelete_Self(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "pw-carol-1\npw-carol-1\n", adminPW, "user", "add", "carol", "--role", "admin", "-u", "admin")

	r := env.run(t, "", "pw-carol-1", "user", "delete", "carol", "--force", "-u", "carol")
	assert.ErrorIs(t, r.err, store.ErrPermission)
}
