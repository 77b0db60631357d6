// Package auth provides identity and authorisation for HomeHub Core.
//
// Accounts are global; capability is house-scoped. A user holds a role per
// house (guest, regular, or admin) through a role grant, and every inbound
// command is classified (view, control, or structure) and checked against
// that role. Passwords are hashed with Argon2id; session tokens are signed
// JWTs used for reconnecting without re-sending credentials.
package auth
