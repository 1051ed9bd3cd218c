package common

import (
	"context"

	"github.com/gokturkhatay/smartinbox/internal/server"
)

// ResolveAccount decides which account a tool call operates on.
//
// An authenticated HTTP session wins: the OAuth middleware stores the
// validated user in the context and that identity is the account, so a
// client cannot read another user's mailbox by passing an "account"
// argument. On stdio transport there is no session and the explicit
// argument applies, falling back to "default".
func ResolveAccount(ctx context.Context, args map[string]any) string {
	if userInfo, ok := server.GetUserFromContext(ctx); ok && userInfo != nil && userInfo.Email != "" {
		return userInfo.Email
	}
	if account, ok := args["account"].(string); ok && account != "" {
		return account
	}
	return "default"
}
