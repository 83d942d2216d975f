package worldcore

import (
	"context"
	"fmt"
	"strings"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/pquerna/otp/totp"
)

// stepUnauthenticated drives the line-based credential protocol (§4.8):
// username, then password, then — for accounts with MFASecret enrolled —
// a TOTP code.
func (d *Dispatcher) stepUnauthenticated(ctx context.Context, sess *ServerSession, text string) ([]model.GameOutput, error) {
	text = strings.TrimSpace(text)

	if sess.PendingAccount != nil {
		return d.stepMFA(ctx, sess, text)
	}

	if sess.PendingUsername == "" {
		if text == "" {
			return []model.GameOutput{model.System("Username: ")}, nil
		}
		sess.PendingUsername = text
		return []model.GameOutput{model.System("Password: ")}, nil
	}

	username := sess.PendingUsername
	sess.PendingUsername = ""

	ok, err := d.store.VerifyPassword(ctx, username, text)
	if err != nil || !ok {
		return []model.GameOutput{model.System("Login incorrect. Username: ")}, nil
	}

	acc, _, err := d.store.LoadAccountByLogin(ctx, username)
	if err != nil {
		return []model.GameOutput{model.System("Account lookup failed. Username: ")}, nil
	}

	if acc.MFASecret != "" {
		sess.PendingAccount = &acc
		return []model.GameOutput{model.System("Authenticator code: ")}, nil
	}

	return d.finishLogin(ctx, sess, acc)
}

// stepMFA verifies the TOTP code for an account whose password already
// checked out.
func (d *Dispatcher) stepMFA(ctx context.Context, sess *ServerSession, code string) ([]model.GameOutput, error) {
	acc := sess.PendingAccount
	if !totp.Validate(code, acc.MFASecret) {
		sess.PendingAccount = nil
		return []model.GameOutput{model.System("Authenticator code incorrect. Username: ")}, nil
	}
	sess.PendingAccount = nil
	return d.finishLogin(ctx, sess, *acc)
}

func (d *Dispatcher) finishLogin(ctx context.Context, sess *ServerSession, acc model.Account) ([]model.GameOutput, error) {
	avatars, err := d.store.ListAvatars(ctx, acc.ID)
	if err != nil {
		return []model.GameOutput{model.System("Character list unavailable. Username: ")}, nil
	}

	sess.AccountID = &acc.ID
	sess.Avatars = avatars
	sess.Role = acc.Role
	sess.State = StateAuthenticated

	return []model.GameOutput{characterMenu(avatars)}, nil
}

func characterMenu(avatars []model.AvatarSummary) model.GameOutput {
	var b strings.Builder
	b.WriteString("Characters:\r\n")
	for i, a := range avatars {
		fmt.Fprintf(&b, "  %d) %s (level %d)\r\n", i+1, a.Name, a.Level)
	}
	b.WriteString("Enter a number to play, or 'create new' to build a character.")
	return model.System(b.String())
}
