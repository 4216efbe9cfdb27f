package orchestrator

import (
	"context"
	"fmt"

	"github.com/opsquad/supervisor/internal/errs"
)

// Command formats are grounded on internal/plugin_manager/apis.go's
// fmt.Sprintf call sites for the same RCON admin verbs.

func (o *Orchestrator) requireRunning() error {
	if !o.IsRunning() {
		return errs.New(errs.KindInvalidState, "orchestrator: not running")
	}
	return nil
}

// Broadcast sends a server-wide admin broadcast message.
func (o *Orchestrator) Broadcast(ctx context.Context, message string) error {
	if err := o.requireRunning(); err != nil {
		return err
	}
	_, err := o.rc.Execute(ctx, fmt.Sprintf("AdminBroadcast %s", message))
	return err
}

// Warn sends an in-game warning to a single player, identified the way the
// game server accepts (steamID, eosID, or in-game name).
func (o *Orchestrator) Warn(ctx context.Context, playerIdentifier, message string) error {
	if err := o.requireRunning(); err != nil {
		return err
	}
	_, err := o.rc.Execute(ctx, fmt.Sprintf("AdminWarn \"%s\" %s", playerIdentifier, message))
	return err
}

// Kick removes a player from the server immediately.
func (o *Orchestrator) Kick(ctx context.Context, playerIdentifier, reason string) error {
	if err := o.requireRunning(); err != nil {
		return err
	}
	_, err := o.rc.Execute(ctx, fmt.Sprintf("AdminKick \"%s\" %s", playerIdentifier, reason))
	return err
}

// Ban removes a player and bans them for durationDays (0 = permanent).
func (o *Orchestrator) Ban(ctx context.Context, playerIdentifier string, durationDays int, reason string) error {
	if err := o.requireRunning(); err != nil {
		return err
	}
	_, err := o.rc.Execute(ctx, fmt.Sprintf("AdminBan \"%s\" %dd %s", playerIdentifier, durationDays, reason))
	return err
}

// Execute issues a raw RCON command and returns its response verbatim, for
// callers (plugins) that need a command not covered by the named helpers.
func (o *Orchestrator) Execute(ctx context.Context, command string) (string, error) {
	if err := o.requireRunning(); err != nil {
		return "", err
	}
	return o.rc.Execute(ctx, command)
}
