package core

import (
	"TokenLedger/internal/command"
	"TokenLedger/internal/fault"
	"TokenLedger/internal/ledger"
	"time"
)

// BootstrapCommands turns the configured initial admins and whitelist into
// ordinary commands issued by the deployer. Every command carries a
// request id derived from its address, so a restart replays the ones
// already applied as duplicates while addresses added to the config later
// still go through.
func BootstrapCommands(deployer ledger.Identity, admins, whitelist []ledger.Identity, at time.Time) []command.Command {
	var cmds []command.Command
	for _, id := range admins {
		if id == deployer {
			continue
		}
		cmds = append(cmds, &command.AddAdmin{
			Header:  command.Header{ID: "bootstrap:admin:" + id.Hex(), From: deployer, At: at},
			Account: id,
		})
	}
	seen := make(map[ledger.Identity]struct{}, len(whitelist))
	for _, id := range whitelist {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		cmds = append(cmds, &command.WhitelistAdd{
			Header:  command.Header{ID: "bootstrap:whitelist:" + id.Hex(), From: deployer, At: at},
			Account: id,
		})
	}
	return cmds
}

// Bootstrap applies BootstrapCommands, skipping admins and whitelist
// members already present. The configured lists are a starting point, not
// the authority: a command the ledger rejects (typically because the
// deployer has since lost its admin role) is logged and skipped. Only
// non-domain failures are returned.
func (e *Engine) Bootstrap(deployer ledger.Identity, admins, whitelist []ledger.Identity, at time.Time) error {
	for _, cmd := range BootstrapCommands(deployer, admins, whitelist, at) {
		switch c := cmd.(type) {
		case *command.AddAdmin:
			if e.IsAdmin(c.Account) {
				continue
			}
		case *command.WhitelistAdd:
			if e.IsWhitelisted(c.Account) {
				continue
			}
		}
		if _, err := e.Process(cmd); err != nil {
			if fault.IsDomain(err) {
				e.logger.Warn().Err(err).Str("request_id", cmd.RequestID()).Msg("bootstrap command rejected")
				continue
			}
			return err
		}
	}
	return nil
}
