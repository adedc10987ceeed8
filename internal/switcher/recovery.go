package switcher

import (
	"context"
	"fmt"
	"time"

	"phpvm/internal/brew"
	"phpvm/internal/config"
	"phpvm/internal/notify"
)

// recoveryStep is one command in the remediation chain.
type recoveryStep struct {
	command    string
	privileged bool
}

// ForceRecover resets the managed services to a known-good baseline: every
// versioned PHP formula is unlinked and stopped, the default formula is
// force-relinked, and the DNS helper is restarted. Several steps repeat at
// both privilege levels because a service may have been started either way
// and only one of the two stop calls will actually hit it; stopping an
// already stopped service is harmless. Individual non-zero exits are
// expected mid-chain and do not abort it; only a spawn failure does.
//
// Recovery shares the busy gate with SwitchTo, so the two can never
// interleave their shell commands.
func (s *Switcher) ForceRecover(ctx context.Context) error {
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Debug().Msg("recovery dropped, busy")
		return ErrBusy
	}
	s.metrics.SetBusy(true)
	s.publishState()

	versions := s.Versions()
	if len(versions) == 0 {
		discovered, err := s.registry.DiscoverVersions(ctx)
		if err != nil {
			s.finishRecovery("spawn-error")
			return fmt.Errorf("discover versions before recovery: %w", err)
		}
		versions = discovered
		s.setVersions(discovered)
		s.metrics.SetInstalledVersions(len(discovered))
	}

	s.logger.Info().Int("versions", len(versions)).Msg("starting service recovery")

	if err := s.runRecoverySteps(ctx, s.recoverySteps(versions)); err != nil {
		s.finishRecovery("spawn-error")
		return err
	}

	active := s.registry.ResolveActive(ctx)
	changed := s.replaceActive(active)

	s.finishRecovery("success")
	s.persist(ctx)
	if changed {
		s.rearm(active)
	}

	s.notifyEvent(ctx, recoveryEvent(active))
	return nil
}

// finishRecovery lowers the busy flag, republishes and counts the outcome.
func (s *Switcher) finishRecovery(outcome string) {
	s.busy.Store(false)
	s.metrics.SetBusy(false)
	s.publishState()
	s.metrics.IncRecoveries(outcome)
}

func (s *Switcher) runRecoverySteps(ctx context.Context, steps []recoveryStep) error {
	for _, step := range steps {
		run := s.runner.Run
		if step.privileged {
			run = s.runner.RunPrivileged
		}
		result, err := run(ctx, step.command)
		if err != nil {
			s.metrics.IncSpawnErrors()
			s.logger.Error().Err(err).Str("command", step.command).Msg("recovery step could not be started")
			return fmt.Errorf("recovery step %q: %w", step.command, err)
		}
		if result.ExitCode != 0 {
			s.logger.Debug().
				Str("command", step.command).
				Int("exit_code", result.ExitCode).
				Msg("recovery step exited non-zero, continuing")
		}
	}
	return nil
}

// recoverySteps builds the ordered chain for the given version set. Roles
// missing from the service descriptors simply contribute no steps.
func (s *Switcher) recoverySteps(versions brew.VersionSet) []recoveryStep {
	php := s.formulaByRole(config.RolePHP)
	web := s.formulaByRole(config.RoleWeb)
	dns := s.formulaByRole(config.RoleDNS)

	steps := make([]recoveryStep, 0, 3*len(versions)+7)

	if dns != "" {
		steps = append(steps, recoveryStep{command: s.brewCommand("services stop " + dns), privileged: true})
	}
	for _, version := range versions {
		formula := brew.Formula(version)
		steps = append(steps,
			recoveryStep{command: s.brewCommand("unlink " + formula)},
			recoveryStep{command: s.brewCommand("services stop " + formula)},
			recoveryStep{command: s.brewCommand("services stop " + formula), privileged: true},
		)
	}
	if php != "" {
		steps = append(steps, recoveryStep{command: s.brewCommand("services stop " + php)})
	}
	if web != "" {
		steps = append(steps, recoveryStep{command: s.brewCommand("services stop " + web)})
	}
	if php != "" {
		steps = append(steps, recoveryStep{command: s.brewCommand("link " + php + " --force")})
	}
	if dns != "" {
		steps = append(steps, recoveryStep{command: s.brewCommand("services restart " + dns), privileged: true})
	}
	if php != "" {
		steps = append(steps, recoveryStep{command: s.brewCommand("services stop " + php), privileged: true})
	}
	if web != "" {
		steps = append(steps, recoveryStep{command: s.brewCommand("services stop " + web), privileged: true})
	}

	return steps
}

func (s *Switcher) brewCommand(args string) string {
	return s.env.BrewBin + " " + args
}

func recoveryEvent(active brew.Installation) notify.Event {
	body := "Services were reset but the active installation is still broken"
	if active.Valid {
		body = fmt.Sprintf("Services were reset; PHP %s is active", active.Version)
	}
	return notify.Event{
		Kind:    notify.KindRecoveryDone,
		Title:   "PHP environment recovered",
		Body:    body,
		Version: active.Version,
		At:      time.Now().UTC(),
	}
}
