package cli

import "errors"

// ErrNoRulesFile is returned when a command needs rules and --rules is empty.
var ErrNoRulesFile = errors.New("no rules file: pass --rules or set EDURATING_RULES_FILE")
