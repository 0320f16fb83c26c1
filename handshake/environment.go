// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import "fmt"

// Environment is a console deployment.
type Environment string

const (
	Production  Environment = "prod"
	Staging     Environment = "stage"
	QA          Environment = "qa"
	Development Environment = "dev"
)

// Environments lists the closed set of known environments.
var Environments = []Environment{Production, Staging, QA, Development}

// ParseEnvironment parses an environment name. The empty string is
// production.
func ParseEnvironment(name string) (Environment, error) {
	if name == "" {
		return Production, nil
	}
	for _, known := range Environments {
		if Environment(name) == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown environment %q", name)
}

// Suffix returns the host name suffix for the environment: empty for
// production, "-<env>" otherwise.
func (e Environment) Suffix() string {
	if e == Production || e == "" {
		return ""
	}
	return "-" + string(e)
}

// environmentFromSuffix reverses Suffix.
func environmentFromSuffix(suffix string) (Environment, bool) {
	for _, known := range Environments {
		if known.Suffix() == suffix {
			return known, true
		}
	}
	return "", false
}
