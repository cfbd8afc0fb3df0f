// Package fixture replays recorded search outcomes by scenario id so that
// evaluations and CI runs are reproducible without live backends.
package fixture
