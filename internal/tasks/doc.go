// Package tasks holds the rules shared by every task backend: list ordering,
// search filtering, the per-user Store contract, live query delivery and the
// error taxonomy surfaced to screens.
package tasks
