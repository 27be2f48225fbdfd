// Package resource provides budgets shared between index builds: a memory
// budget for pivot distance tables, a worker pool bound and a distance
// evaluation rate limit.
package resource
