// Package quorum holds the threshold arithmetic shared by the roster and the
// executor: roster size limits, threshold feasibility, and whether a given
// number of confirmations satisfies the threshold.
package quorum
