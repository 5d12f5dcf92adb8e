// Package rest implements the degraded-mode REST fallback.
//
// When the push channel cannot be established, zone state is kept
// fresh through plain request/response calls against the vendor API:
//
//   - [Fallback.Bootstrap] seeds the store when the push channel never
//     connected and no zone is known yet.
//   - [Fallback.Refresh] re-fetches the status of every known zone,
//     applying the results as partial updates.
//
// Per-zone failures are skipped and logged; partial success is
// acceptable. The REST path never learns zone names or setup, so it
// refreshes status only; names arrive once the push channel recovers.
package rest
