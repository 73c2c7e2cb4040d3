// Package constants centralizes defaults shared across the CLI, the API
// service and the probe backends.
//
// File permissions, the profile document location and probe time budgets
// live here so cmd/ and internal/ can reference them without import cycles.
package constants
